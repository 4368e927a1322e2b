package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var (
	_ output.Page          = (*Page)(nil)
	_ output.Navigator     = (*Page)(nil)
	_ output.Screenshotter = (*Page)(nil)
	_ output.Serializer    = (*Page)(nil)
)

const (
	defaultTimeout    = 10 * time.Second
	defaultSlowMotion = 0
	maxScreenshotW    = 1024
)

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	// Timeout bounds every single browser call made without a caller
	// context, i.e. the element reads the matcher issues.
	Timeout   time.Duration
	NoSandbox bool
	DevTools  bool
	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   false,
		SlowMotion: defaultSlowMotion,
		Timeout:    defaultTimeout,
	}
}

// Page is a live browser tab seen through the element tree ports.
type Page struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration

	observeOnce sync.Once
	observeErr  error
	unbind      []func() error

	subsMu    sync.Mutex
	nextSub   int
	subs      map[int]func()
	readySubs map[int]func()
	navSubs   map[int]func(output.Location)

	closeOnce sync.Once
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig) (*Page, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	var l *launcher.Launcher
	controlURL := cfg.ControlURL
	if controlURL == "" {
		l = launcher.New().
			Headless(cfg.Headless).
			Devtools(cfg.DevTools).
			NoSandbox(cfg.NoSandbox).
			Delete("use-mock-keychain")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return wrapPage(browser, l, page, cfg.Timeout), nil
}

func wrapPage(browser *rod.Browser, l *launcher.Launcher, page *rod.Page, timeout time.Duration) *Page {
	return &Page{
		browser:   browser,
		launcher:  l,
		page:      page,
		timeout:   timeout,
		subs:      make(map[int]func()),
		readySubs: make(map[int]func()),
		navSubs:   make(map[int]func(output.Location)),
	}
}

// Navigate loads url and waits for the load event plus a short idle window.
func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	pg.WaitIdle(2 * time.Second)
	return nil
}

// HTML returns the current serialized DOM.
func (p *Page) HTML(ctx context.Context) (string, error) {
	src, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return src, nil
}

// Screenshot captures the viewport as JPEG, downscaled to at most 1024px
// wide.
func (p *Page) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	imgBytes, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return encodeScreenshot(imgBytes)
}

func encodeScreenshot(raw []byte) (*entity.Screenshot, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	if img.Bounds().Dx() > maxScreenshotW {
		img = imaging.Resize(img, maxScreenshotW, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (p *Page) Close() {
	p.closeOnce.Do(func() {
		for _, stop := range p.unbind {
			_ = stop()
		}
		if p.browser != nil {
			_ = p.browser.Close()
		}
		if p.launcher != nil {
			p.launcher.Kill()
			p.launcher.Cleanup()
		}
	})
}

// call bounds an element read that has no caller context.
func (p *Page) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.timeout)
}
