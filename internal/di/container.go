package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carvana-workflows/internal/adapter/httpapi"
	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/application/service"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/browser/rod"
	"carvana-workflows/internal/infrastructure/catalog"
	"carvana-workflows/internal/infrastructure/clipboard"
	"carvana-workflows/internal/infrastructure/dom/memdom"
	"carvana-workflows/internal/infrastructure/env"
	"carvana-workflows/internal/infrastructure/logger"
	"carvana-workflows/internal/infrastructure/metrics"
	"carvana-workflows/internal/infrastructure/store"
	"carvana-workflows/internal/infrastructure/userinteraction"
	"carvana-workflows/internal/usecase/engine"
	"carvana-workflows/internal/usecase/preferences"

	"github.com/prometheus/client_golang/prometheus"
)

type Container struct {
	Logger   *logger.ZapAdapter
	Page     output.Page
	Registry *service.Registry
	Store    output.KVStore
	RunPrefs *preferences.RunPrefsStore
	Menus    *preferences.MenuStore
	Profiles *preferences.ProfileStore
	Metrics  *metrics.Recorder
	Engine   *engine.Engine

	cfg     Config
	browser *rod.Page
}

type Config struct {
	// CatalogPaths are files or directories; empty loads the bundled sample.
	CatalogPaths []string
	// StorePath is the preferences file; empty uses ~/.autoflow/prefs.json.
	StorePath string
	// EphemeralStore keeps preferences in memory only.
	EphemeralStore bool
	// StoreNamespace prefixes every preference key when set.
	StoreNamespace string

	// URL is opened after launch. With HTMLFile set it only names the
	// document's location.
	URL string
	// HTMLFile runs against a saved page instead of a browser.
	HTMLFile string
	// Detached skips the page and the engine; only the catalog and the
	// preference stores are built.
	Detached bool
	Browser  rod.BrowserConfig

	Log        logger.Options
	Engine     engine.Config
	HTTPAddr   string
	RequestLog bool
}

// ConfigFromEnv reads AUTOFLOW_* settings over the defaults.
func ConfigFromEnv(e *env.EnvService) Config {
	cfg := Config{
		StorePath:      e.Get("AUTOFLOW_STORE"),
		EphemeralStore: e.GetBool("AUTOFLOW_EPHEMERAL_STORE", false),
		StoreNamespace: e.Get("AUTOFLOW_STORE_NAMESPACE"),
		URL:            e.Get("AUTOFLOW_URL"),
		Browser:        rod.DefaultConfig(),
		Log:            logger.DefaultOptions(),
		Engine:         engine.DefaultConfig(),
		HTTPAddr:       e.GetString("AUTOFLOW_HTTP_ADDR", "127.0.0.1:8765"),
		RequestLog:     e.GetBool("AUTOFLOW_REQUEST_LOG", true),
	}
	if path := e.Get("AUTOFLOW_CATALOG"); path != "" {
		cfg.CatalogPaths = filepath.SplitList(path)
	}

	cfg.Browser.Headless = e.GetBool("AUTOFLOW_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.ControlURL = e.Get("AUTOFLOW_CONTROL_URL")

	cfg.Log.Level = e.GetString("AUTOFLOW_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = e.GetString("AUTOFLOW_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = e.Get("AUTOFLOW_LOG_FILE")

	ec := &cfg.Engine
	ec.InterActionDelay = e.GetDuration("AUTOFLOW_INTER_ACTION_DELAY", ec.InterActionDelay)
	ec.LoadingSelector = e.Get("AUTOFLOW_LOADING_SELECTOR")
	ec.LoadingTimeout = e.GetDuration("AUTOFLOW_LOADING_TIMEOUT", ec.LoadingTimeout)
	ec.WaitDefaults.Timeout = e.GetDuration("AUTOFLOW_WAIT_TIMEOUT", ec.WaitDefaults.Timeout)
	ec.WaitDefaults.PollInterval = e.GetDuration("AUTOFLOW_POLL_INTERVAL", ec.WaitDefaults.PollInterval)
	ec.NavSettle = e.GetDuration("AUTOFLOW_NAV_SETTLE", ec.NavSettle)
	ec.RepeatCooldown = e.GetDuration("AUTOFLOW_REPEAT_COOLDOWN", ec.RepeatCooldown)
	ec.MaxNestingDepth = e.GetInt("AUTOFLOW_MAX_NESTING", ec.MaxNestingDepth)
	ec.ScreenshotDir = e.Get("AUTOFLOW_SCREENSHOT_DIR")
	return cfg
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c := &Container{Logger: log, cfg: cfg}

	if err := c.loadCatalog(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openStore(); err != nil {
		c.Close()
		return nil, err
	}
	c.RunPrefs = preferences.NewRunPrefsStore(c.Store, log)
	c.Menus = preferences.NewMenuStore(c.Store, log)
	c.Profiles = preferences.NewProfileStore(c.Store, log)
	if cfg.Detached {
		return c, nil
	}

	if err := c.openPage(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.Metrics = metrics.New(prometheus.NewRegistry())

	console := userinteraction.NewConsole()
	deps := engine.Deps{
		Page:     c.Page,
		Registry: c.Registry,
		Profiles: c.Profiles,
		RunPrefs: c.RunPrefs,
		Notifier: console,
		Prompter: console,
		Logger:   log,
		Recorder: c.Metrics,
	}
	if cb := clipboard.New(); cb.Available() {
		deps.Clipboard = cb
	} else {
		log.Warn("Clipboard unavailable, copy steps will only notify")
	}
	c.Engine = engine.New(deps, cfg.Engine)
	registerFuncs(c.Engine)

	log.Info("Container ready",
		"pages", len(c.Registry.Pages()),
		"store", cfg.StorePath,
		"offline", cfg.HTMLFile != "",
	)
	return c, nil
}

func (c *Container) loadCatalog() error {
	var (
		pages []entity.PageDefinition
		err   error
	)
	if len(c.cfg.CatalogPaths) == 0 {
		c.Logger.Info("No catalog configured, using the bundled sample")
		pages, err = catalog.ParseSample()
	} else {
		pages, err = catalog.Load(c.cfg.CatalogPaths...)
	}
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	c.Registry, err = service.NewRegistry(pages)
	if err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}
	return nil
}

func (c *Container) openStore() error {
	var kv output.KVStore
	if c.cfg.EphemeralStore {
		kv = store.NewMemoryStore()
	} else {
		fs, err := store.NewFileStore(c.cfg.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		if moved := fs.Quarantined(); moved != "" {
			c.Logger.Warn("Preferences file was malformed, starting with defaults", "path", fs.Path(), "moved_to", moved)
		}
		c.Logger.Debug("Preferences store opened", "path", fs.Path())
		kv = fs
	}
	if c.cfg.StoreNamespace != "" {
		kv = store.NewNamespaced(kv, c.cfg.StoreNamespace)
	}
	c.Store = kv
	return nil
}

func (c *Container) openPage(ctx context.Context) error {
	if c.cfg.HTMLFile != "" {
		src, err := os.ReadFile(c.cfg.HTMLFile)
		if err != nil {
			return fmt.Errorf("failed to read page: %w", err)
		}
		href := c.cfg.URL
		if href == "" {
			abs, _ := filepath.Abs(c.cfg.HTMLFile)
			href = "file://" + filepath.ToSlash(abs)
		}
		doc, err := memdom.Parse(string(src), memdom.WithURL(href))
		if err != nil {
			return fmt.Errorf("failed to parse page: %w", err)
		}
		c.Page = doc
		return nil
	}

	page, err := rod.NewBrowserAdapter(ctx, c.cfg.Browser)
	if err != nil {
		return fmt.Errorf("failed to create browser: %w", err)
	}
	c.browser = page
	c.Page = page
	if err := page.Observe(); err != nil {
		return fmt.Errorf("failed to observe page: %w", err)
	}
	if c.cfg.URL != "" {
		if err := page.Navigate(ctx, c.cfg.URL); err != nil {
			return fmt.Errorf("failed to open %s: %w", c.cfg.URL, err)
		}
	}
	return nil
}

// HTTPServer builds the intent API over the container's services.
func (c *Container) HTTPServer() *httpapi.Server {
	return httpapi.NewServer(httpapi.Deps{
		Engine:     c.Engine,
		Registry:   c.Registry,
		RunPrefs:   c.RunPrefs,
		Menus:      c.Menus,
		Profiles:   c.Profiles,
		Metrics:    c.Metrics,
		Logger:     c.Logger,
		RequestLog: c.cfg.RequestLog,
	})
}

func (c *Container) HTTPAddr() string {
	return c.cfg.HTTPAddr
}

func (c *Container) Close() {
	if c.browser != nil {
		c.browser.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}

// registerFuncs binds the execute step functions every catalog may call.
func registerFuncs(e *engine.Engine) {
	e.RegisterFunc("notify", func(ctx context.Context, call *engine.Call) error {
		msg, _ := call.Args["message"].(string)
		if msg == "" {
			return fmt.Errorf("notify: message is required")
		}
		level := output.NoticeLevel(fmt.Sprint(call.Args["level"]))
		switch level {
		case output.NoticeInfo, output.NoticeSuccess, output.NoticeFailure:
		default:
			level = output.NoticeInfo
		}
		call.Notify(ctx, level, msg)
		return nil
	})
	e.RegisterFunc("setVar", func(_ context.Context, call *engine.Call) error {
		name, _ := call.Args["name"].(string)
		if name == "" {
			return fmt.Errorf("setVar: name is required")
		}
		call.Vars[name] = call.Args["value"]
		return nil
	})
	e.RegisterFunc("sleep", func(ctx context.Context, call *engine.Call) error {
		d, err := argDuration(call.Args["ms"])
		if err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	})
	e.RegisterFunc("run", func(ctx context.Context, call *engine.Call) error {
		id, _ := call.Args["workflow"].(string)
		if id == "" {
			return fmt.Errorf("run: workflow is required")
		}
		return call.RunWorkflow(ctx, id)
	})
}

func argDuration(v any) (time.Duration, error) {
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Millisecond, nil
	case int64:
		return time.Duration(n) * time.Millisecond, nil
	case float64:
		return time.Duration(n * float64(time.Millisecond)), nil
	case string:
		return time.ParseDuration(n)
	}
	return 0, fmt.Errorf("ms must be a number, got %T", v)
}
