package wait

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/dom/memdom"
	"carvana-workflows/internal/infrastructure/logger"
	"carvana-workflows/internal/usecase/matcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageHTML = `<html><body><div id="app"><span id="status">Loading</span></div></body></html>`

// trackedDoc counts live subscriptions so tests can assert teardown, and
// can drop notifications to force the poll path.
type trackedDoc struct {
	*memdom.Document
	active atomic.Int32
	quiet  bool
}

func (d *trackedDoc) Subscribe(fn func()) func() {
	d.active.Add(1)
	if d.quiet {
		fn = func() {}
	}
	cancel := d.Document.Subscribe(fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			d.active.Add(-1)
			cancel()
		})
	}
}

func newFixture(t *testing.T, quiet bool) (*matcher.Matcher, *trackedDoc) {
	t.Helper()
	doc := &trackedDoc{Document: memdom.MustParse(pageHTML), quiet: quiet}
	return matcher.New(doc, logger.Nop()), doc
}

func after(d time.Duration, fn func()) {
	go func() {
		time.Sleep(d)
		fn()
	}()
}

func fast(timeout time.Duration) Options {
	return Options{Timeout: timeout, PollInterval: time.Hour}
}

func TestForElement_AlreadyPresent(t *testing.T) {
	m, doc := newFixture(t, false)

	el, err := ForElement(context.Background(), m, entity.SelectorSpec{ID: "status"}, fast(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "Loading", el.TextContent())
	assert.Zero(t, doc.active.Load(), "synchronous match must not subscribe")
}

func TestForElement_ResolvesOnMutation(t *testing.T) {
	m, doc := newFixture(t, false)

	after(30*time.Millisecond, func() {
		doc.MustAppendHTML(doc.Find("#app"), `<button id="offer">Get offer</button>`)
	})

	start := time.Now()
	el, err := ForElement(context.Background(), m, entity.SelectorSpec{Tag: "button", Text: &entity.TextMatcher{Includes: "offer"}}, fast(2*time.Second))
	require.NoError(t, err)
	assert.Same(t, doc.Find("#offer"), el)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, doc.active.Load())
}

func TestForElement_PollCoversMissedNotifications(t *testing.T) {
	m, doc := newFixture(t, true)

	after(20*time.Millisecond, func() {
		doc.MustAppendHTML(nil, `<div id="late"></div>`)
	})

	el, err := ForElement(context.Background(), m, entity.SelectorSpec{ID: "late"}, Options{Timeout: 2 * time.Second, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestForElement_Timeout(t *testing.T) {
	m, doc := newFixture(t, false)

	start := time.Now()
	_, err := ForElement(context.Background(), m, entity.SelectorSpec{ID: "never"}, Options{Timeout: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	require.Error(t, err)

	assert.True(t, errors.Is(err, entity.ErrTimeout))
	var te *entity.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 50*time.Millisecond, te.After)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, doc.active.Load())
}

func TestForElement_VisibleOnly(t *testing.T) {
	m, doc := newFixture(t, false)
	doc.MustAppendHTML(nil, `<div id="modal" style="display:none">Offer</div>`)

	after(20*time.Millisecond, func() {
		_ = doc.RemoveAttribute(doc.Find("#modal"), "style")
	})

	opts := fast(2 * time.Second)
	opts.VisibleOnly = true
	el, err := ForElement(context.Background(), m, entity.SelectorSpec{ID: "modal"}, opts)
	require.NoError(t, err)
	assert.True(t, matcher.IsVisible(el))
}

func TestForElement_ContextCancel(t *testing.T) {
	m, doc := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	after(20*time.Millisecond, cancel)

	_, err := ForElement(ctx, m, entity.SelectorSpec{ID: "never"}, fast(5*time.Second))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, doc.active.Load())
}

func TestForElement_InvalidSpec(t *testing.T) {
	m, _ := newFixture(t, false)
	_, err := ForElement(context.Background(), m, entity.SelectorSpec{Selector: "[["}, fast(time.Second))
	require.Error(t, err)
	assert.False(t, errors.Is(err, entity.ErrTimeout))
}

func TestForAbsence(t *testing.T) {
	m, doc := newFixture(t, false)

	after(20*time.Millisecond, func() {
		doc.Remove(doc.Find("#status"))
	})

	err := ForAbsence(context.Background(), m, entity.SelectorSpec{ID: "status"}, fast(2*time.Second))
	require.NoError(t, err)
	assert.Nil(t, doc.Find("#status"))
}

func TestForCondition(t *testing.T) {
	m, doc := newFixture(t, false)

	after(20*time.Millisecond, func() {
		doc.SetText(doc.Find("#status"), "Ready")
	})

	cond := entity.TextPresent{Where: entity.SelectorSpec{ID: "status"}, Text: entity.TextMatcher{Equals: "Ready"}}
	require.NoError(t, ForCondition(context.Background(), m, cond, fast(2*time.Second)))
}

func TestUntil_MinStabilityIgnoresFlicker(t *testing.T) {
	m, doc := newFixture(t, false)
	spec := entity.SelectorSpec{ID: "toast"}

	// The element flickers in and out faster than the stability window,
	// then settles.
	go func() {
		for i := 0; i < 4; i++ {
			added := doc.MustAppendHTML(nil, `<div id="toast"></div>`)
			time.Sleep(10 * time.Millisecond)
			doc.Remove(added[0])
			time.Sleep(15 * time.Millisecond)
		}
		doc.MustAppendHTML(nil, `<div id="toast"></div>`)
	}()

	opts := fast(2 * time.Second)
	opts.MinStability = 40 * time.Millisecond

	start := time.Now()
	el, err := ForElement(context.Background(), m, spec, opts)
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.NotNil(t, doc.Find("#toast"))
}

func TestUntil_StabilityStillBoundedByTimeout(t *testing.T) {
	m, doc := newFixture(t, false)

	opts := Options{Timeout: 40 * time.Millisecond, PollInterval: time.Hour, MinStability: time.Second}
	_, err := ForElement(context.Background(), m, entity.SelectorSpec{ID: "status"}, opts)
	assert.ErrorIs(t, err, entity.ErrTimeout)
	assert.Zero(t, doc.active.Load())
}

func TestFromSpec(t *testing.T) {
	base := DefaultOptions()

	assert.Equal(t, base, FromSpec(entity.WaitSpec{}, base))

	got := FromSpec(entity.WaitSpec{TimeoutMs: 500, PollIntervalMs: 50, MinStabilityMs: 100, VisibleOnly: true}, base)
	assert.Equal(t, Options{
		Timeout:      500 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
		VisibleOnly:  true,
		MinStability: 100 * time.Millisecond,
	}, got)
}

func TestDocumentReady(t *testing.T) {
	t.Run("already complete", func(t *testing.T) {
		doc := memdom.MustParse(pageHTML)
		require.NoError(t, DocumentReady(context.Background(), doc))
	})

	t.Run("waits for ready notification", func(t *testing.T) {
		doc := memdom.MustParse(pageHTML, memdom.WithReadyState(output.ReadyLoading))
		after(20*time.Millisecond, func() { doc.SetReadyState(output.ReadyInteractive) })

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, DocumentReady(ctx, doc))
	})

	t.Run("context bound", func(t *testing.T) {
		doc := memdom.MustParse(pageHTML, memdom.WithReadyState(output.ReadyLoading))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, DocumentReady(ctx, doc), context.DeadlineExceeded)
	})
}
