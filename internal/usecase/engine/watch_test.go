package engine

import (
	"context"
	"testing"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/application/service"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/dom/memdom"
	"carvana-workflows/internal/infrastructure/logger"
	"carvana-workflows/internal/usecase/preferences"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func autoWorkflow(id string, repeat bool) entity.WorkflowDefinition {
	wf := workflow(id, clickID("a"))
	wf.AutoRun = &entity.AutoRunConfig{Auto: entity.TriggerOverride{Enabled: entity.Bool(true)}}
	if repeat {
		wf.AutoRun.Repeat = entity.TriggerOverride{Enabled: entity.Bool(true)}
	}
	return wf
}

func TestAutoRun_OncePerHref(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_800_000_000_000)}
	h := newHarness(t, []entity.PageDefinition{inventoryPage(
		autoWorkflow("auto", false),
		workflow("manual", clickID("b")),
	)}, func(c *Config) { c.Now = clock.Now })
	ctx := context.Background()

	started, err := h.engine.AutoRun(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"auto"}, started)

	prefs, persisted := h.runPrefs.Lookup("auto")
	require.True(t, persisted)
	assert.True(t, prefs.Auto, "stamping keeps the definition's auto default")
	require.NotNil(t, prefs.LastRun)
	assert.Equal(t, entity.LastRun{Href: inventoryURL, At: clock.Now().UnixMilli()}, *prefs.LastRun)

	clock.Advance(time.Hour)
	started, err = h.engine.AutoRun(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, started, "same href without repeat never re-runs")

	h.doc.Navigate("https://example.com/inventory?zip=10001")
	started, err = h.engine.AutoRun(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"auto"}, started)

	started, err = h.engine.AutoRun(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"auto"}, started, "force bypasses the href check")

	assert.Equal(t, []string{"a", "a", "a"}, clicked(h.doc))
}

func TestAutoRun_BusyKeepsTrigger(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_800_000_000_000)}
	h := newHarness(t, []entity.PageDefinition{inventoryPage(autoWorkflow("auto", false))},
		func(c *Config) { c.Now = clock.Now })
	ctx := context.Background()

	h.engine.busy.Store(true)
	started, err := h.engine.AutoRun(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, started)
	_, persisted := h.runPrefs.Lookup("auto")
	assert.False(t, persisted, "a skipped pass records no run")

	h.engine.busy.Store(false)
	clock.Advance(time.Minute)
	started, err = h.engine.AutoRun(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"auto"}, started)
	assert.Equal(t, []string{"a"}, clicked(h.doc))
}

func TestAutoRun_RepeatCooldown(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_800_000_000_000)}
	h := newHarness(t, []entity.PageDefinition{inventoryPage(autoWorkflow("repeat", true))},
		func(c *Config) { c.Now = clock.Now })
	ctx := context.Background()

	for _, step := range []struct {
		advance time.Duration
		runs    bool
	}{
		{0, true},
		{2 * time.Second, false},
		{2999 * time.Millisecond, false},
		{time.Millisecond, true},
		{preferences.AutoRepeatMinInterval, true},
	} {
		clock.Advance(step.advance)
		started, err := h.engine.AutoRun(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, step.runs, len(started) == 1, "after %s", step.advance)
	}
}

func TestAutoRun_PrefsOverrideDefinition(t *testing.T) {
	h := newHarness(t, []entity.PageDefinition{inventoryPage(
		autoWorkflow("auto", false),
		workflow("optin", clickID("b")),
	)})
	h.runPrefs.Update("auto", preferences.RunPrefsPatch{Auto: entity.Bool(false)})
	h.runPrefs.Update("optin", preferences.RunPrefsPatch{Auto: entity.Bool(true)})

	started, err := h.engine.AutoRun(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"optin"}, started)
}

func TestAutoRun_SkipsInternalAndDisabled(t *testing.T) {
	internal := autoWorkflow("helper", false)
	internal.Internal = true
	guarded := autoWorkflow("guarded", false)
	guarded.EnabledWhen = entity.Exists{Target: entity.SelectorSpec{ID: "checkout"}}
	unavailable := autoWorkflow("unavailable", false)
	unavailable.AutoRun.Auto.Available = entity.Bool(false)

	h := newHarness(t, []entity.PageDefinition{inventoryPage(internal, guarded, unavailable)})

	started, err := h.engine.AutoRun(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, started)
	assert.Empty(t, h.notifier.all())
}

func TestAutoRun_NoPage(t *testing.T) {
	h := newHarness(t, []entity.PageDefinition{{
		ID:       "checkout",
		Detector: entity.Exists{Target: entity.SelectorSpec{ID: "checkout"}},
	}})

	_, err := h.engine.AutoRun(context.Background(), false)
	assert.ErrorIs(t, err, entity.ErrPageNotDetected)
}

func TestWatch(t *testing.T) {
	doc := memdom.MustParse(InventoryHTML, memdom.WithURL(inventoryURL), memdom.WithReadyState(output.ReadyLoading))
	h := newHarnessFor(t, doc, doc, []entity.PageDefinition{inventoryPage(autoWorkflow("auto", false))})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Watch(ctx) }()

	successes := func() int { return h.notifier.count(output.NoticeSuccess) }

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, successes(), "nothing runs before the document is ready")

	doc.SetReadyState(output.ReadyInteractive)
	assert.Eventually(t, func() bool { return successes() == 1 }, time.Second, 5*time.Millisecond)

	doc.MustAppendHTML(nil, `<p>unrelated change</p>`)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, successes(), "tree changes on the same href do not re-run")

	doc.Navigate("https://example.com/inventory?zip=10001")
	doc.Navigate("https://example.com/inventory?zip=20002")
	assert.Eventually(t, func() bool { return successes() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, successes(), "navigation bursts settle into one pass")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_NeedsRunPrefs(t *testing.T) {
	doc := memdom.MustParse(InventoryHTML)
	registry, err := service.NewRegistry([]entity.PageDefinition{inventoryPage()})
	require.NoError(t, err)
	e := New(Deps{Page: doc, Registry: registry, Logger: logger.Nop()}, fastConfig())

	assert.Error(t, e.Watch(context.Background()))
	_, err = e.AutoRun(context.Background(), false)
	assert.Error(t, err)
}
