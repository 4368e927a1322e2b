package engine

import (
	"context"
	"errors"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/preferences"
	"carvana-workflows/internal/usecase/wait"
)

var errNoRunPrefs = errors.New("auto-run needs a run preferences store")

// AutoRun detects the page and runs, in declaration order, every workflow
// whose auto trigger fires for the current href. It returns the ids it
// started. A busy engine skips or ends the pass without consuming the
// trigger, so a later pass on the same href still fires.
func (e *Engine) AutoRun(ctx context.Context, force bool) ([]string, error) {
	if e.runPrefs == nil {
		return nil, errNoRunPrefs
	}
	if e.Running() {
		return nil, nil
	}
	page, err := e.DetectPage(ctx)
	if err != nil {
		return nil, err
	}

	href := e.page.Location().Href
	now := e.cfg.Now()
	var started []string
	for i := range page.Workflows {
		wf := &page.Workflows[i]
		if wf.Internal {
			continue
		}
		prefs, persisted := e.runPrefs.Lookup(wf.ID)
		effective := preferences.EffectiveRunPrefs(preferences.ResolveTriggers(wf, prefs, persisted), prefs)
		ok := preferences.ShouldAutoRun(effective, href, preferences.AutoRunOptions{
			Now:         now,
			Force:       force,
			MinInterval: e.cfg.RepeatCooldown,
		})
		if !ok {
			continue
		}
		if wf.EnabledWhen != nil {
			if enabled, err := e.matcher.EvalCondition(ctx, wf.EnabledWhen); err != nil || !enabled {
				continue
			}
		}

		// Stamped before running so a failing workflow still cools down.
		e.runPrefs.UpdateFrom(wf.ID, effective, preferences.RunPrefsPatch{
			LastRun: &entity.LastRun{Href: href, At: now.UnixMilli()},
		})
		e.logger.Info("Auto-running workflow", "workflow", wf.ID, "page", page.ID, "href", href)

		_, err := e.RunDefinition(ctx, page, wf)
		if errors.Is(err, entity.ErrBusy) {
			e.runPrefs.Restore(wf.ID, prefs, persisted)
			break
		}
		started = append(started, wf.ID)
		if ctx.Err() != nil {
			return started, ctx.Err()
		}
	}
	return started, nil
}

// Watch drives AutoRun for a long-lived page: once the document is ready,
// after every navigation has settled for NavSettle, and on tree changes so
// repeat triggers can fire once their cooldown passed. It returns when ctx
// is done.
func (e *Engine) Watch(ctx context.Context) error {
	if e.runPrefs == nil {
		return errNoRunPrefs
	}
	if err := wait.DocumentReady(ctx, e.page); err != nil {
		return err
	}

	navigated := make(chan struct{}, 1)
	changed := make(chan struct{}, 1)
	if nav, ok := e.page.(output.Navigator); ok {
		cancel := nav.OnNavigate(func(output.Location) { signal(navigated) })
		defer cancel()
	}
	cancel := e.page.Subscribe(func() { signal(changed) })
	defer cancel()

	e.autoRunPass(ctx)

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-navigated:
			// Repeated navigations restart the settle window.
			settle.Reset(e.cfg.NavSettle)
			pending = true
		case <-settle.C:
			pending = false
			e.autoRunPass(ctx)
		case <-changed:
			if !pending {
				e.autoRunPass(ctx)
			}
		}
	}
}

func (e *Engine) autoRunPass(ctx context.Context) {
	started, err := e.AutoRun(ctx, false)
	switch {
	case errors.Is(err, entity.ErrPageNotDetected):
		e.logger.Debug("No known page", "href", e.page.Location().Href)
	case err != nil && ctx.Err() == nil:
		e.logger.Warn("Auto-run pass failed", "error", err)
	case len(started) > 0:
		e.logger.Debug("Auto-run pass finished", "started", started)
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
