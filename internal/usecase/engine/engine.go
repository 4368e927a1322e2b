// Package engine interprets workflow definitions against a page: it
// detects which page is loaded, renders each step's templates, runs the
// steps fail-fast and reports the outcome to the operator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"carvana-workflows/internal/application/port/input"
	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/application/service"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/matcher"
	"carvana-workflows/internal/usecase/preferences"
	"carvana-workflows/internal/usecase/template"
	"carvana-workflows/internal/usecase/wait"

	"github.com/google/uuid"
)

var _ input.WorkflowRunner = (*Engine)(nil)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

type Config struct {
	// InterActionDelay paces consecutive steps.
	InterActionDelay time.Duration
	// LoadingSelector is a CSS selector for the page's busy indicator. The
	// engine waits for it to disappear between steps.
	LoadingSelector string
	LoadingTimeout  time.Duration
	WaitDefaults    wait.Options
	MaxNestingDepth int
	// Highlight outlines click and type targets for this long. Zero disables.
	Highlight time.Duration

	NavSettle      time.Duration
	RepeatCooldown time.Duration
	ScreenshotDir  string

	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		InterActionDelay: 150 * time.Millisecond,
		LoadingTimeout:   10 * time.Second,
		WaitDefaults:     wait.DefaultOptions(),
		MaxNestingDepth:  16,
		Highlight:        600 * time.Millisecond,
		NavSettle:        300 * time.Millisecond,
		RepeatCooldown:   preferences.AutoRepeatMinInterval,
	}
}

// Deps are the engine's collaborators. Page, Registry and Logger are
// required; the rest degrade gracefully when nil.
type Deps struct {
	Page      output.Page
	Registry  *service.Registry
	Matcher   *matcher.Matcher
	Profiles  *preferences.ProfileStore
	RunPrefs  *preferences.RunPrefsStore
	Notifier  output.Notifier
	Clipboard output.Clipboard
	Prompter  output.Prompter
	Logger    output.LoggerPort
	Recorder  output.RunRecorder
}

type Engine struct {
	page      output.Page
	registry  *service.Registry
	matcher   *matcher.Matcher
	profiles  *preferences.ProfileStore
	runPrefs  *preferences.RunPrefsStore
	notifier  output.Notifier
	clipboard output.Clipboard
	prompter  output.Prompter
	logger    output.LoggerPort
	recorder  output.RunRecorder
	cfg       Config

	busy atomic.Bool

	funcsMu sync.RWMutex
	funcs   map[string]ExecFunc
}

func New(deps Deps, cfg Config) *Engine {
	m := deps.Matcher
	if m == nil {
		m = matcher.New(deps.Page, deps.Logger)
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = output.NopRecorder{}
	}
	if cfg.MaxNestingDepth <= 0 {
		cfg.MaxNestingDepth = DefaultConfig().MaxNestingDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		page:      deps.Page,
		registry:  deps.Registry,
		matcher:   m,
		profiles:  deps.Profiles,
		runPrefs:  deps.RunPrefs,
		notifier:  deps.Notifier,
		clipboard: deps.Clipboard,
		prompter:  deps.Prompter,
		logger:    deps.Logger,
		recorder:  recorder,
		cfg:       cfg,
		funcs:     make(map[string]ExecFunc),
	}
}

func (e *Engine) Matcher() *matcher.Matcher {
	return e.matcher
}

// Running reports whether a top-level run is in progress.
func (e *Engine) Running() bool {
	return e.busy.Load()
}

// DetectPage returns the first registered page whose detector holds, in
// declaration order. Pages without a detector never match.
func (e *Engine) DetectPage(ctx context.Context) (*entity.PageDefinition, error) {
	for _, page := range e.registry.Pages() {
		if page.Detector == nil {
			continue
		}
		ok, err := e.matcher.EvalCondition(ctx, page.Detector)
		if err != nil {
			return nil, fmt.Errorf("detect %s: %w", page.ID, err)
		}
		if ok {
			return page, nil
		}
	}
	return nil, entity.ErrPageNotDetected
}

func (e *Engine) RunWorkflow(ctx context.Context, pageID, workflowID string) (*input.RunResult, error) {
	page, wf, err := e.registry.Workflow(pageID, workflowID)
	if err != nil {
		return nil, err
	}
	return e.RunDefinition(ctx, page, wf)
}

// RunDefinition runs wf as a top-level invocation. Only one top-level run
// may be active; a second attempt is rejected with entity.ErrBusy.
func (e *Engine) RunDefinition(ctx context.Context, page *entity.PageDefinition, wf *entity.WorkflowDefinition) (*input.RunResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.notify(ctx, output.NoticeInfo, "A workflow is already running")
		return nil, entity.ErrBusy
	}
	defer e.busy.Store(false)

	r := &run{
		id:     uuid.NewString(),
		page:   page,
		vars:   make(map[string]any),
		logger: e.logger.WithField("workflow", wf.ID),
	}
	r.logger = r.logger.WithField("run_id", r.id)

	start := e.cfg.Now()
	r.logger.Info("Workflow started", "page", page.ID)

	err := e.checkEnabled(ctx, wf)
	if err == nil {
		err = e.runWorkflow(ctx, r, wf, 0)
	}
	elapsed := e.cfg.Now().Sub(start)

	if err != nil {
		e.recorder.WorkflowFinished(wf.ID, outcomeFailure, elapsed)
		r.logger.Error("Workflow failed", "error", err, "steps", r.steps, "duration_ms", elapsed.Milliseconds())
		e.saveFailureScreenshot(ctx, r, wf)
		e.notify(ctx, output.NoticeFailure, fmt.Sprintf("%s failed: %s", label(wf), entity.FailureMessage(err)))
		return nil, err
	}

	e.recorder.WorkflowFinished(wf.ID, outcomeSuccess, elapsed)
	r.logger.Info("Workflow completed", "steps", r.steps, "duration_ms", elapsed.Milliseconds())
	e.notify(ctx, output.NoticeSuccess, label(wf)+" completed")

	return &input.RunResult{
		RunID:    r.id,
		Workflow: wf.ID,
		Steps:    r.steps,
		Vars:     maps.Clone(r.vars),
		Duration: elapsed,
	}, nil
}

func (e *Engine) checkEnabled(ctx context.Context, wf *entity.WorkflowDefinition) error {
	if wf.EnabledWhen == nil {
		return nil
	}
	ok, err := e.matcher.EvalCondition(ctx, wf.EnabledWhen)
	if err != nil {
		return fmt.Errorf("%s enabledWhen: %w", wf.ID, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", wf.ID, entity.ErrWorkflowDisabled)
	}
	return nil
}

// run is the state shared by a top-level invocation and every workflow it
// invokes through branch or execute steps.
type run struct {
	id     string
	page   *entity.PageDefinition
	vars   map[string]any
	steps  int
	logger output.LoggerPort
}

// runWorkflow executes wf's steps in order and stops at the first failure.
// Nested invocations come through here too, with depth > 0.
func (e *Engine) runWorkflow(ctx context.Context, r *run, wf *entity.WorkflowDefinition, depth int) error {
	if depth > e.cfg.MaxNestingDepth {
		return fmt.Errorf("%s at depth %d: %w", wf.ID, depth, entity.ErrNestingTooDeep)
	}
	opts := e.resolveOptions(wf)

	for i, step := range wf.Steps {
		if i > 0 {
			if err := e.settle(ctx, r); err != nil {
				return &entity.StepError{Workflow: wf.ID, Index: i, Kind: step.Kind(), Err: err}
			}
		}

		rendered := template.Render(step, e.templateData(r, wf, opts))
		start := time.Now()
		err := e.execStep(ctx, r, wf, rendered, depth)
		elapsed := time.Since(start)

		outcome := outcomeSuccess
		if err != nil {
			outcome = outcomeFailure
		}
		e.recorder.StepFinished(step.Kind().String(), outcome, elapsed)
		r.logger.Debug("Step finished", "step", i+1, "kind", step.Kind(), "outcome", outcome, "duration_ms", elapsed.Milliseconds())

		if err != nil {
			return &entity.StepError{Workflow: wf.ID, Index: i, Kind: step.Kind(), Err: err}
		}
		r.steps++
	}
	return nil
}

func (e *Engine) resolveOptions(wf *entity.WorkflowDefinition) preferences.ResolvedOptions {
	if e.profiles != nil {
		return e.profiles.Resolve(wf)
	}
	return preferences.ResolvedOptions{
		Profile: entity.ProfileP1,
		Label:   preferences.ProfileLabel(entity.ProfileP1),
		Values:  wf.DefaultOptionValues(),
	}
}

// templateData is rebuilt per step so values extracted by earlier steps are
// visible to later ones.
func (e *Engine) templateData(r *run, wf *entity.WorkflowDefinition, opts preferences.ResolvedOptions) map[string]any {
	loc := e.page.Location()
	return map[string]any{
		"options": opts.Values,
		"profile": map[string]any{
			"id":    string(opts.Profile),
			"label": opts.Label,
		},
		"vars": r.vars,
		"page": map[string]any{
			"id":    r.page.ID,
			"label": r.page.Label,
			"url":   loc.Href,
			"host":  loc.Host,
			"path":  loc.Path,
			"title": e.page.Title(),
		},
		"workflow": map[string]any{
			"id":    wf.ID,
			"label": wf.Label,
		},
		"run": map[string]any{
			"id": r.id,
		},
	}
}

// settle waits for the loading indicator to go away, then applies the
// inter-action delay. A loading indicator that never clears is logged and
// the run continues; the next step's own waits decide failure.
func (e *Engine) settle(ctx context.Context, r *run) error {
	if e.cfg.LoadingSelector != "" {
		spec := entity.SelectorSpec{Selector: e.cfg.LoadingSelector, Visible: entity.Bool(true)}
		opts := e.cfg.WaitDefaults
		if e.cfg.LoadingTimeout > 0 {
			opts.Timeout = e.cfg.LoadingTimeout
		}
		err := wait.ForAbsence(ctx, e.matcher, spec, opts)
		switch {
		case errors.Is(err, entity.ErrTimeout):
			r.logger.Warn("Loading indicator still visible, continuing", "selector", e.cfg.LoadingSelector, "timeout", opts.Timeout)
		case err != nil:
			return err
		}
	}
	return sleep(ctx, e.cfg.InterActionDelay)
}

func (e *Engine) saveFailureScreenshot(ctx context.Context, r *run, wf *entity.WorkflowDefinition) {
	if e.cfg.ScreenshotDir == "" {
		return
	}
	shooter, ok := e.page.(output.Screenshotter)
	if !ok {
		return
	}

	// The run's context may be what failed it.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	shot, err := shooter.Screenshot(sctx)
	if err != nil {
		r.logger.Warn("Failure screenshot not taken", "error", err)
		return
	}
	if err := os.MkdirAll(e.cfg.ScreenshotDir, 0o755); err != nil {
		r.logger.Warn("Failure screenshot not saved", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s_%s.%s", e.cfg.Now().Format("20060102_150405"), wf.ID, r.id[:8], shot.Format)
	path := filepath.Join(e.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
		r.logger.Warn("Failure screenshot not saved", "error", err)
		return
	}
	r.logger.Info("Failure screenshot saved", "path", path)
}

func (e *Engine) notify(ctx context.Context, level output.NoticeLevel, msg string) {
	if e.notifier != nil {
		e.notifier.Notify(ctx, level, msg)
	}
}

func label(wf *entity.WorkflowDefinition) string {
	if wf.Label != "" {
		return wf.Label
	}
	return wf.ID
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
