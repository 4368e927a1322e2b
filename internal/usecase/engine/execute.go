package engine

import (
	"context"
	"fmt"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/matcher"
)

// ExecFunc backs execute steps. A returned error fails the step.
type ExecFunc func(ctx context.Context, call *Call) error

// Call is what an ExecFunc sees: the rendered arguments, the page, and the
// run's shared variables. Writes to Vars are visible to later steps.
type Call struct {
	Workflow string
	Args     map[string]any
	Vars     map[string]any
	Page     output.Page
	Matcher  *matcher.Matcher
	Logger   output.LoggerPort

	engine *Engine
	run    *run
	depth  int
}

// RunWorkflow invokes another workflow as part of the current run. It
// bypasses the busy flag and its failure fails the calling step.
func (c *Call) RunWorkflow(ctx context.Context, workflowID string) error {
	wf, ok := c.engine.lookupWorkflow(c.run, workflowID)
	if !ok {
		return fmt.Errorf("%s: %w", workflowID, entity.ErrWorkflowNotFound)
	}
	return c.engine.runWorkflow(ctx, c.run, wf, c.depth+1)
}

// Notify sends a message to the operator.
func (c *Call) Notify(ctx context.Context, level output.NoticeLevel, msg string) {
	c.engine.notify(ctx, level, msg)
}

// RegisterFunc binds name for execute steps, replacing any earlier binding.
func (e *Engine) RegisterFunc(name string, fn ExecFunc) {
	e.funcsMu.Lock()
	defer e.funcsMu.Unlock()
	e.funcs[name] = fn
}

func (e *Engine) lookupFunc(name string) (ExecFunc, bool) {
	e.funcsMu.RLock()
	defer e.funcsMu.RUnlock()
	fn, ok := e.funcs[name]
	return fn, ok
}

func (e *Engine) execute(ctx context.Context, r *run, wf *entity.WorkflowDefinition, a entity.Execute, depth int) error {
	fn, ok := e.lookupFunc(a.Func)
	if !ok {
		return fmt.Errorf("%q: %w", a.Func, entity.ErrUnknownFunc)
	}
	args := a.Args
	if args == nil {
		args = map[string]any{}
	}
	return fn(ctx, &Call{
		Workflow: wf.ID,
		Args:     args,
		Vars:     r.vars,
		Page:     e.page,
		Matcher:  e.matcher,
		Logger:   r.logger.WithField("func", a.Func),
		engine:   e,
		run:      r,
		depth:    depth,
	})
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
