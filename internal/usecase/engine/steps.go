package engine

import (
	"context"
	"fmt"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/matcher"
	"carvana-workflows/internal/usecase/wait"
)

func (e *Engine) execStep(ctx context.Context, r *run, wf *entity.WorkflowDefinition, step entity.Action, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch a := step.(type) {
	case entity.WaitFor:
		_, err := wait.ForElement(ctx, e.matcher, a.Target, e.waitOptions(&a.Wait))
		return err
	case entity.Delay:
		return sleep(ctx, ms(a.Ms))
	case entity.Click:
		return e.click(ctx, a)
	case entity.Type:
		return e.typeText(ctx, a)
	case entity.SelectFromList:
		return e.selectFromList(ctx, a)
	case entity.Extract:
		e.extract(ctx, r, a)
		return nil
	case entity.ExtractList:
		return e.extractList(ctx, r, a)
	case entity.CaptureData:
		return e.captureData(ctx, r, a)
	case entity.Branch:
		return e.branch(ctx, r, a, depth)
	case entity.Fail:
		return &entity.AuthoredError{Message: a.Message}
	case entity.Execute:
		return e.execute(ctx, r, wf, a, depth)
	default:
		return fmt.Errorf("%w: %T", entity.ErrUnknownAction, step)
	}
}

func (e *Engine) waitOptions(spec *entity.WaitSpec) wait.Options {
	if spec == nil {
		return e.cfg.WaitDefaults
	}
	return wait.FromSpec(*spec, e.cfg.WaitDefaults)
}

// target resolves the first visible match of spec, waiting for it when pre
// is set.
func (e *Engine) target(ctx context.Context, spec entity.SelectorSpec, pre *entity.WaitSpec) (output.Element, error) {
	if pre != nil {
		opts := e.waitOptions(pre)
		opts.VisibleOnly = true
		return wait.ForElement(ctx, e.matcher, spec, opts)
	}
	el, err := e.matcher.FindOne(spec, matcher.Options{VisibleOnly: true})
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, fmt.Errorf("%s: %w", spec, entity.ErrNotFound)
	}
	return el, nil
}

func (e *Engine) highlight(el output.Element) {
	if e.cfg.Highlight > 0 {
		e.matcher.Highlight(e.page, []output.Element{el}, e.cfg.Highlight)
	}
}

func (e *Engine) click(ctx context.Context, a entity.Click) error {
	el, err := e.target(ctx, a.Target, a.PreWait)
	if err != nil {
		return err
	}
	e.highlight(el)
	if err := e.page.Click(ctx, el); err != nil {
		return fmt.Errorf("click %s: %w", a.Target, err)
	}
	if a.WaitFor != nil {
		if _, err := wait.ForElement(ctx, e.matcher, *a.WaitFor, e.waitOptions(a.PostWait)); err != nil {
			return fmt.Errorf("after click: %w", err)
		}
	}
	return nil
}

// typeText emits one input notification per character so pages that
// validate on every keystroke see the same sequence a typist produces.
func (e *Engine) typeText(ctx context.Context, a entity.Type) error {
	el, err := e.target(ctx, a.Target, a.PreWait)
	if err != nil {
		return err
	}
	e.highlight(el)
	if err := e.page.Focus(ctx, el); err != nil {
		return fmt.Errorf("focus %s: %w", a.Target, err)
	}
	if a.Clear {
		if err := e.page.Clear(ctx, el); err != nil {
			return fmt.Errorf("clear %s: %w", a.Target, err)
		}
	}
	for i, ch := range []rune(a.Text) {
		if i > 0 {
			if err := sleep(ctx, ms(a.KeyDelayMs)); err != nil {
				return err
			}
		}
		if err := e.page.InsertText(ctx, el, string(ch)); err != nil {
			return fmt.Errorf("type into %s: %w", a.Target, err)
		}
	}
	if a.PressEnter {
		if err := e.page.PressKey(ctx, el, "Enter"); err != nil {
			return fmt.Errorf("press enter: %w", err)
		}
	}
	return nil
}

func (e *Engine) selectFromList(ctx context.Context, a entity.SelectFromList) error {
	opts := e.waitOptions(a.Wait)
	list, err := wait.ForElement(ctx, e.matcher, a.List, opts)
	if err != nil {
		return err
	}
	item, err := e.matcher.FindOne(a.Item, matcher.Options{Root: list, VisibleOnly: true})
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("no %s in %s: %w", a.Item, a.List, entity.ErrNotFound)
	}
	e.highlight(item)
	if err := e.page.Click(ctx, item); err != nil {
		return fmt.Errorf("select %s: %w", a.Item, err)
	}
	return nil
}

// branch runs the sub-workflow named by the taken arm. An empty or unknown
// id is a no-op.
func (e *Engine) branch(ctx context.Context, r *run, a entity.Branch, depth int) error {
	ok, err := e.matcher.EvalCondition(ctx, a.If)
	if err != nil {
		return fmt.Errorf("branch condition: %w", err)
	}
	id := a.Else
	if ok {
		id = a.Then
	}
	if id == "" {
		return nil
	}
	wf, found := e.lookupWorkflow(r, id)
	if !found {
		r.logger.Debug("Branch target missing, skipping", "target", id, "taken", ok)
		return nil
	}
	r.logger.Debug("Branch taken", "target", id, "taken", ok)
	return e.runWorkflow(ctx, r, wf, depth+1)
}

// lookupWorkflow prefers the run's page, then any registered page.
func (e *Engine) lookupWorkflow(r *run, id string) (*entity.WorkflowDefinition, bool) {
	if wf, ok := r.page.Workflow(id); ok {
		return wf, true
	}
	_, wf, ok := e.registry.FindWorkflow(id)
	return wf, ok
}
