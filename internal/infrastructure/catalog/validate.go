package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"carvana-workflows/internal/domain/entity"

	"github.com/gobwas/glob"
)

// Validate checks a whole catalog. Every problem is reported, joined.
func Validate(pages []entity.PageDefinition) error {
	v := &validator{workflows: make(map[string]bool)}
	seenPages := make(map[string]bool, len(pages))
	for _, p := range pages {
		switch {
		case p.ID == "":
			v.fail("page with empty id")
		case seenPages[p.ID]:
			v.fail("page %q: duplicate id", p.ID)
		}
		seenPages[p.ID] = true
		for _, wf := range p.Workflows {
			v.workflows[wf.ID] = true
		}
	}

	for _, p := range pages {
		if p.Detector != nil {
			v.condition("page "+p.ID+" detector", p.Detector)
		}
		seen := make(map[string]bool, len(p.Workflows))
		for _, wf := range p.Workflows {
			where := fmt.Sprintf("%s/%s", p.ID, wf.ID)
			if wf.ID == "" {
				v.fail("page %q: workflow with empty id", p.ID)
				continue
			}
			if seen[wf.ID] {
				v.fail("%s: duplicate workflow", where)
			}
			seen[wf.ID] = true
			if wf.EnabledWhen != nil {
				v.condition(where+" enabledWhen", wf.EnabledWhen)
			}
			for i, step := range wf.Steps {
				v.step(fmt.Sprintf("%s step %d", where, i+1), step)
			}
		}
	}
	return errors.Join(v.errs...)
}

type validator struct {
	workflows map[string]bool
	errs      []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) step(where string, step entity.Action) {
	switch s := step.(type) {
	case entity.WaitFor:
		v.selector(where, s.Target)
	case entity.Delay:
		if s.Ms < 0 {
			v.fail("%s: negative delay", where)
		}
	case entity.Click:
		v.selector(where, s.Target)
		if s.WaitFor != nil {
			v.selector(where, *s.WaitFor)
		}
	case entity.Type:
		v.selector(where, s.Target)
	case entity.SelectFromList:
		v.selector(where, s.List)
		v.selector(where, s.Item)
	case entity.Extract:
		for _, item := range s.Items {
			v.extractItem(where, item)
		}
	case entity.ExtractList:
		v.selector(where, s.List)
		if len(s.Fields) == 0 {
			v.fail("%s: extractList without fields", where)
		}
		switch strings.ToLower(s.Format) {
		case "", "tsv", "csv":
		default:
			v.fail("%s: unknown format %q", where, s.Format)
		}
		for _, f := range s.Fields {
			if f.Name == "" {
				v.fail("%s: field without name", where)
			}
			if f.Target != nil {
				v.selector(where, *f.Target)
			}
		}
	case entity.CaptureData:
		for _, p := range s.Patterns {
			v.capture(where, p)
		}
	case entity.Branch:
		v.condition(where, s.If)
		for _, target := range []string{s.Then, s.Else} {
			if target != "" && !v.workflows[target] {
				v.fail("%s: branch target %q: %w", where, target, entity.ErrWorkflowNotFound)
			}
		}
	case entity.Fail:
	case entity.Execute:
		if s.Func == "" {
			v.fail("%s: execute without func", where)
		}
	default:
		v.fail("%s: %w: %T", where, entity.ErrUnknownAction, step)
	}
}

func (v *validator) extractItem(where string, item entity.ExtractItem) {
	if item.Name == "" {
		v.fail("%s: extract item without name", where)
	}
	switch {
	case item.From != nil && item.Source != "":
		v.fail("%s: extract %q sets both from and source", where, item.Name)
	case item.From != nil:
		v.selector(where, *item.From)
	case item.Source != "":
		switch item.Source {
		case entity.SourceTitle, entity.SourceURL, entity.SourceHost,
			entity.SourcePath, entity.SourceUserAgent, entity.SourceTimestamp:
		default:
			v.fail("%s: unknown source %q", where, item.Source)
		}
	default:
		v.fail("%s: extract %q needs from or source", where, item.Name)
	}
}

func (v *validator) capture(where string, p entity.CapturePattern) {
	if p.Name == "" {
		v.fail("%s: capture pattern without name", where)
	}
	switch p.Kind {
	case entity.CaptureRegex:
		if p.Pattern == "" {
			v.fail("%s: regex capture %q without pattern", where, p.Name)
		}
		v.regex(where, p.Pattern)
	case entity.CaptureSplit:
	case entity.CaptureSelector:
		if p.Selector == nil {
			v.fail("%s: selector capture %q without selector", where, p.Name)
			return
		}
		v.selector(where, *p.Selector)
	default:
		v.fail("%s: unknown capture kind %q", where, p.Kind)
	}
}

func (v *validator) condition(where string, cond entity.Condition) {
	switch c := cond.(type) {
	case entity.Exists:
		v.selector(where, c.Target)
	case entity.NotExists:
		v.selector(where, c.Target)
	case entity.TextPresent:
		v.selector(where, c.Where)
		v.regex(where, c.Text.Pattern)
	case entity.AnyOf:
		for _, child := range c.Conditions {
			v.condition(where, child)
		}
	case entity.AllOf:
		for _, child := range c.Conditions {
			v.condition(where, child)
		}
	case entity.Not:
		v.condition(where, c.Condition)
	case entity.URLMatches:
		if _, err := glob.Compile(c.Glob); err != nil {
			v.fail("%s: urlMatches %q: %w", where, c.Glob, err)
		}
	case nil:
		v.fail("%s: missing condition", where)
	default:
		v.fail("%s: %w: %T", where, entity.ErrUnknownCondition, cond)
	}
}

// selector checks the patterns a spec carries. CSS syntax is left to the
// document, which reports it at run time.
func (v *validator) selector(where string, spec entity.SelectorSpec) {
	for name, sm := range spec.Attributes {
		if sm.Pattern != "" {
			if _, err := regexp.Compile(sm.Pattern); err != nil {
				v.fail("%s: attribute %s pattern: %w", where, name, err)
			}
		}
	}
	if spec.Text != nil {
		v.regex(where, spec.Text.Pattern)
	}
	if spec.Within != nil {
		v.selector(where, *spec.Within)
	}
	if spec.Not != nil {
		v.selector(where, *spec.Not)
	}
	for _, s := range spec.And {
		v.selector(where, s)
	}
	for _, s := range spec.Or {
		v.selector(where, s)
	}
}

func (v *validator) regex(where, pattern string) {
	if pattern == "" {
		return
	}
	if _, err := regexp.Compile(pattern); err != nil {
		v.fail("%s: pattern %q: %w", where, pattern, err)
	}
}
