package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/matcher"
)

var errNoPrompter = errors.New("no prompter configured")

// captureData asks the operator for text unless the step presets it, then
// runs every pattern over it. Missing values become "" unless Required.
func (e *Engine) captureData(ctx context.Context, r *run, a entity.CaptureData) error {
	text := a.Text
	if text == "" {
		if e.prompter == nil {
			return errNoPrompter
		}
		answer, err := e.prompter.AskQuestion(ctx, a.Prompt)
		if err != nil {
			return fmt.Errorf("capture prompt: %w", err)
		}
		text = answer
	}
	if a.Name != "" {
		r.vars[a.Name] = text
	}

	for _, p := range a.Patterns {
		value, err := e.capture(text, p)
		if err != nil {
			return fmt.Errorf("capture %s: %w", p.Name, err)
		}
		if p.Required && value == "" {
			return fmt.Errorf("%s: %w", p.Name, entity.ErrRequiredCapture)
		}
		r.vars[p.Name] = value
	}
	return nil
}

func (e *Engine) capture(text string, p entity.CapturePattern) (string, error) {
	switch p.Kind {
	case entity.CaptureRegex:
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return "", fmt.Errorf("invalid pattern %q: %w", p.Pattern, err)
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", nil
		}
		// Group 0 means the first group when the pattern has one.
		group := p.Group
		if group == 0 && len(m) > 1 {
			group = 1
		}
		if group < 0 || group >= len(m) {
			return "", nil
		}
		return strings.TrimSpace(m[group]), nil

	case entity.CaptureSplit:
		sep := p.Separator
		if sep == "" {
			sep = "\n"
		}
		parts := strings.Split(text, sep)
		idx := p.Index
		if idx < 0 {
			idx += len(parts)
		}
		if idx < 0 || idx >= len(parts) {
			return "", nil
		}
		return strings.TrimSpace(parts[idx]), nil

	case entity.CaptureSelector:
		if p.Selector == nil {
			return "", fmt.Errorf("selector capture needs a selector")
		}
		el, err := e.matcher.FindOne(*p.Selector, matcher.Options{})
		if err != nil {
			return "", err
		}
		return readValue(el, p.Attribute), nil
	}
	return "", fmt.Errorf("unknown capture kind %q", p.Kind)
}
