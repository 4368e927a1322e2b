package rod

import (
	"context"
	"fmt"
	"strings"

	"carvana-workflows/internal/application/port/output"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"backspace":  input.Backspace,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"space":      input.Space,
}

func lookupKey(name string) (input.Key, error) {
	k, ok := namedKeys[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unsupported key %q", name)
	}
	return k, nil
}

func (p *Page) Click(ctx context.Context, el output.Element) error {
	rel, err := p.unwrap(el)
	if err != nil {
		return err
	}
	if err := rel.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (p *Page) Focus(ctx context.Context, el output.Element) error {
	rel, err := p.unwrap(el)
	if err != nil {
		return err
	}
	if err := rel.Context(ctx).Focus(); err != nil {
		return fmt.Errorf("focus failed: %w", err)
	}
	return nil
}

func (p *Page) Clear(ctx context.Context, el output.Element) error {
	rel, err := p.unwrap(el)
	if err != nil {
		return err
	}
	rel = rel.Context(ctx)
	if err := rel.SelectAllText(); err != nil {
		return fmt.Errorf("select text: %w", err)
	}
	if err := rel.Input(""); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	return nil
}

func (p *Page) InsertText(ctx context.Context, el output.Element, text string) error {
	rel, err := p.unwrap(el)
	if err != nil {
		return err
	}
	if err := rel.Context(ctx).Input(text); err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	return nil
}

func (p *Page) PressKey(ctx context.Context, el output.Element, key string) error {
	rel, err := p.unwrap(el)
	if err != nil {
		return err
	}
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	if err := rel.Context(ctx).Type(k); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (p *Page) SetAttribute(el output.Element, name, value string) error {
	rel, err := p.unwrap(el)
	if err != nil {
		return err
	}
	ctx, cancel := p.call()
	defer cancel()
	_, err = rel.Context(ctx).Eval(`(n, v) => this.setAttribute(n, v)`, name, value)
	return err
}

func (p *Page) RemoveAttribute(el output.Element, name string) error {
	rel, err := p.unwrap(el)
	if err != nil {
		return err
	}
	ctx, cancel := p.call()
	defer cancel()
	_, err = rel.Context(ctx).Eval(`(n) => this.removeAttribute(n)`, name)
	return err
}
