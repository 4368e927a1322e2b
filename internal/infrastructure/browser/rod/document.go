package rod

import (
	"fmt"
	"net/url"
	"strings"

	"carvana-workflows/internal/application/port/output"

	"github.com/go-rod/rod"
)

var _ output.Element = (*Element)(nil)

// Element is a handle to a remote node. rod hands out a fresh handle per
// query, so two Elements for the same node are not pointer-equal.
type Element struct {
	page *Page
	el   *rod.Element
}

func (p *Page) wrap(el *rod.Element) *Element {
	if el == nil {
		return nil
	}
	return &Element{page: p, el: el}
}

func (p *Page) wrapAll(els rod.Elements) []output.Element {
	result := make([]output.Element, 0, len(els))
	for _, el := range els {
		result = append(result, p.wrap(el))
	}
	return result
}

func (p *Page) unwrap(el output.Element) (*rod.Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil || e.page != p {
		return nil, fmt.Errorf("element %v does not belong to this page", el)
	}
	return e.el, nil
}

func (e *Element) TagName() string {
	ctx, cancel := e.page.call()
	defer cancel()
	res, err := e.el.Context(ctx).Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (e *Element) Attribute(name string) (string, bool) {
	ctx, cancel := e.page.call()
	defer cancel()
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *Element) TextContent() string {
	ctx, cancel := e.page.call()
	defer cancel()
	res, err := e.el.Context(ctx).Eval(`() => this.textContent || ""`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (e *Element) Parent() output.Element {
	ctx, cancel := e.page.call()
	defer cancel()
	parent, err := e.el.Context(ctx).Parent()
	if err != nil {
		return nil
	}
	// Handles bound to ctx stop working once cancel runs.
	return e.page.wrap(parent.Context(e.page.page.GetContext()))
}

const layoutJS = `() => {
	const s = window.getComputedStyle(this);
	const r = this.getBoundingClientRect();
	return {
		display: s.display,
		visibility: s.visibility,
		hidden: this.hidden === true,
		width: r.width,
		height: r.height,
	};
}`

func (e *Element) Layout() output.Layout {
	ctx, cancel := e.page.call()
	defer cancel()
	res, err := e.el.Context(ctx).Eval(layoutJS)
	if err != nil {
		return output.Layout{Hidden: true}
	}
	v := res.Value
	return output.Layout{
		Display:     v.Get("display").Str(),
		Visibility:  v.Get("visibility").Str(),
		Hidden:      v.Get("hidden").Bool(),
		Width:       v.Get("width").Num(),
		Height:      v.Get("height").Num(),
		HasGeometry: true,
	}
}

func (e *Element) String() string {
	return e.el.String()
}

func (p *Page) Root() output.Element {
	els, err := p.QueryAll(nil, "html")
	if err != nil || len(els) == 0 {
		return nil
	}
	return els[0]
}

func (p *Page) QueryAll(scope output.Element, selector string) ([]output.Element, error) {
	if scope == nil {
		els, err := p.page.Elements(selector)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", selector, err)
		}
		return p.wrapAll(els), nil
	}
	el, err := p.unwrap(scope)
	if err != nil {
		return nil, err
	}
	els, err := el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return p.wrapAll(els), nil
}

func (p *Page) Matches(el output.Element, selector string) (bool, error) {
	rel, err := p.unwrap(el)
	if err != nil {
		return false, err
	}
	ok, err := rel.Matches(selector)
	if err != nil {
		return false, fmt.Errorf("match %q: %w", selector, err)
	}
	return ok, nil
}

func (p *Page) ElementByID(id string) output.Element {
	els, err := p.QueryAll(nil, attrSelector("id", id))
	if err != nil || len(els) == 0 {
		return nil
	}
	return els[0]
}

func (p *Page) ElementsByTag(scope output.Element, tag string) []output.Element {
	els, _ := p.QueryAll(scope, tag)
	return els
}

func (p *Page) Descendants(scope output.Element) []output.Element {
	els, _ := p.QueryAll(scope, "*")
	return els
}

func (p *Page) ReadyState() output.ReadyState {
	res, err := p.page.Eval(`() => document.readyState`)
	if err != nil {
		return output.ReadyLoading
	}
	return output.ReadyState(res.Value.Str())
}

func (p *Page) Location() output.Location {
	info, err := p.page.Info()
	if err != nil {
		return output.Location{}
	}
	loc := output.Location{Href: info.URL}
	if u, err := url.Parse(info.URL); err == nil {
		loc.Host = u.Host
		loc.Path = u.Path
		if u.Fragment != "" {
			loc.Hash = "#" + u.Fragment
		}
	}
	return loc
}

func (p *Page) Title() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(info.Title)
}

func (p *Page) UserAgent() string {
	res, err := p.page.Eval(`() => navigator.userAgent`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func attrSelector(name, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return fmt.Sprintf(`[%s="%s"]`, name, escaped)
}
