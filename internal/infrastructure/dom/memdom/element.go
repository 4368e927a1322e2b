package memdom

import (
	"strings"

	"carvana-workflows/internal/application/port/output"

	"golang.org/x/net/html"
)

var _ output.Element = (*Element)(nil)

// Element wraps one element node. The document hands out a single wrapper
// per node, so wrappers compare equal by pointer.
type Element struct {
	doc *Document
	n   *html.Node
}

func (e *Element) TagName() string {
	return e.n.Data
}

func (e *Element) Attribute(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.n, name)
}

func (e *Element) TextContent() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return textOf(e.n)
}

func (e *Element) Parent() output.Element {
	e.doc.mu.RLock()
	p := e.n.Parent
	e.doc.mu.RUnlock()
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

// Layout derives display and visibility from the hidden attribute and
// inline styles of the element and its ancestors.
func (e *Element) Layout() output.Layout {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	l := output.Layout{Display: "block", Visibility: "visible"}
	visibilitySet := false
	for n := e.n; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if _, ok := attr(n, "hidden"); ok {
			l.Hidden = true
		}
		style := parseStyle(n)
		if style["display"] == "none" {
			l.Display = "none"
		}
		if v, ok := style["visibility"]; ok && !visibilitySet {
			l.Visibility = v
			visibilitySet = true
		}
	}
	return l
}

// Value is the current value attribute, which InsertText appends to.
func (e *Element) Value() string {
	v, _ := e.Attribute("value")
	return v
}

func (e *Element) String() string {
	var b strings.Builder
	b.WriteString("<" + e.n.Data)
	if id, ok := e.Attribute("id"); ok {
		b.WriteString(" id=" + id)
	}
	b.WriteString(">")
	return b.String()
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(name), Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func parseStyle(n *html.Node) map[string]string {
	raw, ok := attr(n, "style")
	if !ok {
		return nil
	}
	style := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		style[strings.ToLower(strings.TrimSpace(name))] = strings.ToLower(value)
	}
	return style
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// collect walks n's descendants in document order.
func collect(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	if n == nil {
		return nil
	}
	var result []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if pred(c) {
					result = append(result, c)
				}
				walk(c)
			}
		}
	}
	walk(n)
	return result
}
