package memdom

import (
	"fmt"
	"strings"

	"carvana-workflows/internal/application/port/output"

	"golang.org/x/net/html"
)

// AppendHTML parses fragment in the context of parent (body when nil) and
// appends the resulting nodes to it.
func (d *Document) AppendHTML(parent *Element, fragment string) ([]*Element, error) {
	if parent == nil {
		parent = d.Body()
		if parent == nil {
			return nil, fmt.Errorf("append: document has no body")
		}
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent.n)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	d.mu.Lock()
	for _, n := range nodes {
		parent.n.AppendChild(n)
	}
	d.mu.Unlock()

	var added []*Element
	for _, n := range nodes {
		if el := d.wrap(n); el != nil {
			added = append(added, el)
		}
	}
	d.notifyChange()
	return added, nil
}

// MustAppendHTML is AppendHTML for fixtures.
func (d *Document) MustAppendHTML(parent *Element, fragment string) []*Element {
	added, err := d.AppendHTML(parent, fragment)
	if err != nil {
		panic(err)
	}
	return added
}

func (d *Document) Remove(el *Element) {
	d.mu.Lock()
	if el.n.Parent != nil {
		el.n.Parent.RemoveChild(el.n)
	}
	d.mu.Unlock()
	d.notifyChange()
}

// SetText replaces el's children with a single text node.
func (d *Document) SetText(el *Element, text string) {
	d.mu.Lock()
	for c := el.n.FirstChild; c != nil; {
		next := c.NextSibling
		el.n.RemoveChild(c)
		c = next
	}
	el.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	d.mu.Unlock()
	d.notifyChange()
}

func (d *Document) SetReadyState(s output.ReadyState) {
	d.mu.Lock()
	d.readyState = s
	d.mu.Unlock()
	if s == output.ReadyLoading {
		return
	}
	d.subsMu.Lock()
	fns := make([]func(), 0, len(d.readySubs))
	for _, fn := range d.readySubs {
		fns = append(fns, fn)
	}
	d.subsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Navigate changes the location the way a single-page app does: the tree
// stays, navigation subscribers are told.
func (d *Document) Navigate(href string) {
	d.mu.Lock()
	d.href = href
	d.mu.Unlock()
	loc := d.Location()

	d.subsMu.Lock()
	fns := make([]func(output.Location), 0, len(d.navSubs))
	for _, fn := range d.navSubs {
		fns = append(fns, fn)
	}
	d.subsMu.Unlock()
	for _, fn := range fns {
		fn(loc)
	}
}

// Find returns the first element matching selector, for fixtures.
func (d *Document) Find(selector string) *Element {
	els, err := d.QueryAll(nil, selector)
	if err != nil || len(els) == 0 {
		return nil
	}
	return els[0].(*Element)
}
