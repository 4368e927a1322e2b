// Package snapshot turns a live page's HTML into a static document that
// memdom can replay: scripts, frames and inline handlers go, everything a
// selector or detector can look at stays.
package snapshot

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Options struct {
	// DropTags are removed with their subtree.
	DropTags []string
	// DropAttrs are removed from every element. Inline event handlers
	// (on*) are always removed.
	DropAttrs []string
	// MaxBytes caps the rendered output; zero means no cap.
	MaxBytes int
}

func DefaultOptions() Options {
	return Options{
		DropTags:  []string{"script", "noscript", "iframe", "object", "embed", "template"},
		DropAttrs: []string{"srcset", "sizes", "nonce", "integrity"},
		MaxBytes:  4 << 20,
	}
}

// Sanitize parses raw, strips it per opts and renders the whole document.
// A document over MaxBytes is an error rather than a truncated tree.
func Sanitize(raw string, opts Options) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse snapshot: %w", err)
	}
	clean(doc, opts)
	stampMeta(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", fmt.Errorf("render snapshot: %w", err)
	}
	if opts.MaxBytes > 0 && sb.Len() > opts.MaxBytes {
		return "", fmt.Errorf("snapshot is %d bytes, limit %d", sb.Len(), opts.MaxBytes)
	}
	return sb.String(), nil
}

func clean(n *html.Node, opts Options) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && slices.Contains(opts.DropTags, c.Data):
			n.RemoveChild(c)
		case c.Type == html.ElementNode:
			c.Attr = keepAttrs(c.Attr, opts)
			clean(c, opts)
		}
		c = next
	}
}

func keepAttrs(attrs []html.Attribute, opts Options) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if strings.HasPrefix(a.Key, "on") || slices.Contains(opts.DropAttrs, a.Key) {
			continue
		}
		if (a.Key == "href" || a.Key == "src" || a.Key == "action") &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// stampMeta marks the document so a replayed snapshot is recognisable.
func stampMeta(doc *html.Node) {
	head := find(doc, atom.Head)
	if head == nil {
		return
	}
	head.InsertBefore(&html.Node{
		Type:     html.ElementNode,
		Data:     "meta",
		DataAtom: atom.Meta,
		Attr: []html.Attribute{
			{Key: "name", Val: "autoflow-snapshot"},
			{Key: "content", Val: "1"},
		},
	}, head.FirstChild)
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}
