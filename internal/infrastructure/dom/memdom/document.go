// Package memdom is an in-memory element tree built on golang.org/x/net/html.
// It does no layout, so every element reports zero geometry with
// HasGeometry=false. Mutations notify subscribers synchronously on the
// mutating goroutine after the tree lock is released.
package memdom

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"carvana-workflows/internal/application/port/output"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	_ output.Page       = (*Document)(nil)
	_ output.Navigator  = (*Document)(nil)
	_ output.Serializer = (*Document)(nil)
)

type EventType string

const (
	EventClick EventType = "click"
	EventFocus EventType = "focus"
	EventInput EventType = "input"
	EventClear EventType = "clear"
	EventKey   EventType = "key"
)

// Event records one dispatched input notification.
type Event struct {
	Type   EventType
	Target *Element
	Data   string
}

type Option func(*Document)

func WithURL(href string) Option {
	return func(d *Document) { d.href = href }
}

func WithUserAgent(ua string) Option {
	return func(d *Document) { d.userAgent = ua }
}

func WithReadyState(s output.ReadyState) Option {
	return func(d *Document) { d.readyState = s }
}

type Document struct {
	mu         sync.RWMutex
	root       *html.Node
	elements   map[*html.Node]*Element
	selectors  map[string]cascadia.Matcher
	href       string
	userAgent  string
	readyState output.ReadyState
	events     []Event
	focused    *html.Node

	subsMu    sync.Mutex
	nextSub   int
	subs      map[int]func()
	readySubs map[int]func()
	navSubs   map[int]func(output.Location)
	onClick   map[*html.Node][]func()
}

func Parse(src string, opts ...Option) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &Document{
		root:       root,
		elements:   make(map[*html.Node]*Element),
		selectors:  make(map[string]cascadia.Matcher),
		href:       "about:blank",
		userAgent:  "memdom/1.0",
		readyState: output.ReadyComplete,
		subs:       make(map[int]func()),
		readySubs:  make(map[int]func()),
		navSubs:    make(map[int]func(output.Location)),
		onClick:    make(map[*html.Node][]func()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// MustParse is Parse for fixtures.
func MustParse(src string, opts ...Option) *Document {
	d, err := Parse(src, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	d.mu.RLock()
	el, ok := d.elements[n]
	d.mu.RUnlock()
	if ok {
		return el
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[n]; ok {
		return el
	}
	el = &Element{doc: d, n: n}
	d.elements[n] = el
	return el
}

func (d *Document) wrapAll(nodes []*html.Node) []output.Element {
	result := make([]output.Element, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, d.wrap(n))
	}
	return result
}

func (d *Document) node(el output.Element) *html.Node {
	e, ok := el.(*Element)
	if !ok || e == nil || e.doc != d {
		return nil
	}
	return e.n
}

func (d *Document) documentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func (d *Document) Root() output.Element {
	if n := d.documentElement(); n != nil {
		return d.wrap(n)
	}
	return nil
}

// Body returns the <body> element.
func (d *Document) Body() *Element {
	d.mu.RLock()
	n := findFirst(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	d.mu.RUnlock()
	return d.wrap(n)
}

func (d *Document) compile(selector string) (cascadia.Matcher, error) {
	d.mu.RLock()
	m, ok := d.selectors[selector]
	d.mu.RUnlock()
	if ok {
		return m, nil
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.Lock()
	d.selectors[selector] = m
	d.mu.Unlock()
	return m, nil
}

func (d *Document) scopeNode(scope output.Element) *html.Node {
	if scope == nil {
		return d.root
	}
	return d.node(scope)
}

func (d *Document) QueryAll(scope output.Element, selector string) ([]output.Element, error) {
	m, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	start := d.scopeNode(scope)
	var nodes []*html.Node
	if start != nil {
		nodes = cascadia.QueryAll(start, m)
	}
	d.mu.RUnlock()
	return d.wrapAll(nodes), nil
}

func (d *Document) Matches(el output.Element, selector string) (bool, error) {
	m, err := d.compile(selector)
	if err != nil {
		return false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.node(el)
	return n != nil && m.Match(n), nil
}

func (d *Document) ElementByID(id string) output.Element {
	d.mu.RLock()
	n := findFirst(d.root, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == id
	})
	d.mu.RUnlock()
	if n == nil {
		return nil
	}
	return d.wrap(n)
}

func (d *Document) ElementsByTag(scope output.Element, tag string) []output.Element {
	tag = strings.ToLower(tag)
	d.mu.RLock()
	nodes := collect(d.scopeNode(scope), func(n *html.Node) bool { return n.Data == tag })
	d.mu.RUnlock()
	return d.wrapAll(nodes)
}

func (d *Document) Descendants(scope output.Element) []output.Element {
	d.mu.RLock()
	nodes := collect(d.scopeNode(scope), func(*html.Node) bool { return true })
	d.mu.RUnlock()
	return d.wrapAll(nodes)
}

func (d *Document) Subscribe(fn func()) func() {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.subsMu.Lock()
		delete(d.subs, id)
		d.subsMu.Unlock()
	}
}

func (d *Document) OnReady(fn func()) func() {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.readySubs[id] = fn
	return func() {
		d.subsMu.Lock()
		delete(d.readySubs, id)
		d.subsMu.Unlock()
	}
}

func (d *Document) OnNavigate(fn func(output.Location)) func() {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.navSubs[id] = fn
	return func() {
		d.subsMu.Lock()
		delete(d.navSubs, id)
		d.subsMu.Unlock()
	}
}

func (d *Document) ReadyState() output.ReadyState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readyState
}

func (d *Document) Location() output.Location {
	d.mu.RLock()
	href := d.href
	d.mu.RUnlock()
	loc := output.Location{Href: href}
	if u, err := url.Parse(href); err == nil {
		loc.Host = u.Host
		loc.Path = u.Path
		if u.Fragment != "" {
			loc.Hash = "#" + u.Fragment
		}
	}
	return loc
}

func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := findFirst(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if n == nil {
		return ""
	}
	return strings.TrimSpace(textOf(n))
}

// HTML renders the tree as it stands, including mutations.
func (d *Document) HTML(context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return sb.String(), nil
}

func (d *Document) UserAgent() string {
	return d.userAgent
}

// Events returns a copy of every input notification dispatched so far.
func (d *Document) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Event(nil), d.events...)
}

// OnClick registers fn to run after el is clicked.
func (d *Document) OnClick(el *Element, fn func()) {
	d.subsMu.Lock()
	d.onClick[el.n] = append(d.onClick[el.n], fn)
	d.subsMu.Unlock()
}

func (d *Document) record(ev Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
}

func (d *Document) notifyChange() {
	d.subsMu.Lock()
	fns := make([]func(), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.subsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (d *Document) Click(ctx context.Context, el output.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("click: element not in document")
	}
	d.record(Event{Type: EventClick, Target: d.wrap(n)})
	d.subsMu.Lock()
	handlers := append([]func(){}, d.onClick[n]...)
	d.subsMu.Unlock()
	for _, fn := range handlers {
		fn()
	}
	return nil
}

func (d *Document) Focus(ctx context.Context, el output.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("focus: element not in document")
	}
	d.mu.Lock()
	d.focused = n
	d.mu.Unlock()
	d.record(Event{Type: EventFocus, Target: d.wrap(n)})
	return nil
}

func (d *Document) Clear(ctx context.Context, el output.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("clear: element not in document")
	}
	d.mu.Lock()
	setAttr(n, "value", "")
	d.events = append(d.events, Event{Type: EventClear, Target: d.elements[n]})
	d.mu.Unlock()
	d.notifyChange()
	return nil
}

func (d *Document) InsertText(ctx context.Context, el output.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("input: element not in document")
	}
	d.mu.Lock()
	cur, _ := attr(n, "value")
	setAttr(n, "value", cur+text)
	d.events = append(d.events, Event{Type: EventInput, Target: d.elements[n], Data: text})
	d.mu.Unlock()
	d.notifyChange()
	return nil
}

func (d *Document) PressKey(ctx context.Context, el output.Element, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := d.wrap(d.node(el))
	d.record(Event{Type: EventKey, Target: target, Data: key})
	return nil
}

func (d *Document) SetAttribute(el output.Element, name, value string) error {
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("set attribute: element not in document")
	}
	d.mu.Lock()
	setAttr(n, name, value)
	d.mu.Unlock()
	d.notifyChange()
	return nil
}

func (d *Document) RemoveAttribute(el output.Element, name string) error {
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("remove attribute: element not in document")
	}
	d.mu.Lock()
	removeAttr(n, name)
	d.mu.Unlock()
	d.notifyChange()
	return nil
}
