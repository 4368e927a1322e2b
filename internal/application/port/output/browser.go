package output

import (
	"context"

	"carvana-workflows/internal/domain/entity"
)

type ReadyState string

const (
	ReadyLoading     ReadyState = "loading"
	ReadyInteractive ReadyState = "interactive"
	ReadyComplete    ReadyState = "complete"
)

type Location struct {
	Href string
	Host string
	Path string
	Hash string
}

// Layout is the subset of computed style and geometry visibility depends on.
// HasGeometry is false for hosts that do no layout; their zero sizes must
// not be read as "collapsed".
type Layout struct {
	Display     string
	Visibility  string
	Hidden      bool
	Width       float64
	Height      float64
	HasGeometry bool
}

// Element is a read-only handle to one node of the element tree.
// Implementations return zero values when the node is gone.
type Element interface {
	TagName() string
	Attribute(name string) (string, bool)
	TextContent() string
	// Parent returns nil at the document element.
	Parent() Element
	Layout() Layout
}

// Document is the query side of the element tree. A nil scope means the
// whole document. Absence is an empty result, never an error; errors are
// reserved for malformed selectors and host failures.
type Document interface {
	Root() Element
	QueryAll(scope Element, selector string) ([]Element, error)
	Matches(el Element, selector string) (bool, error)
	ElementByID(id string) Element
	ElementsByTag(scope Element, tag string) []Element
	Descendants(scope Element) []Element

	// Subscribe registers fn for any subtree or attribute change. fn may be
	// called from any goroutine and must not block.
	Subscribe(fn func()) (cancel func())
	ReadyState() ReadyState
	OnReady(fn func()) (cancel func())

	Location() Location
	Title() string
	UserAgent() string
}

// Input dispatches notifications to elements.
type Input interface {
	Click(ctx context.Context, el Element) error
	Focus(ctx context.Context, el Element) error
	Clear(ctx context.Context, el Element) error
	// InsertText emits exactly one input notification.
	InsertText(ctx context.Context, el Element, text string) error
	PressKey(ctx context.Context, el Element, key string) error
	SetAttribute(el Element, name, value string) error
	RemoveAttribute(el Element, name string) error
}

type Page interface {
	Document
	Input
}

// Navigator is implemented by pages that observe history, hash and
// popstate navigation.
type Navigator interface {
	OnNavigate(fn func(Location)) (cancel func())
}

type Screenshotter interface {
	Screenshot(ctx context.Context) (*entity.Screenshot, error)
}

// Serializer exposes the page's current markup.
type Serializer interface {
	HTML(ctx context.Context) (string, error)
}
