// Package reorder is the drag-to-reorder gesture state machine. Pointer
// and keyboard input are thin adapters over the same lift, move, commit
// and cancel transitions. Menu is the headless host: it lays a page's
// workflow menu out over TimerFrames and writes committed moves to the
// menu store.
package reorder

type Mode string

const (
	ModePointer  Mode = "pointer"
	ModeKeyboard Mode = "keyboard"
)

type AnnouncementKind string

const (
	AnnounceLift   AnnouncementKind = "lift"
	AnnounceMove   AnnouncementKind = "move"
	AnnounceDrop   AnnouncementKind = "drop"
	AnnounceCancel AnnouncementKind = "cancel"
)

// Item is one row as the surface currently lays it out. Top and Bottom are
// vertical bounds in the pointer's coordinate space.
type Item struct {
	ID       string
	Label    string
	Top      float64
	Bottom   float64
	Visible  bool
	Disabled bool
}

// Detail describes the active gesture. Indexes are positions among the
// reorderable items snapshotted when the gesture started.
type Detail struct {
	ID        string
	FromIndex int
	ToIndex   int
	Total     int
	Mode      Mode
}

// Announcement is a live-region message.
type Announcement struct {
	Kind    AnnouncementKind
	Detail  Detail
	Message string
}

type Callbacks struct {
	// OnPreview fires on every target change, and with ToIndex == FromIndex
	// when a gesture is cancelled after moving.
	OnPreview func(Detail)
	// OnReorder fires once per committed gesture whose target differs from
	// its origin.
	OnReorder func(Detail)
	Announce  func(Announcement)
}

type PointerEventType string

const (
	PointerDown   PointerEventType = "down"
	PointerMove   PointerEventType = "move"
	PointerUp     PointerEventType = "up"
	PointerCancel PointerEventType = "cancel"
)

const primaryButton = 0

type PointerEvent struct {
	Type      PointerEventType
	PointerID int
	Button    int
	IsPrimary bool
	// HandleID is the item whose drag handle received the event, if any.
	HandleID string
	Y        float64
}

const (
	KeyArrowUp   = "ArrowUp"
	KeyArrowDown = "ArrowDown"
	KeyHome      = "Home"
	KeyEnd       = "End"
	KeyEscape    = "Escape"
	KeyEnter     = "Enter"
	KeySpace     = " "
)

type KeyEvent struct {
	Key      string
	HandleID string
}

// FocusEvent reports where focus went. HandleID is empty when focus left
// every handle.
type FocusEvent struct {
	HandleID string
}

// Handler receives translated host events.
type Handler interface {
	HandlePointer(PointerEvent)
	// HandleKey reports whether the key was consumed, so the host can
	// suppress its default action.
	HandleKey(KeyEvent) bool
	HandleFocus(FocusEvent)
}

// Surface is the host list the controller drives. RequestFrame must run fn
// later, never before returning.
type Surface interface {
	Items() []Item
	Listen(h Handler) (remove func())
	RequestFrame(fn func()) (cancel func())
	CapturePointer(pointerID int)
	ReleasePointer(pointerID int)
}
