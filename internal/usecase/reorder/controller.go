package reorder

import (
	"fmt"
	"slices"
	"sync"
)

type Options struct {
	// ActivationKeys start and commit keyboard gestures. Defaults to Space
	// and Enter.
	ActivationKeys []string
}

var _ Handler = (*Controller)(nil)

type slot struct {
	id     string
	label  string
	top    float64
	bottom float64
}

type gesture struct {
	mode      Mode
	id        string
	label     string
	pointerID int
	slots     []slot
	from      int
	target    int
}

func (g *gesture) detail() Detail {
	return Detail{ID: g.id, FromIndex: g.from, ToIndex: g.target, Total: len(g.slots), Mode: g.mode}
}

// Controller runs at most one gesture at a time. Callbacks are invoked
// after the controller's lock is released, so they may call back into it.
type Controller struct {
	surface Surface
	cb      Callbacks
	keys    []string

	mu          sync.Mutex
	remove      func()
	g           *gesture
	frameCancel func()
	pendingY    float64
	queue       []func()
}

func New(surface Surface, cb Callbacks, opts Options) *Controller {
	keys := opts.ActivationKeys
	if len(keys) == 0 {
		keys = []string{KeySpace, KeyEnter}
	}
	return &Controller{surface: surface, cb: cb, keys: keys}
}

// Attach installs the controller's listener. It is idempotent.
func (c *Controller) Attach() {
	c.mu.Lock()
	if c.remove != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	remove := c.surface.Listen(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remove != nil {
		remove()
		return
	}
	c.remove = remove
}

// Detach removes the listener and drops any gesture without callbacks. It is
// safe at any time, including mid-gesture.
func (c *Controller) Detach() {
	c.mu.Lock()
	remove := c.remove
	c.remove = nil
	g := c.g
	c.g = nil
	c.cancelFrameLocked()
	c.queue = nil
	c.mu.Unlock()

	if g != nil && g.mode == ModePointer {
		c.surface.ReleasePointer(g.pointerID)
	}
	if remove != nil {
		remove()
	}
}

func (c *Controller) Active() (Detail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g == nil {
		return Detail{}, false
	}
	return c.g.detail(), true
}

// Refresh re-snapshots the items after the host re-rendered and relocates
// the active item. The gesture is cancelled if its item disappeared.
func (c *Controller) Refresh() {
	c.run(func() {
		g := c.g
		if g == nil {
			return
		}
		slots := c.snapshot()
		idx := slices.IndexFunc(slots, func(s slot) bool { return s.id == g.id })
		if idx < 0 {
			c.cancelLocked()
			return
		}
		offset := g.target - g.from
		g.slots = slots
		g.from = idx
		g.target = clamp(idx+offset, 0, len(slots)-1)
	})
}

func (c *Controller) HandlePointer(ev PointerEvent) {
	c.run(func() {
		switch ev.Type {
		case PointerDown:
			if c.g != nil || ev.Button != primaryButton || !ev.IsPrimary {
				return
			}
			if c.startLocked(ModePointer, ev.HandleID) {
				pid := ev.PointerID
				c.g.pointerID = pid
				c.queue = append(c.queue, func() { c.surface.CapturePointer(pid) })
			}
		case PointerMove:
			if !c.ownsPointer(ev) {
				return
			}
			c.pendingY = ev.Y
			if c.frameCancel == nil {
				c.frameCancel = c.surface.RequestFrame(c.onFrame)
			}
		case PointerUp:
			if !c.ownsPointer(ev) {
				return
			}
			// The release position supersedes any move still waiting for
			// its frame.
			c.cancelFrameLocked()
			c.setTargetLocked(c.targetFor(ev.Y))
			c.commitLocked()
		case PointerCancel:
			if c.ownsPointer(ev) {
				c.cancelLocked()
			}
		}
	})
}

func (c *Controller) HandleKey(ev KeyEvent) bool {
	consumed := false
	c.run(func() {
		g := c.g
		activation := slices.Contains(c.keys, ev.Key)

		if g == nil {
			if activation {
				consumed = c.startLocked(ModeKeyboard, ev.HandleID)
			}
			return
		}
		if g.mode == ModePointer {
			if ev.Key == KeyEscape {
				c.cancelLocked()
				consumed = true
			}
			return
		}
		if ev.HandleID != g.id {
			return
		}

		consumed = true
		switch {
		case activation:
			c.commitLocked()
		case ev.Key == KeyArrowUp:
			c.setTargetLocked(g.target - 1)
		case ev.Key == KeyArrowDown:
			c.setTargetLocked(g.target + 1)
		case ev.Key == KeyHome:
			c.setTargetLocked(0)
		case ev.Key == KeyEnd:
			c.setTargetLocked(len(g.slots) - 1)
		case ev.Key == KeyEscape:
			c.cancelLocked()
		default:
			consumed = false
		}
	})
	return consumed
}

func (c *Controller) HandleFocus(ev FocusEvent) {
	c.run(func() {
		if c.g != nil && c.g.mode == ModeKeyboard && ev.HandleID != c.g.id {
			c.cancelLocked()
		}
	})
}

func (c *Controller) onFrame() {
	c.run(func() {
		if c.frameCancel == nil {
			return
		}
		c.frameCancel = nil
		if c.g != nil {
			c.setTargetLocked(c.targetFor(c.pendingY))
		}
	})
}

// run executes fn under the lock, then flushes the callbacks fn queued.
func (c *Controller) run(fn func()) {
	c.mu.Lock()
	fn()
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, call := range queued {
		call()
	}
}

func (c *Controller) ownsPointer(ev PointerEvent) bool {
	return c.g != nil && c.g.mode == ModePointer && c.g.pointerID == ev.PointerID
}

func (c *Controller) snapshot() []slot {
	items := c.surface.Items()
	slots := make([]slot, 0, len(items))
	for _, it := range items {
		if !it.Visible || it.Disabled || it.ID == "" {
			continue
		}
		label := it.Label
		if label == "" {
			label = it.ID
		}
		slots = append(slots, slot{id: it.ID, label: label, top: it.Top, bottom: it.Bottom})
	}
	return slots
}

func (c *Controller) startLocked(mode Mode, id string) bool {
	slots := c.snapshot()
	idx := slices.IndexFunc(slots, func(s slot) bool { return s.id == id })
	if idx < 0 {
		return false
	}
	c.g = &gesture{mode: mode, id: id, label: slots[idx].label, slots: slots, from: idx, target: idx}
	c.announceLocked(AnnounceLift)
	return true
}

// targetFor is the first slot whose midpoint lies below y, else the last.
func (c *Controller) targetFor(y float64) int {
	slots := c.g.slots
	for i, s := range slots {
		if y < (s.top+s.bottom)/2 {
			return i
		}
	}
	return len(slots) - 1
}

func (c *Controller) setTargetLocked(target int) {
	g := c.g
	target = clamp(target, 0, len(g.slots)-1)
	if target == g.target {
		return
	}
	g.target = target
	d := g.detail()
	if c.cb.OnPreview != nil {
		c.queue = append(c.queue, func() { c.cb.OnPreview(d) })
	}
	c.announceLocked(AnnounceMove)
}

func (c *Controller) commitLocked() {
	g := c.g
	if g.target == g.from {
		c.cancelLocked()
		return
	}
	d := g.detail()
	if c.cb.OnReorder != nil {
		c.queue = append(c.queue, func() { c.cb.OnReorder(d) })
	}
	c.announceLocked(AnnounceDrop)
	c.endLocked()
}

// cancelLocked ends the gesture. If the target had moved, a preview back to
// the origin is emitted so the host can undo its rendering.
func (c *Controller) cancelLocked() {
	g := c.g
	if g.target != g.from {
		g.target = g.from
		d := g.detail()
		if c.cb.OnPreview != nil {
			c.queue = append(c.queue, func() { c.cb.OnPreview(d) })
		}
	}
	c.announceLocked(AnnounceCancel)
	c.endLocked()
}

func (c *Controller) endLocked() {
	g := c.g
	c.g = nil
	c.cancelFrameLocked()
	if g.mode == ModePointer {
		c.queue = append(c.queue, func() { c.surface.ReleasePointer(g.pointerID) })
	}
}

func (c *Controller) cancelFrameLocked() {
	if c.frameCancel != nil {
		c.frameCancel()
		c.frameCancel = nil
	}
}

func (c *Controller) announceLocked(kind AnnouncementKind) {
	if c.cb.Announce == nil {
		return
	}
	g := c.g
	a := Announcement{Kind: kind, Detail: g.detail(), Message: message(kind, g)}
	c.queue = append(c.queue, func() { c.cb.Announce(a) })
}

func message(kind AnnouncementKind, g *gesture) string {
	pos, total := g.target+1, len(g.slots)
	switch kind {
	case AnnounceLift:
		if g.mode == ModeKeyboard {
			return fmt.Sprintf("Picked up %s, position %d of %d. Use the arrow keys to move, Enter to drop, Escape to cancel.", g.label, pos, total)
		}
		return fmt.Sprintf("Picked up %s, position %d of %d.", g.label, pos, total)
	case AnnounceMove:
		return fmt.Sprintf("%s moved to position %d of %d.", g.label, pos, total)
	case AnnounceDrop:
		return fmt.Sprintf("%s dropped at position %d of %d.", g.label, pos, total)
	default:
		return fmt.Sprintf("Reorder cancelled. %s returned to position %d of %d.", g.label, g.from+1, total)
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
