package reorder

import (
	"slices"
	"sync"

	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/preferences"
)

// MenuCallbacks persists every committed gesture through menus. Detail
// indexes are positions among the visible workflows, which is the index
// space ApplyMove works in, so hidden workflows keep their slots.
func MenuCallbacks(menus *preferences.MenuStore, pageID string, runtimeIDs []string, saved func(entity.MenuPrefs, bool)) Callbacks {
	return Callbacks{
		OnReorder: func(d Detail) {
			prefs, moved := menus.ApplyMove(pageID, runtimeIDs, d.ID, d.ToIndex)
			if saved != nil {
				saved(prefs, moved)
			}
		},
	}
}

type MenuOptions struct {
	// Frames paces pointer moves. The zero value uses DefaultFrameInterval.
	Frames   TimerFrames
	Announce func(Announcement)
}

// Menu reorders one page's workflow menu for hosts without a rendered
// list, such as the CLI and the HTTP API. Rows are laid out one unit tall
// in visible order and every call is a complete gesture.
type Menu struct {
	menus      *preferences.MenuStore
	pageID     string
	runtimeIDs []string

	mu      sync.Mutex
	surface *menuSurface
	ctrl    *Controller
	result  entity.MenuPrefs
	moved   bool
}

func NewMenu(menus *preferences.MenuStore, page *entity.PageDefinition, opts MenuOptions) *Menu {
	labels := make(map[string]string, len(page.Workflows))
	for _, wf := range page.Workflows {
		labels[wf.ID] = wf.Label
	}
	m := &Menu{
		menus:      menus,
		pageID:     page.ID,
		runtimeIDs: page.RuntimeIDs(),
		surface:    &menuSurface{TimerFrames: NewTimerFrames(opts.Frames.Interval), labels: labels},
	}
	cb := MenuCallbacks(menus, m.pageID, m.runtimeIDs, func(prefs entity.MenuPrefs, moved bool) {
		m.result, m.moved = prefs, moved
	})
	cb.Announce = opts.Announce
	m.ctrl = New(m.surface, cb, Options{})
	m.ctrl.Attach()
	return m
}

// Move runs a keyboard gesture taking id to target among the visible
// workflows. It reports false when nothing was written.
func (m *Menu) Move(id string, target int) (entity.MenuPrefs, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begin()

	if !m.ctrl.HandleKey(KeyEvent{Key: KeySpace, HandleID: id}) {
		return m.result, false
	}
	d, _ := m.ctrl.Active()
	key, steps := KeyArrowDown, target-d.FromIndex
	if steps < 0 {
		key, steps = KeyArrowUp, -steps
	}
	for range min(steps, d.Total) {
		m.ctrl.HandleKey(KeyEvent{Key: key, HandleID: id})
	}
	m.ctrl.HandleKey(KeyEvent{Key: KeyEnter, HandleID: id})
	return m.result, m.moved
}

// Drag runs a pointer gesture from id's row to the middle of row target.
func (m *Menu) Drag(id string, target int) (entity.MenuPrefs, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begin()

	from := slices.IndexFunc(m.surface.Items(), func(it Item) bool { return it.ID == id })
	if from < 0 {
		return m.result, false
	}
	y := float64(target) + 0.5
	m.ctrl.HandlePointer(PointerEvent{Type: PointerDown, PointerID: 1, IsPrimary: true, HandleID: id, Y: float64(from) + 0.5})
	m.ctrl.HandlePointer(PointerEvent{Type: PointerMove, PointerID: 1, IsPrimary: true, Y: y})
	m.ctrl.HandlePointer(PointerEvent{Type: PointerUp, PointerID: 1, IsPrimary: true, Y: y})
	return m.result, m.moved
}

// Close detaches the controller.
func (m *Menu) Close() {
	m.ctrl.Detach()
}

func (m *Menu) begin() {
	m.surface.setRows(m.menus.Visible(m.pageID, m.runtimeIDs))
	m.result, m.moved = m.menus.Load(m.pageID, m.runtimeIDs), false
}

type menuSurface struct {
	TimerFrames
	labels map[string]string

	mu      sync.Mutex
	items   []Item
	handler Handler
}

func (s *menuSurface) setRows(ids []string) {
	items := make([]Item, len(ids))
	for i, id := range ids {
		items[i] = Item{ID: id, Label: s.labels[id], Top: float64(i), Bottom: float64(i + 1), Visible: true}
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *menuSurface) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

func (s *menuSurface) Listen(h Handler) func() {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
	}
}

// Rows have no pointer to capture.
func (s *menuSurface) CapturePointer(int) {}
func (s *menuSurface) ReleasePointer(int) {}
