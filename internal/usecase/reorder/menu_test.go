package reorder

import (
	"testing"

	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/logger"
	"carvana-workflows/internal/infrastructure/store"
	"carvana-workflows/internal/usecase/preferences"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func menuPage() *entity.PageDefinition {
	return &entity.PageDefinition{
		ID: "inventory",
		Workflows: []entity.WorkflowDefinition{
			{ID: "a", Label: "Approve"},
			{ID: "h", Label: "Hold"},
			{ID: "b", Label: "Block"},
			{ID: "c"},
			{ID: "helper", Internal: true},
		},
	}
}

func newMenuStore(t *testing.T, hidden ...string) (*preferences.MenuStore, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	menus := preferences.NewMenuStore(kv, logger.Nop())
	page := menuPage()
	for _, id := range hidden {
		_, err := menus.SetHidden(page.ID, page.RuntimeIDs(), id, true)
		require.NoError(t, err)
	}
	return menus, kv
}

func TestMenu_DragPersistsOrder(t *testing.T) {
	menus, kv := newMenuStore(t, "h")
	var said []Announcement
	m := NewMenu(menus, menuPage(), MenuOptions{Announce: func(a Announcement) { said = append(said, a) }})
	defer m.Close()

	prefs, moved := m.Drag("a", 2)
	require.True(t, moved)
	assert.Equal(t, []string{"b", "h", "c", "a"}, prefs.Order, "the hidden entry keeps its slot")
	assert.Equal(t, []string{"b", "c", "a"}, preferences.Visible(prefs))

	require.NotEmpty(t, said)
	drop := said[len(said)-1]
	assert.Equal(t, AnnounceDrop, drop.Kind)
	assert.Equal(t, Detail{ID: "a", FromIndex: 0, ToIndex: 2, Total: 3, Mode: ModePointer}, drop.Detail)
	assert.Equal(t, "Approve dropped at position 3 of 3.", drop.Message)

	reloaded := preferences.NewMenuStore(kv, logger.Nop())
	assert.Equal(t, []string{"b", "h", "c", "a"}, reloaded.Ordered("inventory", menuPage().RuntimeIDs()))
}

func TestMenu_KeyboardMove(t *testing.T) {
	menus, _ := newMenuStore(t, "h")
	m := NewMenu(menus, menuPage(), MenuOptions{})
	defer m.Close()

	prefs, moved := m.Move("c", 0)
	require.True(t, moved)
	assert.Equal(t, []string{"c", "h", "a", "b"}, prefs.Order)

	prefs, moved = m.Move("c", 0)
	assert.False(t, moved, "already first")
	assert.Equal(t, []string{"c", "h", "a", "b"}, prefs.Order)

	prefs, moved = m.Move("a", 99)
	require.True(t, moved)
	assert.Equal(t, []string{"c", "h", "b", "a"}, prefs.Order, "targets clamp to the last visible row")
}

func TestMenu_UnknownOrHiddenIsNoop(t *testing.T) {
	menus, _ := newMenuStore(t, "h")
	m := NewMenu(menus, menuPage(), MenuOptions{})
	defer m.Close()

	for _, id := range []string{"h", "helper", "nowhere"} {
		prefs, moved := m.Move(id, 0)
		assert.False(t, moved, id)
		assert.Equal(t, []string{"a", "h", "b", "c"}, prefs.Order, id)

		_, moved = m.Drag(id, 0)
		assert.False(t, moved, id)
	}
}

func TestMenuCallbacks_RenderedSurface(t *testing.T) {
	menus, _ := newMenuStore(t)
	page := menuPage()
	var got []string
	cb := MenuCallbacks(menus, page.ID, page.RuntimeIDs(), func(prefs entity.MenuPrefs, moved bool) {
		assert.True(t, moved)
		got = prefs.Order
	})

	s := &fakeSurface{items: rows("a", "h", "b", "c")}
	c := New(s, cb, Options{})
	c.Attach()
	defer c.Detach()

	c.HandlePointer(PointerEvent{Type: PointerDown, PointerID: 7, IsPrimary: true, HandleID: "a", Y: 10})
	c.HandlePointer(PointerEvent{Type: PointerUp, PointerID: 7, IsPrimary: true, Y: 90})
	assert.Equal(t, []string{"h", "b", "a", "c"}, got)
}
