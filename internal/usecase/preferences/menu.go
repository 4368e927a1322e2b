package preferences

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
)

const menuVersion = 2

// Reconcile fits state to the current runtime ids: unknown ids are dropped,
// new ids are appended in runtime order. changed is false when the result
// equals state field by field, so callers can skip the write.
func Reconcile(state entity.MenuPrefs, runtimeIDs []string) (entity.MenuPrefs, bool) {
	known := make(map[string]bool, len(runtimeIDs))
	for _, id := range runtimeIDs {
		known[id] = true
	}

	next := entity.MenuPrefs{
		Version:         menuVersion,
		Order:           filterKnown(state.Order, known),
		HiddenInActions: filterKnown(state.HiddenInActions, known),
	}
	inOrder := make(map[string]bool, len(next.Order))
	for _, id := range next.Order {
		inOrder[id] = true
	}
	for _, id := range runtimeIDs {
		if !inOrder[id] {
			next.Order = append(next.Order, id)
			inOrder[id] = true
		}
	}

	changed := state.Version != next.Version ||
		!slices.Equal(state.Order, next.Order) ||
		!slices.Equal(state.HiddenInActions, next.HiddenInActions) ||
		state.Order == nil || state.HiddenInActions == nil
	return next, changed
}

// filterKnown keeps ids present in known, first occurrence only. The result
// is never nil so it encodes as [].
func filterKnown(ids []string, known map[string]bool) []string {
	result := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if known[id] && !seen[id] {
			result = append(result, id)
			seen[id] = true
		}
	}
	return result
}

// Visible is order without hidden ids.
func Visible(state entity.MenuPrefs) []string {
	hidden := make(map[string]bool, len(state.HiddenInActions))
	for _, id := range state.HiddenInActions {
		hidden[id] = true
	}
	result := make([]string, 0, len(state.Order))
	for _, id := range state.Order {
		if !hidden[id] {
			result = append(result, id)
		}
	}
	return result
}

// MoveVisible moves id to target within the visible subsequence of order.
// Hidden ids keep their slots in the combined order. ok is false when id is
// not visible or the clamped target is its current position.
func MoveVisible(order, hidden []string, id string, target int) ([]string, bool) {
	isHidden := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		isHidden[h] = true
	}

	visible := make([]string, 0, len(order))
	for _, o := range order {
		if !isHidden[o] {
			visible = append(visible, o)
		}
	}
	from := slices.Index(visible, id)
	if from < 0 {
		return order, false
	}
	target = max(0, min(target, len(visible)-1))
	if target == from {
		return order, false
	}

	visible = slices.Delete(visible, from, from+1)
	visible = slices.Insert(visible, target, id)

	result := make([]string, 0, len(order))
	next := 0
	for _, o := range order {
		if isHidden[o] {
			result = append(result, o)
			continue
		}
		result = append(result, visible[next])
		next++
	}
	return result, true
}

type MenuStore struct {
	kv     output.KVStore
	logger output.LoggerPort

	mu    sync.Mutex
	cache map[string]entity.MenuPrefs
}

func NewMenuStore(kv output.KVStore, logger output.LoggerPort) *MenuStore {
	return &MenuStore{
		kv:     kv,
		logger: logger,
		cache:  make(map[string]entity.MenuPrefs),
	}
}

// Load reads and reconciles a page's menu prefs, writing back only when
// reconciliation or a legacy migration changed something.
func (s *MenuStore) Load(pageID string, runtimeIDs []string) entity.MenuPrefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMenu(s.loadLocked(pageID, runtimeIDs))
}

func (s *MenuStore) loadLocked(pageID string, runtimeIDs []string) entity.MenuPrefs {
	state, cached := s.cache[pageID]
	if !cached {
		var migrated bool
		if raw, ok := s.kv.Get(MenuKey(pageID)); ok {
			state, migrated = decodeMenu(raw)
			if migrated {
				s.logger.Info("Migrated legacy menu prefs", "page", pageID)
			}
		}
		next, changed := Reconcile(state, runtimeIDs)
		if changed || migrated {
			s.saveLocked(pageID, next)
		} else {
			s.cache[pageID] = next
		}
		return next
	}

	next, changed := Reconcile(state, runtimeIDs)
	if changed {
		s.saveLocked(pageID, next)
	}
	return next
}

func (s *MenuStore) Ordered(pageID string, runtimeIDs []string) []string {
	return s.Load(pageID, runtimeIDs).Order
}

func (s *MenuStore) Visible(pageID string, runtimeIDs []string) []string {
	return Visible(s.Load(pageID, runtimeIDs))
}

func (s *MenuStore) SetHidden(pageID string, runtimeIDs []string, id string, hidden bool) (entity.MenuPrefs, error) {
	if !slices.Contains(runtimeIDs, id) {
		return entity.MenuPrefs{}, fmt.Errorf("%w: %s", entity.ErrWorkflowNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state := cloneMenu(s.loadLocked(pageID, runtimeIDs))
	isHidden := slices.Contains(state.HiddenInActions, id)
	switch {
	case hidden && !isHidden:
		state.HiddenInActions = append(state.HiddenInActions, id)
	case !hidden && isHidden:
		state.HiddenInActions = slices.DeleteFunc(state.HiddenInActions, func(h string) bool { return h == id })
	default:
		return cloneMenu(state), nil
	}
	s.saveLocked(pageID, state)
	return cloneMenu(state), nil
}

// ApplyMove moves id to target among the visible workflows and persists the
// combined order. moved is false for no-op moves, which are not written.
func (s *MenuStore) ApplyMove(pageID string, runtimeIDs []string, id string, target int) (entity.MenuPrefs, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := cloneMenu(s.loadLocked(pageID, runtimeIDs))
	order, moved := MoveVisible(state.Order, state.HiddenInActions, id, target)
	if !moved {
		return state, false
	}
	state.Order = order
	s.saveLocked(pageID, state)
	return cloneMenu(state), true
}

func (s *MenuStore) saveLocked(pageID string, state entity.MenuPrefs) {
	s.cache[pageID] = cloneMenu(state)
	if err := s.kv.Set(MenuKey(pageID), state); err != nil {
		s.logger.Warn("Menu prefs not persisted", "page", pageID, "error", err)
	}
}

func cloneMenu(m entity.MenuPrefs) entity.MenuPrefs {
	m.Order = append(make([]string, 0, len(m.Order)), m.Order...)
	m.HiddenInActions = append(make([]string, 0, len(m.HiddenInActions)), m.HiddenInActions...)
	return m
}

var (
	legacyOrderKeys  = []string{"workflowOrder", "sequence", "ordered"}
	legacyHiddenKeys = []string{"hidden", "hiddenWorkflows", "hiddenIds"}
	legacyShowKeys   = []string{"show", "visibility"}
)

// decodeMenu accepts the canonical shape and every historical variant:
// renamed order and hidden fields, a bare order array, and a show map where
// false means hidden. migrated reports a non-canonical input. Undecodable
// input yields an empty state.
func decodeMenu(raw json.RawMessage) (entity.MenuPrefs, bool) {
	var bare []string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return entity.MenuPrefs{Order: bare}, true
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return entity.MenuPrefs{}, false
	}

	var state entity.MenuPrefs
	migrated := false
	if v, ok := fields["version"]; ok {
		_ = json.Unmarshal(v, &state.Version)
	}
	if !decodeList(fields, "order", &state.Order) {
		for _, k := range legacyOrderKeys {
			if decodeList(fields, k, &state.Order) {
				migrated = true
				break
			}
		}
	}
	if !decodeList(fields, "hiddenInActions", &state.HiddenInActions) {
		for _, k := range legacyHiddenKeys {
			if decodeList(fields, k, &state.HiddenInActions) {
				migrated = true
				break
			}
		}
	}
	if state.HiddenInActions == nil {
		for _, k := range legacyShowKeys {
			if hidden, ok := decodeShowMap(fields, k); ok {
				state.HiddenInActions = hidden
				migrated = true
				break
			}
		}
	}
	return state, migrated
}

func decodeList(fields map[string]json.RawMessage, key string, dst *[]string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	var list []string
	if err := json.Unmarshal(v, &list); err != nil {
		return false
	}
	*dst = list
	return true
}

func decodeShowMap(fields map[string]json.RawMessage, key string) ([]string, bool) {
	v, ok := fields[key]
	if !ok {
		return nil, false
	}
	var show map[string]bool
	if err := json.Unmarshal(v, &show); err != nil {
		return nil, false
	}
	hidden := make([]string, 0)
	for id, shown := range show {
		if !shown {
			hidden = append(hidden, id)
		}
	}
	sort.Strings(hidden)
	return hidden, true
}
