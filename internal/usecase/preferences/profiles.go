package preferences

import (
	"fmt"
	"maps"
	"sync"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/store"
)

// ProfileSlots lists the slots in display order.
var ProfileSlots = []entity.ProfileID{entity.ProfileP1, entity.ProfileP2, entity.ProfileP3}

var profileLabels = map[entity.ProfileID]string{
	entity.ProfileP1: "Profile 1",
	entity.ProfileP2: "Profile 2",
	entity.ProfileP3: "Profile 3",
}

func ValidProfile(id entity.ProfileID) bool {
	_, ok := profileLabels[id]
	return ok
}

func ProfileLabel(id entity.ProfileID) string {
	return profileLabels[id]
}

// ResolvedOptions is the templating input for one run.
type ResolvedOptions struct {
	Profile entity.ProfileID
	Label   string
	Values  map[string]any
}

type ProfileStore struct {
	kv     output.KVStore
	logger output.LoggerPort

	mu    sync.Mutex
	cache map[string]entity.Profiles
}

func NewProfileStore(kv output.KVStore, logger output.LoggerPort) *ProfileStore {
	return &ProfileStore{
		kv:     kv,
		logger: logger,
		cache:  make(map[string]entity.Profiles),
	}
}

// Get returns a deep copy; edits to it never reach the store.
func (s *ProfileStore) Get(workflowID string) entity.Profiles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProfiles(s.loadLocked(workflowID))
}

func (s *ProfileStore) loadLocked(workflowID string) entity.Profiles {
	if p, ok := s.cache[workflowID]; ok {
		return p
	}

	var p entity.Profiles
	if _, stored := s.kv.Get(ProfilesKey(workflowID)); stored {
		p = store.Get(s.kv, ProfilesKey(workflowID), entity.Profiles{})
	} else if _, legacy := s.kv.Get(legacyOptionsKey(workflowID)); legacy {
		p = s.migrateLocked(workflowID)
	}
	p = normalizeProfiles(p)
	s.cache[workflowID] = p
	return p
}

// migrateLocked moves single-profile option values into p1 and removes the
// legacy key. The new key is written first, so once it exists migration
// never runs again.
func (s *ProfileStore) migrateLocked(workflowID string) entity.Profiles {
	values := store.Get(s.kv, legacyOptionsKey(workflowID), map[string]any{})
	p := normalizeProfiles(entity.Profiles{
		Active:   entity.ProfileP1,
		Profiles: map[entity.ProfileID]map[string]any{entity.ProfileP1: values},
	})
	if err := s.kv.Set(ProfilesKey(workflowID), p); err != nil {
		s.logger.Warn("Profiles not persisted", "workflow", workflowID, "error", err)
		return p
	}
	if err := s.kv.Delete(legacyOptionsKey(workflowID)); err != nil {
		s.logger.Warn("Legacy options not removed", "workflow", workflowID, "error", err)
	}
	s.logger.Info("Migrated legacy options into profile", "workflow", workflowID, "profile", entity.ProfileP1)
	return p
}

func (s *ProfileStore) SetActive(workflowID string, slot entity.ProfileID) (entity.Profiles, error) {
	if !ValidProfile(slot) {
		return entity.Profiles{}, fmt.Errorf("%w: %q", entity.ErrInvalidProfile, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := cloneProfiles(s.loadLocked(workflowID))
	p.Active = slot
	s.saveLocked(workflowID, p)
	return cloneProfiles(p), nil
}

// SaveSlot replaces one slot's values without touching the active slot.
func (s *ProfileStore) SaveSlot(workflowID string, slot entity.ProfileID, values map[string]any) (entity.Profiles, error) {
	if !ValidProfile(slot) {
		return entity.Profiles{}, fmt.Errorf("%w: %q", entity.ErrInvalidProfile, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := cloneProfiles(s.loadLocked(workflowID))
	p.Profiles[slot] = cloneMap(values)
	s.saveLocked(workflowID, p)
	return cloneProfiles(p), nil
}

// Resolve merges the active slot's values over wf's declared defaults.
// Workflows without profiles always read p1.
func (s *ProfileStore) Resolve(wf *entity.WorkflowDefinition) ResolvedOptions {
	p := s.Get(wf.ID)
	slot := p.Active
	if !wf.Profiles {
		slot = entity.ProfileP1
	}
	values := wf.DefaultOptionValues()
	maps.Copy(values, p.Profiles[slot])
	return ResolvedOptions{Profile: slot, Label: ProfileLabel(slot), Values: values}
}

func (s *ProfileStore) saveLocked(workflowID string, p entity.Profiles) {
	s.cache[workflowID] = cloneProfiles(p)
	if err := s.kv.Set(ProfilesKey(workflowID), p); err != nil {
		s.logger.Warn("Profiles not persisted", "workflow", workflowID, "error", err)
	}
}

func normalizeProfiles(p entity.Profiles) entity.Profiles {
	if !ValidProfile(p.Active) {
		p.Active = entity.ProfileP1
	}
	slots := make(map[entity.ProfileID]map[string]any, len(ProfileSlots))
	for _, slot := range ProfileSlots {
		values := p.Profiles[slot]
		if values == nil {
			values = map[string]any{}
		}
		slots[slot] = values
	}
	p.Profiles = slots
	return p
}

func cloneProfiles(p entity.Profiles) entity.Profiles {
	out := entity.Profiles{Active: p.Active, Profiles: make(map[entity.ProfileID]map[string]any, len(p.Profiles))}
	for slot, values := range p.Profiles {
		out.Profiles[slot] = cloneMap(values)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	}
	return v
}
