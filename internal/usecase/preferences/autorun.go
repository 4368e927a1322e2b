package preferences

import (
	"encoding/json"
	"sync"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
)

// AutoRepeatMinInterval is the cooldown between repeat runs on the same
// href. It is the only brake on mutation-driven re-triggering.
const AutoRepeatMinInterval = 5 * time.Second

type AutoRunOptions struct {
	Now   time.Time
	Force bool
	// MinInterval overrides AutoRepeatMinInterval when positive.
	MinInterval time.Duration
}

// ShouldAutoRun decides whether an auto-run trigger fires for href.
func ShouldAutoRun(prefs entity.RunPrefs, href string, opts AutoRunOptions) bool {
	if !prefs.Auto {
		return false
	}
	if opts.Force || prefs.LastRun == nil {
		return true
	}
	if prefs.LastRun.Href != href {
		return true
	}
	if !prefs.Repeat {
		return false
	}
	interval := opts.MinInterval
	if interval <= 0 {
		interval = AutoRepeatMinInterval
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.Sub(prefs.LastRun.Time()) >= interval
}

// RunPrefsPatch is merged over the current prefs. Nil fields keep their
// value.
type RunPrefsPatch struct {
	Auto         *bool
	Repeat       *bool
	LastRun      *entity.LastRun
	ClearLastRun bool
}

// Merge applies patch to prev. Turning auto on without an explicit LastRun
// starts fresh, and repeat never survives without auto.
func Merge(prev entity.RunPrefs, patch RunPrefsPatch) entity.RunPrefs {
	next := prev
	if prev.LastRun != nil {
		lr := *prev.LastRun
		next.LastRun = &lr
	}
	if patch.Auto != nil {
		next.Auto = *patch.Auto
	}
	if patch.Repeat != nil {
		next.Repeat = *patch.Repeat
	}
	switch {
	case patch.LastRun != nil:
		lr := *patch.LastRun
		next.LastRun = &lr
	case patch.ClearLastRun, !prev.Auto && next.Auto:
		next.LastRun = nil
	}
	next.Repeat = next.Repeat && next.Auto
	return next
}

type RunPrefsStore struct {
	kv     output.KVStore
	logger output.LoggerPort

	mu    sync.Mutex
	cache map[string]cachedRunPrefs
}

type cachedRunPrefs struct {
	prefs     entity.RunPrefs
	persisted bool
}

func NewRunPrefsStore(kv output.KVStore, logger output.LoggerPort) *RunPrefsStore {
	return &RunPrefsStore{
		kv:     kv,
		logger: logger,
		cache:  make(map[string]cachedRunPrefs),
	}
}

// Get returns the stored prefs, or the zero value.
func (s *RunPrefsStore) Get(workflowID string) entity.RunPrefs {
	prefs, _ := s.Lookup(workflowID)
	return prefs
}

// Lookup also reports whether the operator ever saved prefs for the
// workflow, which decides whether definition defaults still apply.
func (s *RunPrefsStore) Lookup(workflowID string) (entity.RunPrefs, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.loadLocked(workflowID)
	return clonePrefs(c.prefs), c.persisted
}

func (s *RunPrefsStore) loadLocked(workflowID string) cachedRunPrefs {
	if c, ok := s.cache[workflowID]; ok {
		return c
	}
	// Only a value that decodes counts as saved; anything else leaves the
	// definition defaults in charge.
	c := cachedRunPrefs{}
	if raw, ok := s.kv.Get(RunPrefsKey(workflowID)); ok {
		var prefs entity.RunPrefs
		if err := json.Unmarshal(raw, &prefs); err != nil {
			s.logger.Warn("Ignoring malformed run prefs", "workflow", workflowID, "error", err)
		} else {
			prefs.Repeat = prefs.Repeat && prefs.Auto
			c.prefs, c.persisted = prefs, true
		}
	}
	s.cache[workflowID] = c
	return c
}

func (s *RunPrefsStore) Update(workflowID string, patch RunPrefsPatch) entity.RunPrefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Merge(s.loadLocked(workflowID).prefs, patch)
	s.saveLocked(workflowID, next)
	return clonePrefs(next)
}

// UpdateFrom merges patch over base instead of the stored value. The
// engine uses it with definition-derived defaults for never-saved prefs.
func (s *RunPrefsStore) UpdateFrom(workflowID string, base entity.RunPrefs, patch RunPrefsPatch) entity.RunPrefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.loadLocked(workflowID)
	if c.persisted {
		base = c.prefs
	}
	next := Merge(base, patch)
	s.saveLocked(workflowID, next)
	return clonePrefs(next)
}

// RecordRun stamps an auto-run so the cooldown can apply.
func (s *RunPrefsStore) RecordRun(workflowID, href string, at time.Time) entity.RunPrefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := clonePrefs(s.loadLocked(workflowID).prefs)
	next.LastRun = &entity.LastRun{Href: href, At: at.UnixMilli()}
	s.saveLocked(workflowID, next)
	return clonePrefs(next)
}

// Restore puts back prefs taken from Lookup, removing the entry when it
// was never persisted.
func (s *RunPrefsStore) Restore(workflowID string, prefs entity.RunPrefs, persisted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if persisted {
		s.saveLocked(workflowID, clonePrefs(prefs))
		return
	}
	s.cache[workflowID] = cachedRunPrefs{}
	if err := s.kv.Delete(RunPrefsKey(workflowID)); err != nil {
		s.logger.Warn("Run prefs not removed", "workflow", workflowID, "error", err)
	}
}

func (s *RunPrefsStore) saveLocked(workflowID string, prefs entity.RunPrefs) {
	s.cache[workflowID] = cachedRunPrefs{prefs: prefs, persisted: true}
	if err := s.kv.Set(RunPrefsKey(workflowID), prefs); err != nil {
		s.logger.Warn("Run prefs not persisted", "workflow", workflowID, "error", err)
	}
}

func clonePrefs(p entity.RunPrefs) entity.RunPrefs {
	if p.LastRun != nil {
		lr := *p.LastRun
		p.LastRun = &lr
	}
	return p
}
