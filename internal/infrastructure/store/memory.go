package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"carvana-workflows/internal/application/port/output"
)

var _ output.KVStore = (*MemoryStore)(nil)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

func (s *MemoryStore) Set(key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

// SetRaw stores bytes as is, used to seed legacy or malformed values.
func (s *MemoryStore) SetRaw(key string, raw string) {
	s.mu.Lock()
	s.data[key] = json.RawMessage(raw)
	s.mu.Unlock()
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.data)
}
