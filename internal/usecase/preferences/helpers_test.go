package preferences

import (
	"errors"
	"sync/atomic"

	"carvana-workflows/internal/infrastructure/store"
)

// countingStore wraps a memory store, counting writes and optionally
// failing them.
type countingStore struct {
	*store.MemoryStore
	writes atomic.Int32
	fail   bool
}

var errDiskFull = errors.New("disk full")

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: store.NewMemoryStore()}
}

func (s *countingStore) Set(key string, value any) error {
	s.writes.Add(1)
	if s.fail {
		return errDiskFull
	}
	return s.MemoryStore.Set(key, value)
}
