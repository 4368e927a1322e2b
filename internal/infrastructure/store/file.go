package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"carvana-workflows/internal/application/port/output"
)

var _ output.KVStore = (*FileStore)(nil)

const fileVersion = "1"

type fileLayout struct {
	Version string                     `json:"version"`
	Entries map[string]json.RawMessage `json:"entries"`
}

// FileStore keeps every entry in memory and rewrites one JSON file on each
// change. A failed write is reported but the in-memory value stays, so the
// running session keeps what the user chose.
type FileStore struct {
	path        string
	quarantined string

	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewFileStore loads path. A missing file starts empty. A file that does
// not decode is renamed to <path>.corrupt and the store starts empty; an
// unreadable one is an error.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".autoflow", "prefs.json")
	}

	s := &FileStore{path: path, data: make(map[string]json.RawMessage)}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Quarantined names the file a malformed store was moved to, or "".
func (s *FileStore) Quarantined() string {
	return s.quarantined
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var layout fileLayout
	if err := json.Unmarshal(raw, &layout); err != nil {
		return s.quarantine()
	}
	if layout.Entries != nil {
		s.data = layout.Entries
	}
	return nil
}

func (s *FileStore) quarantine() error {
	dst := s.path + ".corrupt"
	if err := os.Rename(s.path, dst); err != nil {
		return fmt.Errorf("move malformed store aside: %w", err)
	}
	s.quarantined = dst
	return nil
}

func (s *FileStore) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

func (s *FileStore) Set(key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.saveLocked()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.saveLocked()
}

func (s *FileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.data)
}

// saveLocked writes through a temp file and renames it into place.
func (s *FileStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fileLayout{Version: fileVersion, Entries: s.data}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encode store: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp store file: %w", err)
	}
	return nil
}
