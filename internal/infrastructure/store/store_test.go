package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefs struct {
	Auto   bool `json:"auto"`
	Repeat bool `json:"repeat"`
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	require.NoError(t, s.Set("b", prefs{Auto: true}))
	require.NoError(t, s.Set("a", map[string]int{"n": 1}))
	assert.Equal(t, []string{"a", "b"}, s.Keys())

	raw, ok := s.Get("b")
	require.True(t, ok)
	assert.JSONEq(t, `{"auto":true,"repeat":false}`, string(raw))

	require.NoError(t, s.Delete("b"))
	assert.Equal(t, []string{"a"}, s.Keys())
}

func TestGet_FallsBackOnMalformed(t *testing.T) {
	s := NewMemoryStore()
	fallback := prefs{Repeat: true}

	assert.Equal(t, fallback, Get(s, "missing", fallback))

	s.SetRaw("broken", `{"auto": tru`)
	assert.Equal(t, fallback, Get(s, "broken", fallback))

	s.SetRaw("wrong-type", `["auto"]`)
	assert.Equal(t, fallback, Get(s, "wrong-type", fallback))

	s.SetRaw("ok", `{"auto": true}`)
	assert.Equal(t, prefs{Auto: true}, Get(s, "ok", fallback))
}

func TestNamespaced(t *testing.T) {
	inner := NewMemoryStore()
	require.NoError(t, inner.Set("other", 1))
	ns := NewNamespaced(inner, "autoflow.")

	require.NoError(t, ns.Set("prefs:menu:home", []string{"x"}))
	assert.Equal(t, []string{"prefs:menu:home"}, ns.Keys())
	assert.Equal(t, []string{"autoflow.prefs:menu:home", "other"}, inner.Keys())

	assert.Equal(t, []string{"x"}, Get(ns, "prefs:menu:home", []string(nil)))
	require.NoError(t, ns.Delete("prefs:menu:home"))
	assert.Empty(t, ns.Keys())
}

func TestFileStore_RoundTripAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Empty(t, s.Keys())

	require.NoError(t, s.Set("prefs:autorun:copy-vin", prefs{Auto: true, Repeat: true}))
	require.NoError(t, s.Set("prefs:options:copy-vin", map[string]any{"vin": "1FT"}))
	require.NoError(t, s.Delete("prefs:options:copy-vin"))
	require.NoError(t, s.Delete("never-set"))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"prefs:autorun:copy-vin"}, reopened.Keys())
	assert.Equal(t, prefs{Auto: true, Repeat: true}, Get(reopened, "prefs:autorun:copy-vin", prefs{}))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Empty(t, s.Keys())
	assert.Equal(t, path+".corrupt", s.Quarantined())

	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Set("k", prefs{Auto: true}))
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Empty(t, reopened.Quarantined())
	assert.Equal(t, prefs{Auto: true}, Get(reopened, "k", prefs{}))
}

func TestFileStore_FailedWriteKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	// The parent "directory" is a regular file, so every save fails.
	s := &FileStore{path: filepath.Join(blocker, "prefs.json"), data: map[string]json.RawMessage{}}

	err := s.Set("k", prefs{Auto: true})
	require.Error(t, err)
	assert.Equal(t, prefs{Auto: true}, Get(s, "k", prefs{}))
}
