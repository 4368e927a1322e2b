// Package store holds persisted preferences as JSON documents keyed by
// string.
package store

import (
	"encoding/json"
	"sort"
	"strings"

	"carvana-workflows/internal/application/port/output"
)

// Get decodes key into a T. Missing keys and undecodable values both yield
// fallback; stored data is never trusted to be well formed.
func Get[T any](kv output.KVStore, key string, fallback T) T {
	raw, ok := kv.Get(key)
	if !ok {
		return fallback
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback
	}
	return v
}

var _ output.KVStore = (*Namespaced)(nil)

// Namespaced prefixes every key, so several tools can share one file.
type Namespaced struct {
	inner  output.KVStore
	prefix string
}

func NewNamespaced(inner output.KVStore, prefix string) *Namespaced {
	return &Namespaced{inner: inner, prefix: prefix}
}

func (n *Namespaced) Get(key string) (json.RawMessage, bool) {
	return n.inner.Get(n.prefix + key)
}

func (n *Namespaced) Set(key string, value any) error {
	return n.inner.Set(n.prefix+key, value)
}

func (n *Namespaced) Delete(key string) error {
	return n.inner.Delete(n.prefix + key)
}

func (n *Namespaced) Keys() []string {
	var keys []string
	for _, k := range n.inner.Keys() {
		if rest, ok := strings.CutPrefix(k, n.prefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return append(json.RawMessage(nil), raw...), nil
	}
	return json.Marshal(value)
}
