// internal/session/kv.go
//
// Key/value persistence port for session state.
// The store never talks to a concrete backend directly; it goes through KV
// so the server can plug in SQLite while tests use the in-memory fake.
//
// Characteristics:
//   - String keys, string values, survives reload when backed by SQLite.
//   - Memory implementation is concurrency-safe via RWMutex.
//   - A missing key is not an error: Get reports ok=false.

package session

import (
	"strings"
	"sync"
)

// KV is the durable storage port for session records.
type KV interface {
	// Get retrieves a value. ok is false when the key has never been set.
	Get(key string) (value string, ok bool, err error)

	// Set persists or updates a value.
	Set(key, value string) error

	// Remove deletes a key; removing a missing key is a no-op.
	Remove(key string) error
}

// memoryKV is an in-memory map-based KV implementation.
type memoryKV struct {
	mu   sync.RWMutex      // guards data map
	data map[string]string // keyed by full key
}

// NewMemoryKV constructs a new in-memory KV.
func NewMemoryKV() KV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// namespacedKV prefixes every key, giving each owner (user or anonymous
// cookie) an isolated session scope inside one shared backend.
type namespacedKV struct {
	inner  KV
	prefix string
}

// Namespaced wraps kv so all keys carry the given prefix.
func Namespaced(kv KV, prefix string) KV {
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &namespacedKV{inner: kv, prefix: prefix}
}

func (n *namespacedKV) Get(key string) (string, bool, error) {
	return n.inner.Get(n.prefix + key)
}

func (n *namespacedKV) Set(key, value string) error {
	return n.inner.Set(n.prefix+key, value)
}

func (n *namespacedKV) Remove(key string) error {
	return n.inner.Remove(n.prefix + key)
}
