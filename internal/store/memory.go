// internal/store/memory.go
//
// In-memory implementation of the session registry.
// The server keeps one live lifecycle.Controller per owner (user id or
// anonymous cookie id); the durable parts of a session live in the KV
// backend, so losing this map on restart only costs the in-flight round.
//
// Characteristics:
//   - Stores *lifecycle.Controller objects keyed by owner id in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Errors are returned for missing owner ids on Get().

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/lifecycle"
)

// Registry defines the lookup interface for live session controllers.
type Registry interface {
	// Save registers or replaces the controller for an owner.
	Save(ctx context.Context, ownerID string, c *lifecycle.Controller) error

	// Get retrieves the controller for an owner.
	// Returns an error if none is registered.
	Get(ctx context.Context, ownerID string) (*lifecycle.Controller, error)
}

// memory is an in-memory map-based Registry implementation.
type memory struct {
	mu       sync.RWMutex                     // guards sessions map
	sessions map[string]*lifecycle.Controller // keyed by owner id
}

// NewMemoryRegistry constructs a new in-memory Registry.
func NewMemoryRegistry() Registry {
	return &memory{sessions: make(map[string]*lifecycle.Controller)}
}

func (m *memory) Save(ctx context.Context, ownerID string, c *lifecycle.Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[ownerID] = c
	return nil
}

func (m *memory) Get(ctx context.Context, ownerID string) (*lifecycle.Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.sessions[ownerID]; ok {
		return c, nil
	}
	return nil, errors.New("not found")
}
