package session

import (
	"sync"

	"github.com/ashureev/mpt-session/internal/domain"
)

// Entry pairs a session with its stage machine state. The two always move
// together.
type Entry struct {
	Session *domain.Session
	State   *domain.SessionState
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	return &Entry{Session: e.Session.Clone(), State: e.State.Clone()}
}

// Store holds live entries. Implementations must be safe for concurrent
// use. The registry never hands stored pointers to callers.
type Store interface {
	Get(id string) (*Entry, bool)
	Put(e *Entry)
	Delete(id string) (*Entry, bool)
	Len() int
	// All returns a snapshot of the stored entries in no particular order.
	All() []*Entry
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get returns the entry for id.
func (m *MemoryStore) Get(id string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// Put inserts or replaces an entry.
func (m *MemoryStore) Put(e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Session.ID] = e
}

// Delete removes and returns the entry for id.
func (m *MemoryStore) Delete(id string) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	return e, ok
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// All returns a snapshot of the stored entries.
func (m *MemoryStore) All() []*Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}
