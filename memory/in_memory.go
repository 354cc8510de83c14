package memory

import (
	"sync"

	"github.com/hupe1980/agentbridge/core"
)

// InMemoryStore is a process-local MemoryStore keeping small per-session
// key/value memories. Reads return copies so callers cannot mutate stored
// state. Protected by an RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	memory map[string]map[string]any // sessionID -> key -> value
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{memory: make(map[string]map[string]any)}
}

// Get returns a shallow copy of the key/value memory map for the session.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessionMemory := m.memory[sessionID]
	result := make(map[string]any, len(sessionMemory))
	for k, v := range sessionMemory {
		result[k] = v
	}
	return result, nil
}

// Put merges the provided delta map into the session's key/value memory.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.memory[sessionID]; !exists {
		m.memory[sessionID] = make(map[string]any, len(delta))
	}
	for k, v := range delta {
		m.memory[sessionID][k] = v
	}
	return nil
}

// Forget removes the given keys from the session memory. With no keys the
// whole session memory is dropped. Forgetting unknown keys is not an error.
func (m *InMemoryStore) Forget(sessionID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(keys) == 0 {
		delete(m.memory, sessionID)
		return nil
	}
	sessionMemory, ok := m.memory[sessionID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(sessionMemory, k)
	}
	if len(sessionMemory) == 0 {
		delete(m.memory, sessionID)
	}
	return nil
}

var _ core.MemoryStore = (*InMemoryStore)(nil)
