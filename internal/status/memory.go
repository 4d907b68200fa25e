package status

import (
	"context"
	"sync"
)

// MemoryStore keeps statuses in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]*TaskStatus
	saves    int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore seeded with a copy of initial
func NewMemoryStore(initial map[string]*TaskStatus) *MemoryStore {
	return &MemoryStore{statuses: CloneAll(initial)}
}

// Load returns a copy of the stored statuses
func (m *MemoryStore) Load(_ context.Context) (map[string]*TaskStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CloneAll(m.statuses), nil
}

// Save replaces the stored statuses with a copy of statuses
func (m *MemoryStore) Save(_ context.Context, statuses map[string]*TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = CloneAll(statuses)
	m.saves++
	return nil
}

// Saves returns how many times Save has been called
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
