// Package frequency counts impressions per experience per time window and
// answers whether an experience may be shown again.
//
// Counters live in a key-value collaborator (KV). Only the current window
// is stored per experience: the record carries its window key, and a record
// whose key differs from the current one reads as zero. Storage failures
// never block a decision; the tracker logs and fails open.
package frequency

import (
	"sync"
)

// KV is the key-value collaborator for frequency counters.
// Get reports ok=false for a missing key. Implementations must be safe for
// concurrent use.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStore is an in-process KV. Zero value is not usable; call
// NewMemoryStore.
type MemoryStore struct {
	data map[string]string
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get implements KV.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements KV.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Remove implements KV.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
