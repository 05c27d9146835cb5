package cranklib

import (
	"sync"
)

// SyncMap is a read-write-mutex guarded generic map. Readers share the lock;
// writers are exclusive. Multi-entry mutations go through Update so they are
// observed atomically by concurrent readers.
type SyncMap[K comparable, V any] struct {
	kv map[K]V
	mu sync.RWMutex
}

// NewSyncMap returns an initialized SyncMap.
func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{kv: make(map[K]V)}
}

// Set stores val under key.
func (m *SyncMap[K, V]) Set(key K, val V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = val
}

// Load returns the value stored under key and whether it was present.
func (m *SyncMap[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.kv[key]
	return val, ok
}

// Delete removes key. Removing an absent key is a no-op.
func (m *SyncMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
}

// Len returns the number of stored entries.
func (m *SyncMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.kv)
}

// Range calls f for each entry until f returns false. f must not mutate the
// map; use Update for that.
func (m *SyncMap[K, V]) Range(f func(key K, val V) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.kv {
		if !f(k, v) {
			return
		}
	}
}

// Update runs f with exclusive access to the underlying map. Everything f
// does is one critical section relative to all other readers and writers.
func (m *SyncMap[K, V]) Update(f func(kv map[K]V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(m.kv)
}
