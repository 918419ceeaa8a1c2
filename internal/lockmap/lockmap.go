package lockmap

import (
	"fmt"
	"sync"
)

// Locker is the capability the transfer engine depends on. The concrete
// store behind it may be this in-memory map, a durable lease table, or a
// distributed lock service; callers must not assume which.
type Locker interface {
	// TryAcquire takes the lock for key if it is free. Non-blocking:
	// a held lock fails fast rather than queuing.
	TryAcquire(key string) bool
	// Release frees the lock unconditionally.
	Release(key string)
}

// Map is an associative store of held flags guarded by one mutex. Every
// operation runs inside the same critical section, so lock state
// transitions are linearizable: at most one mutator executes at a time
// and reads observe the latest completed write.
type Map struct {
	mu      sync.Mutex
	entries map[string]bool
}

// New creates an empty lock map.
func New() *Map {
	return &Map{entries: make(map[string]bool)}
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Set stores value under key.
func (m *Map) Set(key string, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Delete removes key. Deleting an absent key is a no-op.
func (m *Map) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len returns the number of entries.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// CompareAndSet atomically writes value under key if the key is absent
// or pred accepts the current value, and reports whether the write
// happened. Absence always counts as eligible, so an unseen key can be
// acquired unconditionally.
func (m *Map) CompareAndSet(key string, value bool, pred func(current bool) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.entries[key]
	if ok && !pred(current) {
		return false
	}
	m.entries[key] = value
	return true
}

// TryAcquire succeeds only if the key is unlocked or unseen.
func (m *Map) TryAcquire(key string) bool {
	return m.CompareAndSet(key, true, func(held bool) bool { return !held })
}

// Release frees the key regardless of state. The lock carries no
// ownership token, so callers must release only what they acquired.
func (m *Map) Release(key string) {
	m.Delete(key)
}

// TransferKey builds the lock key for a transfer. Only transfers sharing
// the same (sender, receiver, token) triple contend; one sender can move
// different tokens, or pay different receivers, concurrently.
func TransferKey(sender, receiver, token string) string {
	return fmt.Sprintf("%s:%s:%s", sender, receiver, token)
}
