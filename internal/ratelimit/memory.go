package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is one fixed-window counter. Each entry remembers its own
// window length: purposes with different windows share one store, so a sweep
// must judge every entry by its own deadline, not the sweeper's.
type memoryEntry struct {
	count           int
	window          time.Duration
	windowStartedAt time.Time
}

// MemoryStore keeps counters in a mutex-guarded in-process map. It is the
// default backend for a single server instance and the fallback when Redis
// is unreachable at startup.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// get fetches or lazily creates the entry for key and applies window
// rollover. Callers must hold s.mu.
func (s *MemoryStore) get(key string, window time.Duration, now time.Time) *memoryEntry {
	ent, ok := s.entries[key]
	if !ok {
		ent = &memoryEntry{window: window, windowStartedAt: now}
		s.entries[key] = ent
		return ent
	}
	if now.Sub(ent.windowStartedAt) >= ent.window {
		ent.count = 0
		ent.windowStartedAt = now
	}
	ent.window = window // pick up config changes on rollover or re-use
	return ent
}

// Check implements Store.
func (s *MemoryStore) Check(_ context.Context, key string, window time.Duration, now time.Time) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent := s.get(key, window, now)
	return Snapshot{Count: ent.count, WindowStartedAt: ent.windowStartedAt}, nil
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent := s.get(key, window, now)
	ent.count++
	return Snapshot{Count: ent.count, WindowStartedAt: ent.windowStartedAt}, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Cleanup drops every entry whose own window has fully elapsed. An entry
// still inside its window is never evicted, regardless of which limiter
// drives the sweep: eviction mid-window would hand the client a fresh budget.
func (s *MemoryStore) Cleanup(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ent := range s.entries {
		if now.Sub(ent.windowStartedAt) >= ent.window {
			delete(s.entries, k)
		}
	}
	return nil
}

// Len reports the number of live entries. Used by tests and debug logging.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
