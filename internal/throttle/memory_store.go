package throttle

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// memorySweepInterval bounds how long expired entries survive between Hits.
// It matches the shortest window an endpoint throttle is configured with.
const memorySweepInterval = time.Minute

// MemoryStore keeps counters in process memory. State is lost on restart and
// is not shared between instances. Expired entries are evicted by Hit at most
// once per sweep interval, so memory is bounded by the keys seen in the
// longest live window.
type MemoryStore struct {
	mu            sync.Mutex
	entries       map[string]*memoryEntry
	sweepInterval time.Duration
	lastSweep     time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:       make(map[string]*memoryEntry),
		sweepInterval: memorySweepInterval,
	}
}

// Hit implements Store
func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.sweepInterval {
		s.sweepLocked(now)
	}

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &memoryEntry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++

	return entry.count, entry.resetAt, nil
}

// Release implements Store
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Sweep drops entries whose window has elapsed and returns how many were removed
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(now)
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	s.lastSweep = now
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.resetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
