package admission

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	windowStart time.Time
	count       int64
}

// MemoryStore keeps fixed-window counters in process memory. Counters from
// past windows are dropped lazily while incrementing.
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]*counter
	lastPrune time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter)}
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, windowStart time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if windowStart.Sub(s.lastPrune) >= window {
		for k, c := range s.counters {
			if c.windowStart.Before(windowStart) {
				delete(s.counters, k)
			}
		}
		s.lastPrune = windowStart
	}

	c, ok := s.counters[key]
	if !ok || !c.windowStart.Equal(windowStart) {
		c = &counter{windowStart: windowStart}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Len returns the number of live counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
