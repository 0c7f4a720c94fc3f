// Package sequence provides the per-year counters behind identifier
// issuance.
package sequence

import (
	"context"
	"fmt"
	"sync"
)

type key struct {
	scheme string
	year   int
}

// InMemoryStore keeps counters in process memory. The mutex serializes
// issuance so two concurrent callers never receive the same value.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[key]int
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{counters: make(map[key]int)}
}

func (s *InMemoryStore) Next(_ context.Context, scheme string, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{scheme: scheme, year: year}
	s.counters[k]++
	return s.counters[k], nil
}

// Seed sets the current counter value, used when resuming from existing
// records (max existing sequence for the year).
func (s *InMemoryStore) Seed(scheme string, year, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{scheme: scheme, year: year}
	if value < s.counters[k] {
		return fmt.Errorf("cannot seed %s/%d backwards from %d to %d", scheme, year, s.counters[k], value)
	}
	s.counters[k] = value
	return nil
}
