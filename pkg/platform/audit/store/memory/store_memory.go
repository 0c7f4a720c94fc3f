package memory

import (
	"context"
	"sync"

	id "passage/pkg/domain"
	audit "passage/pkg/platform/audit"
)

// InMemoryStore keeps audit events per candidate. Used in tests and as the
// default sink when Postgres is not configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.CandidateID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.CandidateID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.CandidateID] = append(s.events[event.CandidateID], event)
	return nil
}

func (s *InMemoryStore) ListByCandidate(_ context.Context, candidateID id.CandidateID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[candidateID]...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.CandidateID][]audit.Event)
}
