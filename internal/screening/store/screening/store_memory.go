// Package screening provides persistence for screening records.
package screening

import (
	"context"
	"sort"
	"sync"

	"passage/internal/screening/models"
	id "passage/pkg/domain"
	"passage/pkg/platform/sentinel"
)

// InMemory keeps screening records in process memory. Records are retained
// indefinitely; there is no delete.
type InMemory struct {
	mu          sync.RWMutex
	screenings  map[id.ScreeningID]*models.Screening
	byCandidate map[id.CandidateID][]id.ScreeningID
}

func NewInMemory() *InMemory {
	return &InMemory{
		screenings:  make(map[id.ScreeningID]*models.Screening),
		byCandidate: make(map[id.CandidateID][]id.ScreeningID),
	}
}

func (s *InMemory) Create(_ context.Context, screening *models.Screening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.screenings[screening.ID]; exists {
		return sentinel.ErrConflict
	}
	s.screenings[screening.ID] = clone(screening)
	s.byCandidate[screening.CandidateID] = append(s.byCandidate[screening.CandidateID], screening.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, screeningID id.ScreeningID) (*models.Screening, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	screening, ok := s.screenings[screeningID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(screening), nil
}

func (s *InMemory) Update(_ context.Context, screening *models.Screening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.screenings[screening.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.screenings[screening.ID] = clone(screening)
	return nil
}

func (s *InMemory) ListByCandidate(_ context.Context, candidateID id.CandidateID) ([]*models.Screening, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byCandidate[candidateID]
	out := make([]*models.Screening, 0, len(ids))
	for _, sid := range ids {
		out = append(out, clone(s.screenings[sid]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PassedTypes returns the screening types the candidate has passed. This is
// the aggregate the lifecycle validator consumes when gating registration.
func (s *InMemory) PassedTypes(_ context.Context, candidateID id.CandidateID) (map[models.ScreeningType]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	passed := make(map[models.ScreeningType]bool)
	for _, sid := range s.byCandidate[candidateID] {
		if sc := s.screenings[sid]; sc.Status == models.ScreeningPassed {
			passed[sc.Type] = true
		}
	}
	return passed, nil
}

func clone(s *models.Screening) *models.Screening {
	c := *s
	if s.NextCallDate != nil {
		t := *s.NextCallDate
		c.NextCallDate = &t
	}
	c.CallLog = append([]models.CallAttempt(nil), s.CallLog...)
	return &c
}
