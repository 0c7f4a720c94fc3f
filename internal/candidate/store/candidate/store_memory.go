// Package candidate provides persistence for candidate records.
package candidate

import (
	"context"
	"strings"
	"sync"

	"passage/internal/candidate/models"
	"passage/internal/duplicate"
	id "passage/pkg/domain"
	"passage/pkg/platform/sentinel"
)

// InMemory keeps candidates in process memory. It backs development and
// tests, and doubles as the duplicate detector's directory.
type InMemory struct {
	mu         sync.RWMutex
	candidates map[id.CandidateID]*models.Candidate
	byNational map[string]id.CandidateID
}

func NewInMemory() *InMemory {
	return &InMemory{
		candidates: make(map[id.CandidateID]*models.Candidate),
		byNational: make(map[string]id.CandidateID),
	}
}

func (s *InMemory) Create(_ context.Context, candidate *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.candidates[candidate.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byNational[candidate.NationalID]; exists {
		return sentinel.ErrConflict
	}
	clone := *candidate
	s.candidates[candidate.ID] = &clone
	s.byNational[candidate.NationalID] = candidate.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidate, ok := s.candidates[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *candidate
	return &clone, nil
}

func (s *InMemory) Update(_ context.Context, candidate *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[candidate.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *candidate
	s.candidates[candidate.ID] = &clone
	return nil
}

// ApplyTransition applies mutate to the candidate if and only if its current
// status still equals from. The whole read-mutate-write runs under the store
// lock, so concurrent transitions on one candidate serialize and the loser
// observes sentinel.ErrConflict.
func (s *InMemory) ApplyTransition(_ context.Context, candidateID id.CandidateID, from models.Status, mutate func(*models.Candidate)) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.candidates[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if candidate.Status != from {
		return nil, sentinel.ErrConflict
	}
	clone := *candidate
	mutate(&clone)
	s.candidates[candidateID] = &clone
	result := clone
	return &result, nil
}

// Directory queries for the duplicate detector.

func (s *InMemory) FindByPhone(_ context.Context, normalized, suffix string) ([]duplicate.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []duplicate.Record
	for _, c := range s.candidates {
		stored := duplicate.NormalizePhone(c.Phone)
		if stored == "" {
			continue
		}
		if stored == normalized || (suffix != "" && strings.HasSuffix(stored, suffix)) {
			records = append(records, toRecord(c))
		}
	}
	return records, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) ([]duplicate.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []duplicate.Record
	for _, c := range s.candidates {
		if c.Email != "" && c.Email == email {
			records = append(records, toRecord(c))
		}
	}
	return records, nil
}

func (s *InMemory) FindByNamePrefix(_ context.Context, prefix string) ([]duplicate.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(prefix)
	var records []duplicate.Record
	for _, c := range s.candidates {
		if strings.HasPrefix(strings.ToLower(c.FullName), lower) {
			records = append(records, toRecord(c))
		}
	}
	return records, nil
}

func toRecord(c *models.Candidate) duplicate.Record {
	return duplicate.Record{ID: c.ID, FullName: c.FullName, Phone: c.Phone, Email: c.Email}
}
