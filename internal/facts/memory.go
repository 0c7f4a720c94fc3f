// Package facts adapts the collaborator aggregates (documents, next of
// kin, undertakings, training records, visa processing, departure
// logistics) to the narrow fact queries the lifecycle validator consumes. The
// aggregates themselves are owned by other modules; this package only
// answers existence and snapshot questions about them.
package facts

import (
	"context"
	"sync"

	"passage/internal/candidate/service"
	id "passage/pkg/domain"
)

// MandatoryDocuments lists the document sets required per stage.
var MandatoryDocuments = map[service.DocumentStage][]string{
	service.StagePreDeparture: {"cnic_copy", "photograph", "education_certificate"},
	service.StageRegistration: {"cnic_copy", "photograph", "education_certificate", "police_clearance", "domicile"},
}

type candidateFacts struct {
	documents    map[string]bool
	hasNextOfKin bool
	undertaking  bool
	assessment   bool
	certificate  bool
	visa         *service.VisaSnapshot
	departure    *service.DepartureSnapshot
}

// InMemoryStore holds collaborator facts keyed by candidate. It backs tests
// and single-process deployments where the collaborator modules share the
// process.
type InMemoryStore struct {
	mu    sync.RWMutex
	facts map[id.CandidateID]*candidateFacts
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{facts: make(map[id.CandidateID]*candidateFacts)}
}

func (s *InMemoryStore) get(candidateID id.CandidateID) *candidateFacts {
	f, ok := s.facts[candidateID]
	if !ok {
		f = &candidateFacts{documents: make(map[string]bool)}
		s.facts[candidateID] = f
	}
	return f
}

// Setters, called by the owning modules when their aggregates change.

func (s *InMemoryStore) AddDocument(candidateID id.CandidateID, docType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(candidateID).documents[docType] = true
}

func (s *InMemoryStore) SetNextOfKin(candidateID id.CandidateID, present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(candidateID).hasNextOfKin = present
}

func (s *InMemoryStore) SetCompletedUndertaking(candidateID id.CandidateID, present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(candidateID).undertaking = present
}

func (s *InMemoryStore) SetFinalAssessmentPassed(candidateID id.CandidateID, passed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(candidateID).assessment = passed
}

func (s *InMemoryStore) SetCertificateIssued(candidateID id.CandidateID, issued bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(candidateID).certificate = issued
}

func (s *InMemoryStore) SetVisaSnapshot(candidateID id.CandidateID, snapshot *service.VisaSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(candidateID).visa = snapshot
}

func (s *InMemoryStore) SetDepartureSnapshot(candidateID id.CandidateID, snapshot *service.DepartureSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(candidateID).departure = snapshot
}

// Fact queries consumed by the validator.

func (s *InMemoryStore) MissingMandatory(_ context.Context, candidateID id.CandidateID, stage service.DocumentStage) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var uploaded map[string]bool
	if f, ok := s.facts[candidateID]; ok {
		uploaded = f.documents
	}
	var missing []string
	for _, doc := range MandatoryDocuments[stage] {
		if !uploaded[doc] {
			missing = append(missing, doc)
		}
	}
	return missing, nil
}

func (s *InMemoryStore) HasNextOfKin(_ context.Context, candidateID id.CandidateID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[candidateID]
	return ok && f.hasNextOfKin, nil
}

func (s *InMemoryStore) HasCompletedUndertaking(_ context.Context, candidateID id.CandidateID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[candidateID]
	return ok && f.undertaking, nil
}

func (s *InMemoryStore) FinalAssessmentPassed(_ context.Context, candidateID id.CandidateID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[candidateID]
	return ok && f.assessment, nil
}

func (s *InMemoryStore) CertificateIssued(_ context.Context, candidateID id.CandidateID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[candidateID]
	return ok && f.certificate, nil
}

func (s *InMemoryStore) Snapshot(_ context.Context, candidateID id.CandidateID) (*service.VisaSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.facts[candidateID]; ok && f.visa != nil {
		v := *f.visa
		return &v, nil
	}
	return nil, nil
}

// DepartureSnapshot is exposed through a thin wrapper because VisaFacts and
// DepartureFacts both name their query Snapshot.
type departureView struct {
	store *InMemoryStore
}

func (v departureView) Snapshot(_ context.Context, candidateID id.CandidateID) (*service.DepartureSnapshot, error) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	if f, ok := v.store.facts[candidateID]; ok && f.departure != nil {
		d := *f.departure
		return &d, nil
	}
	return nil, nil
}

// Facts assembles the validator's fact bundle from this store plus the
// screening aggregate.
func (s *InMemoryStore) Facts(screenings service.ScreeningFacts) service.Facts {
	return service.Facts{
		Documents:    s,
		NextOfKin:    s,
		Screenings:   screenings,
		Undertakings: s,
		Training:     s,
		Visa:         s,
		Departure:    departureView{store: s},
	}
}
