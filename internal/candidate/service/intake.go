package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"passage/internal/candidate/models"
	"passage/internal/duplicate"
	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/sentinel"
	"passage/pkg/requestcontext"
)

// IdentifierIssuer issues and validates the human-facing identifiers minted
// at intake.
type IdentifierIssuer interface {
	GenerateApplicationID(ctx context.Context, year int) (string, error)
	GenerateCandidateCode(ctx context.Context, year int) (string, error)
	ValidateNationalID(id string) bool
}

// DuplicateFinder surfaces potential duplicate candidates.
type DuplicateFinder interface {
	Find(ctx context.Context, q duplicate.Query) ([]duplicate.Match, error)
}

// IntakeInput carries the fields captured at first contact.
type IntakeInput struct {
	FullName   string
	NationalID string
	Phone      string
	Email      string
	BatchID    uuid.UUID
	CampusID   uuid.UUID
	TradeID    uuid.UUID
	ProgramID  uuid.UUID
}

// IntakeResult is the created candidate plus a non-blocking duplicate
// warning list. Duplicates never prevent intake; operators resolve them.
type IntakeResult struct {
	Candidate  *models.Candidate
	Duplicates []duplicate.Match
}

// Intake creates a candidate with status new, issuing the application ID
// and check-digit candidate code for the current year.
func (s *Service) Intake(ctx context.Context, input IntakeInput, actorID id.ActorID) (*IntakeResult, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.NationalID = strings.TrimSpace(input.NationalID)

	if !s.issuer.ValidateNationalID(input.NationalID) {
		return nil, dErrors.New(dErrors.CodeValidation, "national id checksum is invalid")
	}

	now := requestcontext.Now(ctx)
	candidate, err := models.NewCandidate(id.NewCandidateID(), input.FullName, input.NationalID, input.Phone, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	candidate.Email = input.Email
	candidate.BatchID = input.BatchID
	candidate.CampusID = input.CampusID
	candidate.TradeID = input.TradeID
	candidate.ProgramID = input.ProgramID

	year := now.Year()
	if candidate.ApplicationID, err = s.issuer.GenerateApplicationID(ctx, year); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue application id")
	}
	if candidate.Code, err = s.issuer.GenerateCandidateCode(ctx, year); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue candidate code")
	}

	if err := s.store.Create(ctx, candidate); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a candidate with this national id already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create candidate")
	}

	s.emitAudit(ctx, audit.Event{
		ID:          id.NewAuditEventID(),
		EntityType:  "candidate",
		CandidateID: candidate.ID,
		Action:      string(audit.EventCandidateCreated),
		NewStatus:   string(candidate.Status),
		ActorID:     actorID,
		Timestamp:   now,
		RequestID:   requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.CandidatesCreated.Inc()
	}

	result := &IntakeResult{Candidate: candidate}
	if s.dupes != nil {
		matches, err := s.dupes.Find(ctx, duplicate.Query{
			Phone:     input.Phone,
			Email:     input.Email,
			Name:      input.FullName,
			ExcludeID: candidate.ID,
		})
		if err != nil {
			// Duplicate detection is advisory; intake has already succeeded.
			s.logger.WarnContext(ctx, "duplicate detection failed", "error", err, "candidate_id", candidate.ID)
		} else {
			result.Duplicates = matches
			if s.metrics != nil && len(matches) > 0 {
				s.metrics.DuplicateMatches.Add(float64(len(matches)))
			}
		}
	}
	return result, nil
}

// Get returns one candidate snapshot.
func (s *Service) Get(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	candidate, err := s.store.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "candidate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
	}
	return candidate, nil
}

// FindDuplicates runs the duplicate heuristics for an ad-hoc query.
func (s *Service) FindDuplicates(ctx context.Context, q duplicate.Query) ([]duplicate.Match, error) {
	if s.dupes == nil {
		return nil, nil
	}
	return s.dupes.Find(ctx, q)
}

// SetAtRisk flags or clears the candidate's at-risk state. The flag is
// independent of lifecycle status and carries no transition semantics.
func (s *Service) SetAtRisk(ctx context.Context, candidateID id.CandidateID, reason string, actorID id.ActorID) (*models.Candidate, error) {
	candidate, err := s.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	action := audit.EventAtRiskFlagged
	if reason == "" {
		candidate.ClearAtRisk(now)
		action = audit.EventAtRiskCleared
	} else if err := candidate.FlagAtRisk(reason, now); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, candidate); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update candidate")
	}

	s.emitAudit(ctx, audit.Event{
		ID:          id.NewAuditEventID(),
		EntityType:  "candidate",
		CandidateID: candidateID,
		Action:      string(action),
		ActorID:     actorID,
		Remarks:     reason,
		Timestamp:   now,
		RequestID:   requestcontext.RequestID(ctx),
	})
	return candidate, nil
}
