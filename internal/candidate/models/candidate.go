package models

import (
	"time"

	"github.com/google/uuid"

	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
)

// Candidate is the aggregate root for one person moving through the
// migration pipeline.
//
// Invariants:
//   - Status transitions follow the graph in status.go; the only backward
//     edge is departed → returned
//   - TrainingStatus is meaningful only from the training stage onward;
//     earlier stages hold TrainingNotStarted
//   - Status is never written directly: all changes go through the lifecycle
//     service, which validates preconditions and applies derived fields
//   - Terminal statuses soft-retire the record (RetiredAt); candidates are
//     never hard-deleted
type Candidate struct {
	ID id.CandidateID

	// Code is the human-facing check-digit identifier (PFX-YYYY-SSSSS-C).
	Code string
	// ApplicationID is the yearly sequential application identifier.
	ApplicationID string
	// NationalID is the 13-digit national identity number.
	NationalID string

	FullName string
	Phone    string
	Email    string

	Status         Status
	TrainingStatus TrainingStatus

	TrainingStartedAt *time.Time
	TrainingEndedAt   *time.Time

	// AtRisk is an independent operational flag, not a lifecycle status.
	AtRiskReason string
	AtRiskSince  *time.Time

	// References owned by collaborator modules.
	BatchID   uuid.UUID
	CampusID  uuid.UUID
	TradeID   uuid.UUID
	ProgramID uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
	RetiredAt *time.Time
}

// NewCandidate constructs a candidate at intake with status new.
func NewCandidate(candidateID id.CandidateID, fullName, nationalID, phone string, now time.Time) (*Candidate, error) {
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "full name is required")
	}
	if nationalID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "national id is required")
	}
	return &Candidate{
		ID:             candidateID,
		FullName:       fullName,
		NationalID:     nationalID,
		Phone:          phone,
		Status:         StatusNew,
		TrainingStatus: TrainingNotStarted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsRetired reports whether the candidate has been soft-retired.
func (c *Candidate) IsRetired() bool {
	return c.RetiredAt != nil
}

// ApplyStatus moves the candidate to target and applies the derived-field
// side effects of the transition. Callers must have validated the transition
// first; this method applies, it does not decide.
func (c *Candidate) ApplyStatus(target Status, now time.Time) {
	c.Status = target
	c.UpdatedAt = now

	switch target {
	case StatusTraining:
		c.TrainingStatus = TrainingInProgress
		if c.TrainingStartedAt == nil {
			t := now
			c.TrainingStartedAt = &t
		}
	case StatusDeparted:
		c.TrainingStatus = TrainingCompleted
		if c.TrainingEndedAt == nil {
			t := now
			c.TrainingEndedAt = &t
		}
	}

	if target.IsTerminal() && c.RetiredAt == nil {
		t := now
		c.RetiredAt = &t
	}
}

// FlagAtRisk sets the at-risk flag. Independent of Status.
func (c *Candidate) FlagAtRisk(reason string, now time.Time) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "at-risk reason is required")
	}
	c.AtRiskReason = reason
	if c.AtRiskSince == nil {
		t := now
		c.AtRiskSince = &t
	}
	c.UpdatedAt = now
	return nil
}

// ClearAtRisk removes the at-risk flag.
func (c *Candidate) ClearAtRisk(now time.Time) {
	c.AtRiskReason = ""
	c.AtRiskSince = nil
	c.UpdatedAt = now
}
