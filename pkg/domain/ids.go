// Package domain holds typed identifiers shared across modules.
//
// IDs are distinct types over uuid.UUID so a ScreeningID can never be passed
// where a CandidateID is expected. Construct from external input via the
// Parse* functions, which reject empty, malformed, and nil values.
package domain

import (
	"github.com/google/uuid"

	dErrors "passage/pkg/domain-errors"
)

type (
	// CandidateID identifies one candidate lifecycle record.
	CandidateID uuid.UUID

	// ScreeningID identifies one screening attempt.
	ScreeningID uuid.UUID

	// ActorID identifies the authenticated user performing an action. It is
	// threaded explicitly through every audit-producing call; there is no
	// ambient current-actor state.
	ActorID uuid.UUID

	// AuditEventID identifies one appended audit event.
	AuditEventID uuid.UUID
)

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return u, nil
}

// ParseCandidateID validates and converts an external candidate ID.
func ParseCandidateID(s string) (CandidateID, error) {
	u, err := parse(s)
	return CandidateID(u), err
}

// ParseScreeningID validates and converts an external screening ID.
func ParseScreeningID(s string) (ScreeningID, error) {
	u, err := parse(s)
	return ScreeningID(u), err
}

// ParseActorID validates and converts an external actor ID.
func ParseActorID(s string) (ActorID, error) {
	u, err := parse(s)
	return ActorID(u), err
}

func (id CandidateID) String() string  { return uuid.UUID(id).String() }
func (id ScreeningID) String() string  { return uuid.UUID(id).String() }
func (id ActorID) String() string      { return uuid.UUID(id).String() }
func (id AuditEventID) String() string { return uuid.UUID(id).String() }

func (id CandidateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ScreeningID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// NewCandidateID mints a fresh candidate ID.
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }

// NewScreeningID mints a fresh screening ID.
func NewScreeningID() ScreeningID { return ScreeningID(uuid.New()) }

// NewAuditEventID mints a fresh audit event ID.
func NewAuditEventID() AuditEventID { return AuditEventID(uuid.New()) }
