package audit

import (
	"context"
	"time"

	id "passage/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// lifecycle status changes, rejections, departures. These require
	// tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: call attempts, deferrals, at-risk flags. These can be
	// sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Every accepted lifecycle transition carries OldStatus, NewStatus, ActorID
// and Timestamp; consumers may not assume any other field is populated.
type Event struct {
	ID          id.AuditEventID
	Category    EventCategory
	Timestamp   time.Time
	EntityType  string // "candidate" or "screening"
	CandidateID id.CandidateID
	ScreeningID id.ScreeningID
	Action      string
	OldStatus   string
	NewStatus   string
	ActorID     id.ActorID
	Remarks     string
	RequestID   string // correlation ID from HTTP request context
}

type EventName string

const (
	// Candidate lifecycle events
	EventCandidateCreated EventName = "candidate_created"
	EventStatusChanged    EventName = "status_changed"
	EventAtRiskFlagged    EventName = "at_risk_flagged"
	EventAtRiskCleared    EventName = "at_risk_cleared"

	// Screening events
	EventScreeningInitiated    EventName = "screening_initiated"
	EventScreeningCallRecorded EventName = "screening_call_recorded"
	EventScreeningPassed       EventName = "screening_passed"
	EventScreeningFailed       EventName = "screening_failed"
	EventScreeningDeferred     EventName = "screening_deferred"
	EventScreeningCancelled    EventName = "screening_cancelled"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[EventName]EventCategory{
	EventCandidateCreated:      CategoryCompliance,
	EventStatusChanged:         CategoryCompliance,
	EventScreeningPassed:       CategoryCompliance,
	EventScreeningFailed:       CategoryCompliance,
	EventScreeningCancelled:    CategoryCompliance,
	EventAtRiskFlagged:         CategoryOperations,
	EventAtRiskCleared:         CategoryOperations,
	EventScreeningInitiated:    CategoryOperations,
	EventScreeningCallRecorded: CategoryOperations,
	EventScreeningDeferred:     CategoryOperations,
}

// Category returns the category for an event name, defaulting to operations
// for unmapped names.
func Category(name EventName) EventCategory {
	if c, ok := eventCategories[name]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]Event, error)
}
