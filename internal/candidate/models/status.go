// Package models defines the candidate aggregate and its lifecycle states.
//
// Valid status graph:
//
//	new ──► screening ──► registered ──► training ──► visa_process ──► ready ──► departed ──► returned
//	 │          │              │             │              │
//	 └──────────┴──────────────┴─────────────┴──────────────┴──► rejected / dropped
//
// rejected, dropped and returned are terminal. ready and departed permit no
// escape edges: once a candidate is cleared for departure, rejection and
// dropping are no longer available.
package models

import (
	dErrors "passage/pkg/domain-errors"
)

// Status is the candidate's primary pipeline stage.
type Status string

const (
	StatusNew         Status = "new"
	StatusScreening   Status = "screening"
	StatusRegistered  Status = "registered"
	StatusTraining    Status = "training"
	StatusVisaProcess Status = "visa_process"
	StatusReady       Status = "ready"
	StatusDeparted    Status = "departed"
	StatusReturned    Status = "returned"
	StatusRejected    Status = "rejected"
	StatusDropped     Status = "dropped"
)

// validStatuses is the single source of truth for known statuses.
var validStatuses = map[Status]bool{
	StatusNew:         true,
	StatusScreening:   true,
	StatusRegistered:  true,
	StatusTraining:    true,
	StatusVisaProcess: true,
	StatusReady:       true,
	StatusDeparted:    true,
	StatusReturned:    true,
	StatusRejected:    true,
	StatusDropped:     true,
}

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusNew:         {StatusScreening, StatusRejected, StatusDropped},
	StatusScreening:   {StatusRegistered, StatusRejected, StatusDropped},
	StatusRegistered:  {StatusTraining, StatusRejected, StatusDropped},
	StatusTraining:    {StatusVisaProcess, StatusRejected, StatusDropped},
	StatusVisaProcess: {StatusReady, StatusRejected, StatusDropped},
	StatusReady:       {StatusDeparted},
	StatusDeparted:    {StatusReturned},
	// returned, rejected and dropped are terminal: no outgoing transitions
}

// ParseStatus constructs a Status from external input, rejecting unknown
// values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
	}
	return st, nil
}

// IsValid reports whether the status is one of the known values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// CanTransitionTo reports whether the edge s → target exists in the graph.
// It checks adjacency only; the lifecycle validator layers the cross-entity
// preconditions on top.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// TrainingStatus is the sub-detail carried while a candidate is in training.
// Candidates that have not yet entered training hold TrainingNotStarted.
type TrainingStatus string

const (
	TrainingNotStarted TrainingStatus = "not_started"
	TrainingInProgress TrainingStatus = "in_progress"
	TrainingCompleted  TrainingStatus = "completed"
)

func (t TrainingStatus) String() string {
	return string(t)
}
