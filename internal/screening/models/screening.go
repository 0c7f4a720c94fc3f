// Package models defines the screening record and its call-retry state
// machine.
//
// Valid status graph:
//
//	pending ──► in_progress ──► passed
//	   │             │      └─► failed
//	   │             └────────► deferred ──► (pending actions again)
//	   └──► passed / failed / deferred / cancelled
//
// passed, failed and cancelled are terminal.
package models

import (
	"errors"
	"time"

	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
)

// ScreeningType is the channel a candidate is evaluated through.
type ScreeningType string

const (
	TypeDesk     ScreeningType = "desk"
	TypeCall     ScreeningType = "call"
	TypePhysical ScreeningType = "physical"
	TypeDocument ScreeningType = "document"
	TypeMedical  ScreeningType = "medical"
)

// RequiredTypes are the screening channels that must all be passed before a
// candidate can be registered.
var RequiredTypes = []ScreeningType{TypeDesk, TypeCall, TypePhysical}

var validTypes = map[ScreeningType]bool{
	TypeDesk:     true,
	TypeCall:     true,
	TypePhysical: true,
	TypeDocument: true,
	TypeMedical:  true,
}

// ParseType constructs a ScreeningType from external input.
func ParseType(s string) (ScreeningType, error) {
	t := ScreeningType(s)
	if !validTypes[t] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown screening type %q", s)
	}
	return t, nil
}

// ScreeningStatus is the state of one screening attempt.
type ScreeningStatus string

const (
	ScreeningPending    ScreeningStatus = "pending"
	ScreeningInProgress ScreeningStatus = "in_progress"
	ScreeningPassed     ScreeningStatus = "passed"
	ScreeningFailed     ScreeningStatus = "failed"
	ScreeningDeferred   ScreeningStatus = "deferred"
	ScreeningCancelled  ScreeningStatus = "cancelled"
)

// IsTerminal reports whether the screening can no longer change state.
func (s ScreeningStatus) IsTerminal() bool {
	return s == ScreeningPassed || s == ScreeningFailed || s == ScreeningCancelled
}

// MaxCallAttempts bounds the call-retry loop. Once reached, the screening
// must leave pending through an explicit pass/fail/defer/cancel action.
const MaxCallAttempts = 3

// ErrAttemptLimitExceeded signals a call attempt against a screening already
// at the attempt bound. This is an integration fault, not a business
// outcome; callers must check CallCount before recording.
var ErrAttemptLimitExceeded = errors.New("call attempt limit exceeded")

// CallAttempt is one logged phone contact.
type CallAttempt struct {
	At       time.Time
	Answered bool
	Duration time.Duration // zero when not recorded
	Remarks  string
}

// Screening is one screening attempt of a given type for one candidate.
// Records are soft-retained for audit and never destroyed.
//
// Invariant: CallCount never exceeds MaxCallAttempts, and once the bound is
// reached the status must not remain pending. Call-count fields are inert
// for non-call types.
type Screening struct {
	ID          id.ScreeningID
	CandidateID id.CandidateID
	Type        ScreeningType
	Status      ScreeningStatus

	CallCount    int
	NextCallDate *time.Time
	CallLog      []CallAttempt

	Remarks   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewScreening constructs a pending screening record.
func NewScreening(screeningID id.ScreeningID, candidateID id.CandidateID, t ScreeningType, now time.Time) *Screening {
	return &Screening{
		ID:          screeningID,
		CandidateID: candidateID,
		Type:        t,
		Status:      ScreeningPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanRecordCall checks whether another call attempt may be recorded.
func (s *Screening) CanRecordCall() error {
	if s.Type != TypeCall {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "call attempts do not apply to %s screenings", s.Type)
	}
	if s.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "screening is already %s", s.Status)
	}
	if s.CallCount >= MaxCallAttempts {
		return dErrors.Wrap(ErrAttemptLimitExceeded, dErrors.CodeInvariantViolation, "call attempt limit exceeded")
	}
	return nil
}

// ApplyCallAttempt records one call attempt and moves the screening to
// in_progress: any dialed attempt, answered or not, means evaluation has
// started, and the record may not sit at the attempt bound still pending.
// While the bound is not yet reached the next call is scheduled for the
// following day; at the bound the schedule is cleared. Call CanRecordCall
// first.
func (s *Screening) ApplyCallAttempt(attempt CallAttempt, now time.Time) {
	s.CallCount++
	if s.CallCount < MaxCallAttempts {
		next := now.AddDate(0, 0, 1)
		s.NextCallDate = &next
	} else {
		s.NextCallDate = nil
	}
	s.Status = ScreeningInProgress
	attempt.At = now
	s.CallLog = append(s.CallLog, attempt)
	s.UpdatedAt = now
}

// CanResolve checks whether a pass/fail/cancel action is still possible.
func (s *Screening) CanResolve() error {
	if s.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "screening is already %s", s.Status)
	}
	return nil
}

// ApplyPassed marks the screening passed. Call CanResolve first.
func (s *Screening) ApplyPassed(remarks string, now time.Time) {
	s.Status = ScreeningPassed
	s.appendRemarks(remarks)
	s.UpdatedAt = now
}

// ApplyFailed marks the screening failed. Call CanResolve first.
func (s *Screening) ApplyFailed(remarks string, now time.Time) {
	s.Status = ScreeningFailed
	s.appendRemarks(remarks)
	s.UpdatedAt = now
}

// ApplyCancelled marks the screening cancelled. Call CanResolve first.
func (s *Screening) ApplyCancelled(remarks string, now time.Time) {
	s.Status = ScreeningCancelled
	s.appendRemarks(remarks)
	s.UpdatedAt = now
}

// ApplyDeferred reschedules without consuming a call attempt. Call
// CanResolve first.
func (s *Screening) ApplyDeferred(nextDate time.Time, remarks string, now time.Time) {
	s.Status = ScreeningDeferred
	s.NextCallDate = &nextDate
	s.appendRemarks(remarks)
	s.UpdatedAt = now
}

func (s *Screening) appendRemarks(remarks string) {
	if remarks == "" {
		return
	}
	if s.Remarks != "" {
		s.Remarks += "; "
	}
	s.Remarks += remarks
}
