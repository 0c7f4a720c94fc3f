// Package service drives screening records through their call-retry state
// machine and feeds accepted outcomes back into the candidate lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cmodels "passage/internal/candidate/models"
	csvc "passage/internal/candidate/service"
	"passage/internal/platform/metrics"
	"passage/internal/screening/models"
	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/sentinel"
	"passage/pkg/requestcontext"
)

// Store is the persistence interface for screening records.
type Store interface {
	Create(ctx context.Context, screening *models.Screening) error
	FindByID(ctx context.Context, screeningID id.ScreeningID) (*models.Screening, error)
	Update(ctx context.Context, screening *models.Screening) error
	ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]*models.Screening, error)
	PassedTypes(ctx context.Context, candidateID id.CandidateID) (map[models.ScreeningType]bool, error)
}

// Lifecycle is the slice of the candidate lifecycle engine the screening
// flow drives: promotion to registered after all required screenings pass,
// and forced rejection after a failed screening.
type Lifecycle interface {
	Get(ctx context.Context, candidateID id.CandidateID) (*cmodels.Candidate, error)
	ValidateTransition(ctx context.Context, candidateID id.CandidateID, target cmodels.Status) (csvc.Decision, error)
	ApplyTransition(ctx context.Context, candidateID id.CandidateID, target cmodels.Status, actorID id.ActorID, remarks string) (*csvc.ApplyResult, error)
}

// AuditPublisher records audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates screening actions.
type Service struct {
	store     Store
	lifecycle Lifecycle
	auditP    AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditP = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the screening service.
func New(store Store, lifecycle Lifecycle, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("screening store is required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("lifecycle service is required")
	}
	s := &Service{store: store, lifecycle: lifecycle}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Initiate creates a pending screening of the given type for a candidate.
func (s *Service) Initiate(ctx context.Context, candidateID id.CandidateID, screeningType models.ScreeningType, actorID id.ActorID) (*models.Screening, error) {
	candidate, err := s.lifecycle.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate.IsRetired() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot initiate screening for a retired candidate")
	}

	now := requestcontext.Now(ctx)
	screening := models.NewScreening(id.NewScreeningID(), candidateID, screeningType, now)
	if err := s.store.Create(ctx, screening); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create screening")
	}

	s.emitAudit(ctx, screening, audit.EventScreeningInitiated, actorID, string(screeningType), now)
	return screening, nil
}

// CallAttemptInput carries one phone contact.
type CallAttemptInput struct {
	Answered bool
	Duration time.Duration
	Remarks  string
}

// CallAttemptResult reports the updated retry state.
type CallAttemptResult struct {
	CallCount    int
	NextCallDate *time.Time
}

// RecordCallAttempt logs one call against a call-type screening. Attempts
// beyond the bound fail with models.ErrAttemptLimitExceeded wrapped as an
// invariant violation; the caller must not retry.
func (s *Service) RecordCallAttempt(ctx context.Context, screeningID id.ScreeningID, input CallAttemptInput, actorID id.ActorID) (*CallAttemptResult, error) {
	screening, err := s.load(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if err := screening.CanRecordCall(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	screening.ApplyCallAttempt(models.CallAttempt{
		Answered: input.Answered,
		Duration: input.Duration,
		Remarks:  input.Remarks,
	}, now)

	if err := s.store.Update(ctx, screening); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update screening")
	}

	s.emitAudit(ctx, screening, audit.EventScreeningCallRecorded, actorID,
		fmt.Sprintf("attempt %d of %d, answered=%t", screening.CallCount, models.MaxCallAttempts, input.Answered), now)
	if s.metrics != nil {
		s.metrics.ScreeningCalls.Inc()
	}

	return &CallAttemptResult{CallCount: screening.CallCount, NextCallDate: screening.NextCallDate}, nil
}

// PassResult reports a pass action and whether it completed the required
// screening set and promoted the candidate to registered.
type PassResult struct {
	Screening *models.Screening
	Promoted  bool
}

// MarkPassed marks a screening passed. When that completes the required set
// (desk, call, physical) and the candidate is still in screening, the
// screening→registered transition is applied on the spot.
func (s *Service) MarkPassed(ctx context.Context, screeningID id.ScreeningID, actorID id.ActorID, remarks string) (*PassResult, error) {
	screening, err := s.load(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if err := screening.CanResolve(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	screening.ApplyPassed(remarks, now)
	if err := s.store.Update(ctx, screening); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update screening")
	}
	s.emitAudit(ctx, screening, audit.EventScreeningPassed, actorID, remarks, now)

	result := &PassResult{Screening: screening}

	decision, err := s.lifecycle.ValidateTransition(ctx, screening.CandidateID, cmodels.StatusRegistered)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		if _, err := s.lifecycle.ApplyTransition(ctx, screening.CandidateID, cmodels.StatusRegistered, actorID,
			"all required screenings passed"); err != nil {
			return nil, err
		}
		result.Promoted = true
	} else {
		s.logger.DebugContext(ctx, "candidate not yet eligible for registration",
			"candidate_id", screening.CandidateID,
			"issues", decision.Issues,
		)
	}
	return result, nil
}

// MarkFailed marks a screening failed and forces the owning candidate
// toward rejected with a remark, when an escape edge is still available.
func (s *Service) MarkFailed(ctx context.Context, screeningID id.ScreeningID, actorID id.ActorID, remarks string) (*models.Screening, error) {
	screening, err := s.load(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if err := screening.CanResolve(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	screening.ApplyFailed(remarks, now)
	if err := s.store.Update(ctx, screening); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update screening")
	}
	s.emitAudit(ctx, screening, audit.EventScreeningFailed, actorID, remarks, now)

	rejection := fmt.Sprintf("%s screening failed", screening.Type)
	if remarks != "" {
		rejection += ": " + remarks
	}
	decision, err := s.lifecycle.ValidateTransition(ctx, screening.CandidateID, cmodels.StatusRejected)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		if _, err := s.lifecycle.ApplyTransition(ctx, screening.CandidateID, cmodels.StatusRejected, actorID, rejection); err != nil {
			return nil, err
		}
	} else {
		s.logger.WarnContext(ctx, "failed screening could not reject candidate",
			"candidate_id", screening.CandidateID,
			"issues", decision.Issues,
		)
	}
	return screening, nil
}

// Defer reschedules a screening without consuming a call attempt.
func (s *Service) Defer(ctx context.Context, screeningID id.ScreeningID, nextDate time.Time, actorID id.ActorID, remarks string) (*models.Screening, error) {
	screening, err := s.load(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if err := screening.CanResolve(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	screening.ApplyDeferred(nextDate, remarks, now)
	if err := s.store.Update(ctx, screening); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update screening")
	}
	s.emitAudit(ctx, screening, audit.EventScreeningDeferred, actorID, remarks, now)
	return screening, nil
}

// Cancel marks a screening cancelled.
func (s *Service) Cancel(ctx context.Context, screeningID id.ScreeningID, actorID id.ActorID, remarks string) (*models.Screening, error) {
	screening, err := s.load(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if err := screening.CanResolve(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	screening.ApplyCancelled(remarks, now)
	if err := s.store.Update(ctx, screening); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update screening")
	}
	s.emitAudit(ctx, screening, audit.EventScreeningCancelled, actorID, remarks, now)
	return screening, nil
}

// ListByCandidate returns all screening records for a candidate.
func (s *Service) ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]*models.Screening, error) {
	screenings, err := s.store.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list screenings")
	}
	return screenings, nil
}

func (s *Service) load(ctx context.Context, screeningID id.ScreeningID) (*models.Screening, error) {
	screening, err := s.store.FindByID(ctx, screeningID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "screening not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load screening")
	}
	return screening, nil
}

func (s *Service) emitAudit(ctx context.Context, screening *models.Screening, action audit.EventName, actorID id.ActorID, remarks string, now time.Time) {
	if s.auditP == nil {
		return
	}
	event := audit.Event{
		ID:          id.NewAuditEventID(),
		EntityType:  "screening",
		CandidateID: screening.CandidateID,
		ScreeningID: screening.ID,
		Action:      string(action),
		NewStatus:   string(screening.Status),
		ActorID:     actorID,
		Remarks:     remarks,
		Timestamp:   now,
		RequestID:   requestcontext.RequestID(ctx),
	}
	if err := s.auditP.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "error", err, "action", event.Action)
	}
}
