package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"passage/internal/candidate/models"
	"passage/internal/platform/metrics"
	smodels "passage/internal/screening/models"
	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/sentinel"
	"passage/pkg/requestcontext"
)

var tracer = otel.Tracer("passage/internal/candidate/service")

// CandidateStore is the persistence interface the lifecycle service needs.
type CandidateStore interface {
	Create(ctx context.Context, candidate *models.Candidate) error
	FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	Update(ctx context.Context, candidate *models.Candidate) error

	// ApplyTransition persists a status change atomically per candidate: the
	// store re-checks that the current status still equals from before
	// applying mutate, and returns sentinel.ErrConflict when the snapshot is
	// stale. Two concurrent transitions on one candidate can never both
	// succeed.
	ApplyTransition(ctx context.Context, candidateID id.CandidateID, from models.Status, mutate func(*models.Candidate)) (*models.Candidate, error)
}

// AuditPublisher records audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner runs fn inside one storage transaction when the backing store
// supports transactions, so a status change and its audit event commit or
// roll back together. The default runner just invokes fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Change describes a committed candidate mutation, emitted so external
// read-model caches can invalidate derived views. Decoupled from the store:
// the service emits after a successful commit, never from a save hook.
type Change struct {
	CandidateID id.CandidateID
	NewStatus   models.Status
}

// ChangeListener consumes committed changes.
type ChangeListener interface {
	CandidateChanged(ctx context.Context, change Change)
}

// Decision is the outcome of validating a requested transition. A
// disallowed transition is a normal, fully-explained result, not an error:
// Issues lists every failed precondition, one entry each, in evaluation
// order.
type Decision struct {
	Allowed bool
	Issues  []string
}

// ApplyResult reports an accepted transition.
type ApplyResult struct {
	NewStatus    models.Status
	AuditEventID id.AuditEventID
}

// Service is the candidate lifecycle engine: it validates transitions
// against collaborator facts and applies accepted ones.
type Service struct {
	store    CandidateStore
	facts    Facts
	issuer   IdentifierIssuer
	dupes    DuplicateFinder
	auditP   AuditPublisher
	listener ChangeListener
	tx       TxRunner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditP = publisher }
}

func WithChangeListener(listener ChangeListener) Option {
	return func(s *Service) { s.listener = listener }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDuplicateFinder(finder DuplicateFinder) Option {
	return func(s *Service) { s.dupes = finder }
}

func WithTxRunner(runner TxRunner) Option {
	return func(s *Service) { s.tx = runner }
}

// New constructs the lifecycle service.
func New(store CandidateStore, facts Facts, issuer IdentifierIssuer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("candidate store is required")
	}
	s := &Service{store: store, facts: facts, issuer: issuer}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tx == nil {
		s.tx = passthroughTx{}
	}
	return s, nil
}

// ValidateTransition evaluates whether the candidate may move to target. It
// never mutates state; calling it twice without an intervening mutation
// yields identical results. All precondition checks run eagerly and every
// failing reason is collected.
func (s *Service) ValidateTransition(ctx context.Context, candidateID id.CandidateID, target models.Status) (Decision, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.ValidateTransition")
	defer span.End()
	span.SetAttributes(attribute.String("candidate.target_status", string(target)))

	candidate, err := s.store.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Decision{}, dErrors.New(dErrors.CodeNotFound, "candidate not found")
		}
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
	}
	return s.validate(ctx, candidate, target)
}

// validate runs the precondition set for target against a loaded candidate.
func (s *Service) validate(ctx context.Context, c *models.Candidate, target models.Status) (Decision, error) {
	var issues []string

	collect := func(more []string, err error) error {
		if err != nil {
			return err
		}
		issues = append(issues, more...)
		return nil
	}

	var err error
	switch target {
	case models.StatusScreening:
		err = collect(s.screeningPreconditions(ctx, c))
	case models.StatusRegistered:
		err = collect(s.registeredPreconditions(ctx, c))
	case models.StatusTraining:
		err = collect(s.trainingPreconditions(ctx, c))
	case models.StatusVisaProcess:
		err = collect(s.visaProcessPreconditions(ctx, c))
	case models.StatusReady:
		err = collect(s.readyPreconditions(ctx, c))
	case models.StatusDeparted:
		err = collect(s.departedPreconditions(ctx, c))
	case models.StatusReturned:
		issues = requireCurrent(c, models.StatusDeparted, target)
	case models.StatusRejected, models.StatusDropped:
		issues = escapePreconditions(c, target)
	case models.StatusNew:
		issues = []string{`no transition leads to status "new"`}
	default:
		issues = []string{fmt.Sprintf("unknown target status %q", target)}
	}
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to evaluate transition preconditions")
	}

	return Decision{Allowed: len(issues) == 0, Issues: issues}, nil
}

// requireCurrent produces the status-mismatch issue for a forward edge.
func requireCurrent(c *models.Candidate, want, target models.Status) []string {
	if c.Status == want {
		return nil
	}
	return []string{fmt.Sprintf("cannot move to %q: current status is %q, expected %q", target, c.Status, want)}
}

// escapePreconditions gates the rejected/dropped edges: available from every
// non-terminal state except ready and departed.
func escapePreconditions(c *models.Candidate, target models.Status) []string {
	if c.Status.IsTerminal() {
		return []string{fmt.Sprintf("candidate is already in terminal status %q", c.Status)}
	}
	if c.Status == models.StatusReady || c.Status == models.StatusDeparted {
		return []string{fmt.Sprintf("cannot move to %q from %q", target, c.Status)}
	}
	return nil
}

func (s *Service) screeningPreconditions(ctx context.Context, c *models.Candidate) ([]string, error) {
	issues := requireCurrent(c, models.StatusNew, models.StatusScreening)

	if strings.TrimSpace(c.FullName) == "" {
		issues = append(issues, "full name is required")
	}
	if strings.TrimSpace(c.NationalID) == "" {
		issues = append(issues, "national id is required")
	}
	if strings.TrimSpace(c.Phone) == "" {
		issues = append(issues, "phone number is required")
	}

	missing, err := s.facts.Documents.MissingMandatory(ctx, c.ID, StagePreDeparture)
	if err != nil {
		return nil, err
	}
	for _, doc := range missing {
		issues = append(issues, fmt.Sprintf("missing mandatory document: %s", doc))
	}
	return issues, nil
}

func (s *Service) registeredPreconditions(ctx context.Context, c *models.Candidate) ([]string, error) {
	issues := requireCurrent(c, models.StatusScreening, models.StatusRegistered)

	passed, err := s.facts.Screenings.PassedTypes(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range smodels.RequiredTypes {
		if !passed[t] {
			issues = append(issues, fmt.Sprintf("screening not passed: %s", t))
		}
	}
	return issues, nil
}

func (s *Service) trainingPreconditions(ctx context.Context, c *models.Candidate) ([]string, error) {
	issues := requireCurrent(c, models.StatusRegistered, models.StatusTraining)

	missing, err := s.facts.Documents.MissingMandatory(ctx, c.ID, StageRegistration)
	if err != nil {
		return nil, err
	}
	for _, doc := range missing {
		issues = append(issues, fmt.Sprintf("missing mandatory document: %s", doc))
	}

	hasKin, err := s.facts.NextOfKin.HasNextOfKin(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !hasKin {
		issues = append(issues, "next of kin record is missing")
	}

	hasUndertaking, err := s.facts.Undertakings.HasCompletedUndertaking(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !hasUndertaking {
		issues = append(issues, "no completed undertaking on file")
	}
	return issues, nil
}

func (s *Service) visaProcessPreconditions(ctx context.Context, c *models.Candidate) ([]string, error) {
	issues := requireCurrent(c, models.StatusTraining, models.StatusVisaProcess)

	if c.TrainingStatus != models.TrainingCompleted {
		issues = append(issues, fmt.Sprintf("training is not completed: training status is %q", c.TrainingStatus))
	}

	assessed, err := s.facts.Training.FinalAssessmentPassed(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !assessed {
		issues = append(issues, "no passing final assessment on file")
	}

	certified, err := s.facts.Training.CertificateIssued(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !certified {
		issues = append(issues, "no training certificate on file")
	}
	return issues, nil
}

func (s *Service) readyPreconditions(ctx context.Context, c *models.Candidate) ([]string, error) {
	issues := requireCurrent(c, models.StatusVisaProcess, models.StatusReady)

	visa, err := s.facts.Visa.Snapshot(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if visa == nil {
		issues = append(issues, "no visa process record on file")
		return issues, nil
	}
	if !visa.VisaIssued {
		issues = append(issues, "visa has not been issued")
	}
	if !visa.TradeTestPassed {
		issues = append(issues, "trade test not passed")
	}
	if !visa.MedicalPassed {
		issues = append(issues, "medical not passed")
	}
	return issues, nil
}

func (s *Service) departedPreconditions(ctx context.Context, c *models.Candidate) ([]string, error) {
	issues := requireCurrent(c, models.StatusReady, models.StatusDeparted)

	departure, err := s.facts.Departure.Snapshot(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if departure == nil {
		issues = append(issues, "no departure record on file")
		return issues, nil
	}
	if departure.DepartureDate == nil {
		issues = append(issues, "departure date not set")
	}
	if strings.TrimSpace(departure.FlightNumber) == "" {
		issues = append(issues, "flight details missing")
	}
	if !departure.BriefingCompleted {
		issues = append(issues, "pre-departure briefing not completed")
	}
	return issues, nil
}

// ApplyTransition validates and applies a transition, emitting one audit
// event on acceptance. A transition the validator rejects fails with an
// invariant violation carrying every issue; callers should consult
// ValidateTransition first and treat this failure as an integration fault.
func (s *Service) ApplyTransition(ctx context.Context, candidateID id.CandidateID, target models.Status, actorID id.ActorID, remarks string) (*ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.ApplyTransition")
	defer span.End()
	span.SetAttributes(attribute.String("candidate.target_status", string(target)))

	candidate, err := s.store.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "candidate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
	}

	decision, err := s.validate(ctx, candidate, target)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		if s.metrics != nil {
			s.metrics.IncrementTransitionRejected(string(target))
		}
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"invalid transition from %q to %q: %s", candidate.Status, target, strings.Join(decision.Issues, "; "))
	}

	now := requestcontext.Now(ctx)
	oldStatus := candidate.Status
	eventID := id.NewAuditEventID()

	// The status write and the audit append run inside one transaction when
	// the store supports it: an accepted transition without its audit event
	// must not commit.
	var updated *models.Candidate
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var txErr error
		updated, txErr = s.store.ApplyTransition(ctx, candidateID, oldStatus, func(c *models.Candidate) {
			c.ApplyStatus(target, now)
		})
		if txErr != nil {
			return txErr
		}
		if s.auditP == nil {
			return nil
		}
		return s.auditP.Emit(ctx, audit.Event{
			ID:          eventID,
			EntityType:  "candidate",
			CandidateID: candidateID,
			Action:      string(audit.EventStatusChanged),
			OldStatus:   string(oldStatus),
			NewStatus:   string(updated.Status),
			ActorID:     actorID,
			Remarks:     remarks,
			Timestamp:   now,
			RequestID:   requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "candidate status changed concurrently, retry")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply transition")
	}

	if s.metrics != nil {
		s.metrics.IncrementTransitionApplied(string(target))
	}
	if s.listener != nil {
		s.listener.CandidateChanged(ctx, Change{CandidateID: candidateID, NewStatus: updated.Status})
	}

	s.logger.InfoContext(ctx, "candidate transition applied",
		"candidate_id", candidateID,
		"old_status", oldStatus,
		"new_status", updated.Status,
		"actor_id", actorID,
	)

	return &ApplyResult{NewStatus: updated.Status, AuditEventID: eventID}, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditP == nil {
		return
	}
	if err := s.auditP.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "error", err, "action", event.Action)
	}
}
