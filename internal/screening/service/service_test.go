package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	cmodels "passage/internal/candidate/models"
	csvc "passage/internal/candidate/service"
	candidatestore "passage/internal/candidate/store/candidate"
	"passage/internal/facts"
	"passage/internal/identifier"
	"passage/internal/identifier/sequence"
	"passage/internal/screening/models"
	"passage/internal/screening/service"
	screeningstore "passage/internal/screening/store/screening"
	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	audit "passage/pkg/platform/audit"
	auditpublisher "passage/pkg/platform/audit/publisher"
	auditmemory "passage/pkg/platform/audit/store/memory"
)

// The suite wires the real lifecycle engine underneath the screening service
// so pass/fail outcomes exercise the actual promotion and rejection edges.
type ScreeningServiceSuite struct {
	suite.Suite
	candidates *candidatestore.InMemory
	screenings *screeningstore.InMemory
	facts      *facts.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	lifecycle  *csvc.Service
	service    *service.Service
	actor      id.ActorID
}

func TestScreeningServiceSuite(t *testing.T) {
	suite.Run(t, new(ScreeningServiceSuite))
}

func (s *ScreeningServiceSuite) SetupTest() {
	s.candidates = candidatestore.NewInMemory()
	s.screenings = screeningstore.NewInMemory()
	s.facts = facts.NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.actor = id.ActorID(uuid.New())

	issuer, err := identifier.New(sequence.NewInMemory(), "PMC")
	s.Require().NoError(err)
	publisher := auditpublisher.NewPublisher(s.auditStore)

	s.lifecycle, err = csvc.New(s.candidates, s.facts.Facts(s.screenings), issuer,
		csvc.WithAuditPublisher(publisher))
	s.Require().NoError(err)

	s.service, err = service.New(s.screenings, s.lifecycle,
		service.WithAuditPublisher(publisher))
	s.Require().NoError(err)
}

// seedCandidate stores a candidate in screening status.
func (s *ScreeningServiceSuite) seedCandidate() *cmodels.Candidate {
	c, err := cmodels.NewCandidate(id.NewCandidateID(), "Ali Raza", "3520212345674", "0300-1234567", time.Now())
	s.Require().NoError(err)
	c.Status = cmodels.StatusScreening
	s.Require().NoError(s.candidates.Create(context.Background(), c))
	return c
}

func (s *ScreeningServiceSuite) initiate(candidateID id.CandidateID, t models.ScreeningType) *models.Screening {
	screening, err := s.service.Initiate(context.Background(), candidateID, t, s.actor)
	s.Require().NoError(err)
	return screening
}

func (s *ScreeningServiceSuite) TestInitiate() {
	s.Run("creates a pending screening", func() {
		c := s.seedCandidate()
		screening := s.initiate(c.ID, models.TypeCall)

		s.Equal(models.ScreeningPending, screening.Status)
		s.Equal(models.TypeCall, screening.Type)
		s.Zero(screening.CallCount)

		events, err := s.auditStore.ListByCandidate(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Equal(string(audit.EventScreeningInitiated), events[len(events)-1].Action)
	})

	s.Run("unknown candidate is rejected", func() {
		_, err := s.service.Initiate(context.Background(), id.NewCandidateID(), models.TypeDesk, s.actor)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("retired candidate is rejected", func() {
		c, err := cmodels.NewCandidate(id.NewCandidateID(), "Retired Person", "0000000000001", "0300", time.Now())
		s.Require().NoError(err)
		c.ApplyStatus(cmodels.StatusDropped, time.Now())
		s.Require().NoError(s.candidates.Create(context.Background(), c))

		_, err = s.service.Initiate(context.Background(), c.ID, models.TypeDesk, s.actor)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ScreeningServiceSuite) TestRecordCallAttempt() {
	c := s.seedCandidate()
	screening := s.initiate(c.ID, models.TypeCall)

	s.Run("three unanswered calls exhaust the schedule", func() {
		var result *service.CallAttemptResult
		var err error
		for i := 1; i <= models.MaxCallAttempts; i++ {
			result, err = s.service.RecordCallAttempt(context.Background(), screening.ID,
				service.CallAttemptInput{Answered: false, Remarks: "no answer"}, s.actor)
			s.Require().NoError(err)
			s.Equal(i, result.CallCount)
		}
		s.Nil(result.NextCallDate, "the final attempt clears the schedule")

		stored, err := s.screenings.FindByID(context.Background(), screening.ID)
		s.Require().NoError(err)
		s.Equal(models.ScreeningInProgress, stored.Status)
		s.Len(stored.CallLog, models.MaxCallAttempts)
	})

	s.Run("a fourth attempt is refused", func() {
		_, err := s.service.RecordCallAttempt(context.Background(), screening.ID,
			service.CallAttemptInput{Answered: false}, s.actor)
		s.Error(err)
		s.True(errors.Is(err, models.ErrAttemptLimitExceeded))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("non-call screenings refuse call attempts", func() {
		desk := s.initiate(c.ID, models.TypeDesk)
		_, err := s.service.RecordCallAttempt(context.Background(), desk.ID,
			service.CallAttemptInput{Answered: true}, s.actor)
		s.Error(err)
	})
}

func (s *ScreeningServiceSuite) TestDefer() {
	c := s.seedCandidate()
	screening := s.initiate(c.ID, models.TypeCall)

	_, err := s.service.RecordCallAttempt(context.Background(), screening.ID,
		service.CallAttemptInput{Answered: false}, s.actor)
	s.Require().NoError(err)

	nextDate := time.Now().AddDate(0, 0, 7)
	deferred, err := s.service.Defer(context.Background(), screening.ID, nextDate, s.actor, "candidate travelling")
	s.Require().NoError(err)

	s.Equal(models.ScreeningDeferred, deferred.Status)
	s.Equal(1, deferred.CallCount, "deferral must not consume a call attempt")
	s.Require().NotNil(deferred.NextCallDate)
	s.WithinDuration(nextDate, *deferred.NextCallDate, time.Second)
}

func (s *ScreeningServiceSuite) TestMarkPassed() {
	c := s.seedCandidate()
	desk := s.initiate(c.ID, models.TypeDesk)
	call := s.initiate(c.ID, models.TypeCall)
	physical := s.initiate(c.ID, models.TypePhysical)

	s.Run("passing part of the required set does not promote", func() {
		result, err := s.service.MarkPassed(context.Background(), desk.ID, s.actor, "clean record")
		s.Require().NoError(err)
		s.False(result.Promoted)

		result, err = s.service.MarkPassed(context.Background(), call.ID, s.actor, "reached on second try")
		s.Require().NoError(err)
		s.False(result.Promoted)

		stored, err := s.candidates.FindByID(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Equal(cmodels.StatusScreening, stored.Status)
	})

	s.Run("passing the last required screening promotes to registered", func() {
		result, err := s.service.MarkPassed(context.Background(), physical.ID, s.actor, "fit")
		s.Require().NoError(err)
		s.True(result.Promoted)

		stored, err := s.candidates.FindByID(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Equal(cmodels.StatusRegistered, stored.Status)
	})

	s.Run("a resolved screening cannot be passed again", func() {
		_, err := s.service.MarkPassed(context.Background(), desk.ID, s.actor, "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ScreeningServiceSuite) TestMarkFailed() {
	c := s.seedCandidate()
	desk := s.initiate(c.ID, models.TypeDesk)

	failed, err := s.service.MarkFailed(context.Background(), desk.ID, s.actor, "forged documents")
	s.Require().NoError(err)
	s.Equal(models.ScreeningFailed, failed.Status)

	stored, err := s.candidates.FindByID(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Equal(cmodels.StatusRejected, stored.Status)
	s.True(stored.IsRetired())

	events, err := s.auditStore.ListByCandidate(context.Background(), c.ID)
	s.Require().NoError(err)
	var rejection *audit.Event
	for i := range events {
		if events[i].Action == string(audit.EventStatusChanged) {
			rejection = &events[i]
		}
	}
	s.Require().NotNil(rejection)
	s.Equal("rejected", rejection.NewStatus)
	s.Contains(rejection.Remarks, "desk screening failed: forged documents")
}

func (s *ScreeningServiceSuite) TestCancel() {
	c := s.seedCandidate()
	screening := s.initiate(c.ID, models.TypeMedical)

	cancelled, err := s.service.Cancel(context.Background(), screening.ID, s.actor, "withdrawn by candidate")
	s.Require().NoError(err)
	s.Equal(models.ScreeningCancelled, cancelled.Status)

	stored, err := s.candidates.FindByID(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Equal(cmodels.StatusScreening, stored.Status, "cancellation must not touch the candidate")
}

func (s *ScreeningServiceSuite) TestListByCandidate() {
	c := s.seedCandidate()
	s.initiate(c.ID, models.TypeDesk)
	s.initiate(c.ID, models.TypeCall)

	list, err := s.service.ListByCandidate(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Len(list, 2)
}
