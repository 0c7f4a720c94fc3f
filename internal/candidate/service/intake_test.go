package service_test

import (
	"context"
	"fmt"
	"time"

	"passage/internal/candidate/models"
	"passage/internal/candidate/service"
	"passage/internal/duplicate"
	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	audit "passage/pkg/platform/audit"
)

func (s *LifecycleSuite) intake(input service.IntakeInput) *service.IntakeResult {
	result, err := s.service.Intake(context.Background(), input, s.actor)
	s.Require().NoError(err)
	return result
}

func (s *LifecycleSuite) TestIntake() {
	year := time.Now().Year()

	s.Run("issues identifiers and starts at new", func() {
		result := s.intake(service.IntakeInput{
			FullName:   "Ali Raza",
			NationalID: "3520212345674",
			Phone:      "0300-1234567",
		})

		c := result.Candidate
		s.Equal(models.StatusNew, c.Status)
		s.Equal(models.TrainingNotStarted, c.TrainingStatus)
		s.Equal(fmt.Sprintf("APP%04d%06d", year, 1), c.ApplicationID)
		s.Regexp(fmt.Sprintf(`^PMC-%04d-00001-\d$`, year), c.Code)
		s.Empty(result.Duplicates)

		events, err := s.auditStore.ListByCandidate(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventCandidateCreated), events[0].Action)
		s.Equal(s.actor, events[0].ActorID)
	})

	s.Run("invalid national id checksum is rejected", func() {
		_, err := s.service.Intake(context.Background(), service.IntakeInput{
			FullName:   "Ali Raza",
			NationalID: "3520212345675",
			Phone:      "0300-1234567",
		}, s.actor)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate national id conflicts", func() {
		_, err := s.service.Intake(context.Background(), service.IntakeInput{
			FullName:   "Someone Else",
			NationalID: "3520212345674",
			Phone:      "0301-0000000",
		}, s.actor)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("near-duplicate intake succeeds with an advisory warning", func() {
		result := s.intake(service.IntakeInput{
			FullName:   "Ali Raja",
			NationalID: "4201123456786",
			Phone:      "0300 1234567",
		})

		s.Require().NotEmpty(result.Duplicates)
		types := make(map[duplicate.MatchType]bool)
		for _, m := range result.Duplicates {
			s.NotEqual(result.Candidate.ID, m.CandidateID, "a candidate never duplicates itself")
			types[m.MatchType] = true
		}
		s.True(types[duplicate.MatchPhone], "shared phone number must be flagged")
	})
}

func (s *LifecycleSuite) TestGet() {
	created := s.intake(service.IntakeInput{
		FullName:   "Bilal Khan",
		NationalID: "1234567890127",
		Phone:      "0345-5551234",
	}).Candidate

	got, err := s.service.Get(context.Background(), created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal("Bilal Khan", got.FullName)

	_, err = s.service.Get(context.Background(), id.NewCandidateID())
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LifecycleSuite) TestSetAtRisk() {
	c := s.intake(service.IntakeInput{
		FullName:   "Bilal Khan",
		NationalID: "9999999999998",
		Phone:      "0345-5551234",
	}).Candidate

	s.Run("flagging records reason and audit event", func() {
		updated, err := s.service.SetAtRisk(context.Background(), c.ID, "unreachable for two weeks", s.actor)
		s.Require().NoError(err)
		s.Equal("unreachable for two weeks", updated.AtRiskReason)
		s.NotNil(updated.AtRiskSince)

		events, err := s.auditStore.ListByCandidate(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Equal(string(audit.EventAtRiskFlagged), events[len(events)-1].Action)
	})

	s.Run("empty reason clears the flag", func() {
		updated, err := s.service.SetAtRisk(context.Background(), c.ID, "", s.actor)
		s.Require().NoError(err)
		s.Empty(updated.AtRiskReason)
		s.Nil(updated.AtRiskSince)

		events, err := s.auditStore.ListByCandidate(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Equal(string(audit.EventAtRiskCleared), events[len(events)-1].Action)
	})
}
