//go:build integration

package candidate_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"passage/internal/candidate/models"
	"passage/internal/candidate/store/candidate"
	"passage/internal/duplicate"
	id "passage/pkg/domain"
	"passage/pkg/platform/sentinel"
	"passage/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *candidate.Postgres
	seq      atomic.Int64
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = candidate.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "screenings", "audit_events", "candidates")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTestCandidate(fullName, phone string) *models.Candidate {
	n := s.seq.Add(1)
	c, err := models.NewCandidate(id.NewCandidateID(), fullName, fmt.Sprintf("%013d", n), phone, time.Now())
	s.Require().NoError(err)
	c.Code = fmt.Sprintf("PMC-2026-%05d-0", n)
	c.ApplicationID = fmt.Sprintf("APP2026%06d", n)
	return c
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()

	c := s.newTestCandidate("Ali Raza", "0300-1234567")
	c.Email = "ali@example.com"
	s.Require().NoError(s.store.Create(ctx, c))

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Equal(c.Code, found.Code)
	s.Equal(c.NationalID, found.NationalID)
	s.Equal("ali@example.com", found.Email)
	s.Equal(models.StatusNew, found.Status)
	s.Equal(models.TrainingNotStarted, found.TrainingStatus)
	s.Nil(found.TrainingStartedAt)
	s.Nil(found.RetiredAt)
}

func (s *PostgresStoreSuite) TestDuplicateNationalIDConflicts() {
	ctx := context.Background()

	first := s.newTestCandidate("Ali Raza", "0300-1234567")
	s.Require().NoError(s.store.Create(ctx, first))

	second := s.newTestCandidate("Someone Else", "0302-0000000")
	second.NationalID = first.NationalID
	s.ErrorIs(s.store.Create(ctx, second), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestNotFoundError() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.CandidateID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	ghost := s.newTestCandidate("Ghost", "0300-0000000")
	s.ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdatePersistsAtRiskFields() {
	ctx := context.Background()

	c := s.newTestCandidate("Ali Raza", "0300-1234567")
	s.Require().NoError(s.store.Create(ctx, c))

	s.Require().NoError(c.FlagAtRisk("unreachable for two weeks", time.Now()))
	s.Require().NoError(s.store.Update(ctx, c))

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("unreachable for two weeks", found.AtRiskReason)
	s.NotNil(found.AtRiskSince)
}

func (s *PostgresStoreSuite) TestApplyTransition() {
	ctx := context.Background()

	c := s.newTestCandidate("Ali Raza", "0300-1234567")
	s.Require().NoError(s.store.Create(ctx, c))

	updated, err := s.store.ApplyTransition(ctx, c.ID, models.StatusNew, func(m *models.Candidate) {
		m.ApplyStatus(models.StatusScreening, time.Now())
	})
	s.Require().NoError(err)
	s.Equal(models.StatusScreening, updated.Status)

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusScreening, found.Status)

	// Stale expected status is a conflict, not a mutation.
	_, err = s.store.ApplyTransition(ctx, c.ID, models.StatusNew, func(m *models.Candidate) {
		m.ApplyStatus(models.StatusScreening, time.Now())
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

// TestConcurrentTransitions verifies that racing transitions on one candidate
// serialize at the database: exactly one wins, the rest observe a conflict.
func (s *PostgresStoreSuite) TestConcurrentTransitions() {
	ctx := context.Background()

	c := s.newTestCandidate("Ali Raza", "0300-1234567")
	s.Require().NoError(s.store.Create(ctx, c))

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.ApplyTransition(ctx, c.ID, models.StatusNew, func(m *models.Candidate) {
				m.ApplyStatus(models.StatusScreening, time.Now())
			})
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one transition should apply")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should observe a conflict")
}

func (s *PostgresStoreSuite) TestDirectoryQueries() {
	ctx := context.Background()

	local := s.newTestCandidate("Ali Raza", "0300-1234567")
	s.Require().NoError(s.store.Create(ctx, local))

	intl := s.newTestCandidate("Ahmed Khan", "+92 300 1234567")
	intl.Email = "ahmed@example.com"
	s.Require().NoError(s.store.Create(ctx, intl))

	other := s.newTestCandidate("Bilal Ahmed", "0321-9999999")
	s.Require().NoError(s.store.Create(ctx, other))

	s.Run("phone lookup bridges country-code prefixes via the suffix", func() {
		normalized := duplicate.NormalizePhone("0300 1234567")
		records, err := s.store.FindByPhone(ctx, normalized, normalized[len(normalized)-10:])
		s.Require().NoError(err)
		s.Len(records, 2)
	})

	s.Run("email lookup is exact", func() {
		records, err := s.store.FindByEmail(ctx, "ahmed@example.com")
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(intl.ID, records[0].ID)
	})

	s.Run("name prefix lookup is case-insensitive", func() {
		records, err := s.store.FindByNamePrefix(ctx, "ali")
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(local.ID, records[0].ID)
	})
}
