package facts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"passage/internal/candidate/service"
	id "passage/pkg/domain"
)

// PostgresStore answers fact queries against the collaborator tables with
// narrow existence and aggregate queries; it never loads full collections.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) MissingMandatory(ctx context.Context, candidateID id.CandidateID, stage service.DocumentStage) ([]string, error) {
	required := MandatoryDocuments[stage]
	query := `
		SELECT r.doc_type
		FROM unnest($2::text[]) AS r(doc_type)
		WHERE NOT EXISTS (
			SELECT 1 FROM documents d
			WHERE d.candidate_id = $1 AND d.doc_type = r.doc_type
		)
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(candidateID), pq.Array(required))
	if err != nil {
		return nil, fmt.Errorf("query missing documents: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan missing document: %w", err)
		}
		missing = append(missing, doc)
	}
	return missing, rows.Err()
}

func (s *PostgresStore) HasNextOfKin(ctx context.Context, candidateID id.CandidateID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM next_of_kin WHERE candidate_id = $1)`, candidateID)
}

func (s *PostgresStore) HasCompletedUndertaking(ctx context.Context, candidateID id.CandidateID) (bool, error) {
	return s.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM undertakings WHERE candidate_id = $1 AND completed)`, candidateID)
}

func (s *PostgresStore) FinalAssessmentPassed(ctx context.Context, candidateID id.CandidateID) (bool, error) {
	return s.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM assessments WHERE candidate_id = $1 AND kind = 'final' AND passed)`, candidateID)
}

func (s *PostgresStore) CertificateIssued(ctx context.Context, candidateID id.CandidateID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM certificates WHERE candidate_id = $1)`, candidateID)
}

func (s *PostgresStore) Snapshot(ctx context.Context, candidateID id.CandidateID) (*service.VisaSnapshot, error) {
	var v service.VisaSnapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT visa_issued, trade_test_passed, medical_passed
		FROM visa_processes WHERE candidate_id = $1
	`, uuid.UUID(candidateID)).Scan(&v.VisaIssued, &v.TradeTestPassed, &v.MedicalPassed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query visa snapshot: %w", err)
	}
	return &v, nil
}

// Departure returns the DepartureFacts view over this store.
func (s *PostgresStore) Departure() service.DepartureFacts {
	return postgresDepartureView{store: s}
}

type postgresDepartureView struct {
	store *PostgresStore
}

func (v postgresDepartureView) Snapshot(ctx context.Context, candidateID id.CandidateID) (*service.DepartureSnapshot, error) {
	var d service.DepartureSnapshot
	var departure sql.NullTime
	var flight sql.NullString
	err := v.store.db.QueryRowContext(ctx, `
		SELECT departure_date, flight_number, briefing_completed
		FROM departures WHERE candidate_id = $1
	`, uuid.UUID(candidateID)).Scan(&departure, &flight, &d.BriefingCompleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query departure snapshot: %w", err)
	}
	if departure.Valid {
		t := departure.Time
		d.DepartureDate = &t
	}
	d.FlightNumber = flight.String
	return &d, nil
}

// Facts assembles the validator's fact bundle from this store plus the
// screening aggregate.
func (s *PostgresStore) Facts(screenings service.ScreeningFacts) service.Facts {
	return service.Facts{
		Documents:    s,
		NextOfKin:    s,
		Screenings:   screenings,
		Undertakings: s,
		Training:     s,
		Visa:         s,
		Departure:    s.Departure(),
	}
}

func (s *PostgresStore) exists(ctx context.Context, query string, candidateID id.CandidateID) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(candidateID)).Scan(&ok); err != nil {
		return false, fmt.Errorf("existence query: %w", err)
	}
	return ok, nil
}
