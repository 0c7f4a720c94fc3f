package candidate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"passage/internal/candidate/models"
	"passage/internal/duplicate"
	id "passage/pkg/domain"
	"passage/pkg/platform/sentinel"
	txcontext "passage/pkg/platform/tx"
)

// Postgres persists candidates. Status transitions run inside a transaction
// with a row lock so concurrent transitions on one candidate serialize at
// the database.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const candidateColumns = `
	id, code, application_id, national_id, full_name, phone, normalized_phone,
	email, status, training_status, training_started_at, training_ended_at,
	at_risk_reason, at_risk_since, batch_id, campus_id, trade_id, program_id,
	created_at, updated_at, retired_at
`

func (s *Postgres) Create(ctx context.Context, c *models.Candidate) error {
	query := `
		INSERT INTO candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Code, c.ApplicationID, c.NationalID, c.FullName,
		c.Phone, duplicate.NormalizePhone(c.Phone), nullStr(c.Email),
		string(c.Status), string(c.TrainingStatus),
		nullTime(c.TrainingStartedAt), nullTime(c.TrainingEndedAt),
		nullStr(c.AtRiskReason), nullTime(c.AtRiskSince),
		nullUUID(c.BatchID), nullUUID(c.CampusID), nullUUID(c.TradeID), nullUUID(c.ProgramID),
		c.CreatedAt, c.UpdatedAt, nullTime(c.RetiredAt),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	return scanCandidate(s.db.QueryRowContext(ctx, query, uuid.UUID(candidateID)))
}

func (s *Postgres) Update(ctx context.Context, c *models.Candidate) error {
	query := `
		UPDATE candidates SET
			full_name = $2, phone = $3, normalized_phone = $4, email = $5,
			training_status = $6, training_started_at = $7, training_ended_at = $8,
			at_risk_reason = $9, at_risk_since = $10, updated_at = $11, retired_at = $12
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(c.ID), c.FullName, c.Phone, duplicate.NormalizePhone(c.Phone),
		nullStr(c.Email), string(c.TrainingStatus),
		nullTime(c.TrainingStartedAt), nullTime(c.TrainingEndedAt),
		nullStr(c.AtRiskReason), nullTime(c.AtRiskSince), c.UpdatedAt, nullTime(c.RetiredAt),
	)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ApplyTransition(ctx context.Context, candidateID id.CandidateID, from models.Status, mutate func(*models.Candidate)) (*models.Candidate, error) {
	// Join a caller transaction when one is on the context; the caller then
	// owns the commit and any companion writes land atomically with ours.
	if tx, ok := txcontext.From(ctx); ok {
		return s.applyTransition(ctx, tx, candidateID, from, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	candidate, err := s.applyTransition(ctx, tx, candidateID, from, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return candidate, nil
}

func (s *Postgres) applyTransition(ctx context.Context, tx *sql.Tx, candidateID id.CandidateID, from models.Status, mutate func(*models.Candidate)) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1 FOR UPDATE`
	candidate, err := scanCandidate(tx.QueryRowContext(ctx, query, uuid.UUID(candidateID)))
	if err != nil {
		return nil, err
	}
	if candidate.Status != from {
		return nil, sentinel.ErrConflict
	}

	mutate(candidate)

	update := `
		UPDATE candidates SET
			status = $2, training_status = $3, training_started_at = $4,
			training_ended_at = $5, updated_at = $6, retired_at = $7
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		uuid.UUID(candidate.ID), string(candidate.Status), string(candidate.TrainingStatus),
		nullTime(candidate.TrainingStartedAt), nullTime(candidate.TrainingEndedAt),
		candidate.UpdatedAt, nullTime(candidate.RetiredAt),
	); err != nil {
		return nil, fmt.Errorf("update candidate status: %w", err)
	}
	return candidate, nil
}

// Directory queries for the duplicate detector. Each is a narrow indexed
// lookup; the detector applies the final matching rules.

func (s *Postgres) FindByPhone(ctx context.Context, normalized, suffix string) ([]duplicate.Record, error) {
	query := `
		SELECT id, full_name, phone, COALESCE(email, '')
		FROM candidates
		WHERE normalized_phone = $1 OR ($2 <> '' AND normalized_phone LIKE '%' || $2)
	`
	return s.queryRecords(ctx, query, normalized, suffix)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) ([]duplicate.Record, error) {
	return s.queryRecords(ctx, `
		SELECT id, full_name, phone, COALESCE(email, '')
		FROM candidates WHERE email = $1
	`, email)
}

func (s *Postgres) FindByNamePrefix(ctx context.Context, prefix string) ([]duplicate.Record, error) {
	return s.queryRecords(ctx, `
		SELECT id, full_name, phone, COALESCE(email, '')
		FROM candidates WHERE lower(full_name) LIKE lower($1) || '%'
	`, prefix)
}

func (s *Postgres) queryRecords(ctx context.Context, query string, args ...any) ([]duplicate.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidate directory: %w", err)
	}
	defer rows.Close()

	var records []duplicate.Record
	for rows.Next() {
		var r duplicate.Record
		var rid uuid.UUID
		if err := rows.Scan(&rid, &r.FullName, &r.Phone, &r.Email); err != nil {
			return nil, fmt.Errorf("scan candidate record: %w", err)
		}
		r.ID = id.CandidateID(rid)
		records = append(records, r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	var cid uuid.UUID
	var status, trainingStatus, normalizedPhone string
	var email, atRiskReason sql.NullString
	var trainingStart, trainingEnd, atRiskSince, retiredAt sql.NullTime
	var batch, campus, trade, program uuid.NullUUID
	err := row.Scan(&cid, &c.Code, &c.ApplicationID, &c.NationalID, &c.FullName,
		&c.Phone, &normalizedPhone, &email, &status, &trainingStatus,
		&trainingStart, &trainingEnd, &atRiskReason, &atRiskSince,
		&batch, &campus, &trade, &program, &c.CreatedAt, &c.UpdatedAt, &retiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	c.ID = id.CandidateID(cid)
	c.Status = models.Status(status)
	c.TrainingStatus = models.TrainingStatus(trainingStatus)
	c.Email = email.String
	c.AtRiskReason = atRiskReason.String
	c.TrainingStartedAt = timePtr(trainingStart)
	c.TrainingEndedAt = timePtr(trainingEnd)
	c.AtRiskSince = timePtr(atRiskSince)
	c.RetiredAt = timePtr(retiredAt)
	c.BatchID = batch.UUID
	c.CampusID = campus.UUID
	c.TradeID = trade.UUID
	c.ProgramID = program.UUID
	return &c, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
