package screening

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"passage/internal/screening/models"
	id "passage/pkg/domain"
	"passage/pkg/platform/sentinel"
)

// Postgres persists screening records. The call log is stored as JSONB
// alongside the row; it is an audit detail, never queried relationally.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const screeningColumns = `
	id, candidate_id, type, status, call_count, next_call_date, call_log,
	remarks, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, sc *models.Screening) error {
	callLog, err := json.Marshal(sc.CallLog)
	if err != nil {
		return fmt.Errorf("marshal call log: %w", err)
	}
	query := `
		INSERT INTO screenings (` + screeningColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(sc.ID), uuid.UUID(sc.CandidateID), string(sc.Type), string(sc.Status),
		sc.CallCount, nullTime(sc.NextCallDate), callLog, nullStr(sc.Remarks),
		sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert screening: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, screeningID id.ScreeningID) (*models.Screening, error) {
	query := `SELECT ` + screeningColumns + ` FROM screenings WHERE id = $1`
	return scanScreening(s.db.QueryRowContext(ctx, query, uuid.UUID(screeningID)))
}

func (s *Postgres) Update(ctx context.Context, sc *models.Screening) error {
	callLog, err := json.Marshal(sc.CallLog)
	if err != nil {
		return fmt.Errorf("marshal call log: %w", err)
	}
	query := `
		UPDATE screenings SET
			status = $2, call_count = $3, next_call_date = $4, call_log = $5,
			remarks = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sc.ID), string(sc.Status), sc.CallCount, nullTime(sc.NextCallDate),
		callLog, nullStr(sc.Remarks), sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update screening: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]*models.Screening, error) {
	query := `SELECT ` + screeningColumns + ` FROM screenings WHERE candidate_id = $1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(candidateID))
	if err != nil {
		return nil, fmt.Errorf("list screenings: %w", err)
	}
	defer rows.Close()

	var out []*models.Screening
	for rows.Next() {
		sc, err := scanScreening(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Postgres) PassedTypes(ctx context.Context, candidateID id.CandidateID) (map[models.ScreeningType]bool, error) {
	query := `SELECT DISTINCT type FROM screenings WHERE candidate_id = $1 AND status = 'passed'`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(candidateID))
	if err != nil {
		return nil, fmt.Errorf("query passed screening types: %w", err)
	}
	defer rows.Close()

	passed := make(map[models.ScreeningType]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan screening type: %w", err)
		}
		passed[models.ScreeningType(t)] = true
	}
	return passed, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScreening(row rowScanner) (*models.Screening, error) {
	var sc models.Screening
	var sid, cid uuid.UUID
	var typ, status string
	var nextCall sql.NullTime
	var callLog []byte
	var remarks sql.NullString
	err := row.Scan(&sid, &cid, &typ, &status, &sc.CallCount, &nextCall,
		&callLog, &remarks, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan screening: %w", err)
	}
	sc.ID = id.ScreeningID(sid)
	sc.CandidateID = id.CandidateID(cid)
	sc.Type = models.ScreeningType(typ)
	sc.Status = models.ScreeningStatus(status)
	if nextCall.Valid {
		t := nextCall.Time
		sc.NextCallDate = &t
	}
	sc.Remarks = remarks.String
	if len(callLog) > 0 {
		if err := json.Unmarshal(callLog, &sc.CallLog); err != nil {
			return nil, fmt.Errorf("unmarshal call log: %w", err)
		}
	}
	return &sc, nil
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
