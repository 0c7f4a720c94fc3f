package sequence

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists counters in an id_sequences table. The atomic
// upsert serializes issuance per (scheme, year) at the database, so
// concurrent intakes across processes never receive the same value.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Next(ctx context.Context, scheme string, year int) (int, error) {
	query := `
		INSERT INTO id_sequences (scheme, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (scheme, year)
		DO UPDATE SET value = id_sequences.value + 1
		RETURNING value
	`
	var value int
	if err := s.db.QueryRowContext(ctx, query, scheme, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("next sequence %s/%d: %w", scheme, year, err)
	}
	return value, nil
}
