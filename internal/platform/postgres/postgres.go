// Package postgres opens the database handle and applies the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS candidates (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		application_id TEXT NOT NULL UNIQUE,
		national_id TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		normalized_phone TEXT NOT NULL,
		email TEXT,
		status TEXT NOT NULL,
		training_status TEXT NOT NULL,
		training_started_at TIMESTAMPTZ,
		training_ended_at TIMESTAMPTZ,
		at_risk_reason TEXT,
		at_risk_since TIMESTAMPTZ,
		batch_id UUID,
		campus_id UUID,
		trade_id UUID,
		program_id UUID,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		retired_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_normalized_phone ON candidates (normalized_phone)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_full_name ON candidates (lower(full_name) text_pattern_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates (status)`,

	`CREATE TABLE IF NOT EXISTS screenings (
		id UUID PRIMARY KEY,
		candidate_id UUID NOT NULL REFERENCES candidates (id),
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		call_count INTEGER NOT NULL DEFAULT 0,
		next_call_date TIMESTAMPTZ,
		call_log JSONB NOT NULL DEFAULT '[]',
		remarks TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_screenings_candidate ON screenings (candidate_id)`,

	`CREATE TABLE IF NOT EXISTS id_sequences (
		scheme TEXT NOT NULL,
		year INTEGER NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (scheme, year)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		category TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		entity_type TEXT NOT NULL,
		candidate_id UUID,
		screening_id UUID,
		action TEXT NOT NULL,
		old_status TEXT,
		new_status TEXT,
		actor_id UUID,
		remarks TEXT,
		request_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_candidate ON audit_events (candidate_id, occurred_at)`,

	`CREATE TABLE IF NOT EXISTS documents (
		candidate_id UUID NOT NULL REFERENCES candidates (id),
		doc_type TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (candidate_id, doc_type)
	)`,
	`CREATE TABLE IF NOT EXISTS next_of_kin (
		candidate_id UUID PRIMARY KEY REFERENCES candidates (id),
		full_name TEXT NOT NULL,
		relationship TEXT NOT NULL,
		phone TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS undertakings (
		candidate_id UUID PRIMARY KEY REFERENCES candidates (id),
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS assessments (
		candidate_id UUID NOT NULL REFERENCES candidates (id),
		kind TEXT NOT NULL,
		passed BOOLEAN NOT NULL,
		assessed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (candidate_id, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS certificates (
		candidate_id UUID PRIMARY KEY REFERENCES candidates (id),
		issued_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS visa_processes (
		candidate_id UUID PRIMARY KEY REFERENCES candidates (id),
		visa_issued BOOLEAN NOT NULL DEFAULT FALSE,
		trade_test_passed BOOLEAN NOT NULL DEFAULT FALSE,
		medical_passed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS departures (
		candidate_id UUID PRIMARY KEY REFERENCES candidates (id),
		departure_date TIMESTAMPTZ,
		flight_number TEXT,
		briefing_completed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
