package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "passage/pkg/domain"
	audit "passage/pkg/platform/audit"
	txcontext "passage/pkg/platform/tx"
)

// Store implements audit.Store over an audit_events table. Appends join the
// caller's transaction when one is present in context, so a status change
// and its audit event commit or roll back together.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.UUID(event.ID)
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}

	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, entity_type, candidate_id, screening_id,
			action, old_status, new_status, actor_id, remarks, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.EntityType,
		nullUUID(uuid.UUID(event.CandidateID)),
		nullUUID(uuid.UUID(event.ScreeningID)),
		event.Action,
		nullString(event.OldStatus),
		nullString(event.NewStatus),
		nullUUID(uuid.UUID(event.ActorID)),
		nullString(event.Remarks),
		nullString(event.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]audit.Event, error) {
	query := `
		SELECT id, category, occurred_at, entity_type, candidate_id, screening_id,
		       action, old_status, new_status, actor_id, remarks, request_id
		FROM audit_events
		WHERE candidate_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(candidateID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var eventID uuid.UUID
		var category string
		var candID, scrID, actorID uuid.NullUUID
		var oldStatus, newStatus, remarks, requestID sql.NullString
		if err := rows.Scan(&eventID, &category, &e.Timestamp, &e.EntityType,
			&candID, &scrID, &e.Action, &oldStatus, &newStatus, &actorID,
			&remarks, &requestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = id.AuditEventID(eventID)
		e.Category = audit.EventCategory(category)
		e.CandidateID = id.CandidateID(candID.UUID)
		e.ScreeningID = id.ScreeningID(scrID.UUID)
		e.ActorID = id.ActorID(actorID.UUID)
		e.OldStatus = oldStatus.String
		e.NewStatus = newStatus.String
		e.Remarks = remarks.String
		e.RequestID = requestID.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
