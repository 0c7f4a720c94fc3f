// Package publisher emits audit events to a store, synchronously by default
// or through a buffered channel when async mode is enabled.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "passage/pkg/domain"
	audit "passage/pkg/platform/audit"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox   chan audit.Event
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission through a channel of the
// given capacity. Compliance-category events always append synchronously so
// they join the caller's storage transaction and are never lost; other
// events fall back to a synchronous append when the buffer is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithLogger sets a logger for drop/persist failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher constructs a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.inbox != nil {
		go p.drain()
	} else {
		close(p.done)
	}
	return p
}

// Emit records one audit event, stamping ID and timestamp when absent.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == (id.AuditEventID{}) {
		event.ID = id.NewAuditEventID()
	}
	if event.Category == "" {
		event.Category = audit.Category(audit.EventName(event.Action))
	}

	if p.inbox == nil || event.Category == audit.CategoryCompliance {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("audit buffer full, appending synchronously",
			"action", event.Action,
			"entity_type", event.EntityType,
		)
		return p.store.Append(ctx, event)
	}
}

// List returns events recorded for one candidate.
func (p *Publisher) List(ctx context.Context, candidateID id.CandidateID) ([]audit.Event, error) {
	return p.store.ListByCandidate(ctx, candidateID)
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("audit append failed", "error", err, "action", event.Action)
		}
	}
}

// Close drains any buffered events and stops the background writer. Safe to
// call more than once.
func (p *Publisher) Close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.inbox != nil {
		close(p.inbox)
		<-p.done
	}
}
