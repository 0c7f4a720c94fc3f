// Package readmodel invalidates externally cached dashboard views when a
// candidate changes. The lifecycle service emits an explicit change event
// after a successful commit; this consumer drops the affected Redis keys
// and publishes a notification for out-of-process read models. Failures are
// logged and counted, never propagated into the mutation path.
package readmodel

import (
	"context"
	"fmt"
	"log/slog"

	"passage/internal/candidate/service"
	"passage/internal/platform/metrics"
	"passage/internal/platform/redis"
)

const (
	candidateKeyPrefix = "passage:candidate:"
	pipelineKey        = "passage:dashboard:pipeline"
	changeChannel      = "passage.candidate.changed"
)

// Invalidator is a service.ChangeListener over Redis.
type Invalidator struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Invalidator)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Invalidator) { i.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Invalidator) { i.metrics = m }
}

// New constructs an invalidator. A nil client yields a nil invalidator,
// which callers may pass around safely; the lifecycle service treats a nil
// listener as "no external read model".
func New(client *redis.Client, opts ...Option) *Invalidator {
	if client == nil {
		return nil
	}
	inv := &Invalidator{client: client}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.logger == nil {
		inv.logger = slog.Default()
	}
	return inv
}

// CandidateChanged drops the candidate's cached view and the pipeline
// dashboard aggregate, then notifies subscribers.
func (i *Invalidator) CandidateChanged(ctx context.Context, change service.Change) {
	keys := []string{candidateKeyPrefix + change.CandidateID.String(), pipelineKey}
	if err := i.client.Del(ctx, keys...).Err(); err != nil {
		i.fail(ctx, "cache invalidation failed", err, change)
		return
	}

	payload := fmt.Sprintf(`{"candidate_id":%q,"new_status":%q}`, change.CandidateID, change.NewStatus)
	if err := i.client.Publish(ctx, changeChannel, payload).Err(); err != nil {
		i.fail(ctx, "change publish failed", err, change)
	}
}

func (i *Invalidator) fail(ctx context.Context, msg string, err error, change service.Change) {
	i.logger.WarnContext(ctx, msg, "error", err, "candidate_id", change.CandidateID)
	if i.metrics != nil {
		i.metrics.InvalidationFailures.Inc()
	}
}
