package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CandidatesCreated    prometheus.Counter
	TransitionsApplied   *prometheus.CounterVec
	TransitionsRejected  *prometheus.CounterVec
	ScreeningCalls       prometheus.Counter
	DuplicateMatches     prometheus.Counter
	InvalidationFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CandidatesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_candidates_created_total",
			Help: "Total number of candidates created at intake",
		}),
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_transitions_applied_total",
			Help: "Accepted lifecycle transitions by target status",
		}, []string{"target"}),
		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_transitions_rejected_total",
			Help: "Rejected lifecycle transitions by target status",
		}, []string{"target"}),
		ScreeningCalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_screening_calls_total",
			Help: "Recorded screening call attempts",
		}),
		DuplicateMatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_duplicate_matches_total",
			Help: "Potential duplicate candidates surfaced at intake",
		}),
		InvalidationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_readmodel_invalidation_failures_total",
			Help: "Read-model cache invalidations that failed",
		}),
	}
}

// IncrementTransitionApplied increments the applied counter for a target status.
func (m *Metrics) IncrementTransitionApplied(target string) {
	m.TransitionsApplied.WithLabelValues(target).Inc()
}

// IncrementTransitionRejected increments the rejected counter for a target status.
func (m *Metrics) IncrementTransitionRejected(target string) {
	m.TransitionsRejected.WithLabelValues(target).Inc()
}
