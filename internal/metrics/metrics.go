// Package metrics holds the Prometheus collectors for the dispatch pipeline
// and its upstreams. All collectors register with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchOutcomes counts per-recipient outcomes by dispatch path
	// ("explicit", "broadcast", "guardian") and status ("sent", "skipped", "failed").
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatch_outcomes_total",
			Help: "Per-recipient dispatch outcomes",
		},
		[]string{"path", "status"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_dispatch_duration_seconds",
			Help:    "Wall time of a dispatch batch, from first send to ledger write",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	LedgerRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_ledger_records_total",
			Help: "Notification records written to the ledger",
		},
	)

	RosterFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_roster_fetches_total",
			Help: "Roster source fetches by result",
		},
		[]string{"source", "result"},
	)

	RosterCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_roster_cache_lookups_total",
			Help: "Roster cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notify_circuit_breaker_state",
			Help: "Circuit breaker state per push provider",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
