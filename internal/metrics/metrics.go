// Package metrics exposes Prometheus instrumentation for transition
// outcomes, occupation lock contention, and store retry behavior. This is
// ambient operational instrumentation only — it carries no trend/analytics
// functionality, which SPEC_FULL.md's Non-goals exclude (grounded on
// pkg/metrics in the teacher repo, which registers package-level counters
// and histograms via promauto and exposes RecordX helpers).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts every orchestrator transition attempt by
	// operation and outcome ("ok" or an errors.ErrorType string).
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfloor_transitions_total",
		Help: "Total number of state transitions attempted, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// TransitionDuration measures end-to-end latency of a single
	// orchestrator transition, from row read through event emission.
	TransitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopfloor_transition_duration_seconds",
		Help:    "Duration of a single state transition, in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// LockWaitDuration measures how long Acquire spent contending for the
	// occupation lock before it returned (success or SpoolOccupied).
	LockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopfloor_lock_wait_seconds",
		Help:    "Time spent acquiring the occupation lock.",
		Buckets: prometheus.DefBuckets,
	})

	// LockContentionTotal counts Acquire calls that found the spool already
	// held by a different worker.
	LockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopfloor_lock_contention_total",
		Help: "Number of occupation Acquire calls that found the spool already held.",
	})

	// StoreRetriesTotal counts retry attempts issued by the resilient store
	// wrapper, by error type.
	StoreRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfloor_store_retries_total",
		Help: "Total number of retry attempts issued against the backing store.",
	}, []string{"error_type"})

	// CircuitBreakerOpenTotal counts requests rejected because the store's
	// circuit breaker was open.
	CircuitBreakerOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopfloor_circuit_breaker_open_total",
		Help: "Number of store operations rejected because the circuit breaker was open.",
	})

	// SupervisorOverridesTotal counts synthesized SUPERVISOR_OVERRIDE events.
	SupervisorOverridesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopfloor_supervisor_overrides_total",
		Help: "Number of supervisor overrides detected and logged.",
	})
)

// RecordTransition records the outcome and duration of a single orchestrator
// transition.
func RecordTransition(operation, outcome string, duration time.Duration) {
	TransitionsTotal.WithLabelValues(operation, outcome).Inc()
	TransitionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLockWait records how long an Acquire call waited, and whether it
// found the lock contended.
func RecordLockWait(duration time.Duration, contended bool) {
	LockWaitDuration.Observe(duration.Seconds())
	if contended {
		LockContentionTotal.Inc()
	}
}

// RecordStoreRetry records a single retry attempt against the backing store.
func RecordStoreRetry(errorType string) {
	StoreRetriesTotal.WithLabelValues(errorType).Inc()
}

// RecordCircuitBreakerOpen records a request rejected by an open breaker.
func RecordCircuitBreakerOpen() {
	CircuitBreakerOpenTotal.Inc()
}

// RecordSupervisorOverride records a detected supervisor override.
func RecordSupervisorOverride() {
	SupervisorOverridesTotal.Inc()
}
