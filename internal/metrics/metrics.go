// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ActivitiesRecorded counts new activities by type and initial status.
var ActivitiesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "ledger",
	Name:      "activities_recorded_total",
	Help:      "Activities created, by type and initial status.",
}, []string{"type", "status"})

// BalanceMutations counts committed non-zero balance changes by operation.
var BalanceMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "ledger",
	Name:      "balance_mutations_total",
	Help:      "Committed balance deltas, by ledger operation.",
}, []string{"op"})

// LedgerErrors counts failed ledger operations by error class.
var LedgerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "ledger",
	Name:      "errors_total",
	Help:      "Failed ledger operations, by operation and error class.",
}, []string{"op", "class"})

var UnitRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "ledger",
	Name:      "unit_retries_total",
	Help:      "Transaction retries caused by busy or locked storage.",
})

var ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "reconcile",
	Name:      "runs_total",
	Help:      "Per-user reconciliation passes.",
})

// ReconcileDrift counts users whose stored balance disagreed with their activities.
var ReconcileDrift = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "reconcile",
	Name:      "drift_detected_total",
	Help:      "Reconciliation passes that found and repaired drift.",
})

var ReconcileDriftMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "timebank",
	Subsystem: "reconcile",
	Name:      "drift_minutes",
	Help:      "Absolute size of repaired drift in minutes.",
	Buckets:   []float64{1, 10, 60, 600, 6000, 60000},
})

var ReconcileLastRun = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "timebank",
	Subsystem: "reconcile",
	Name:      "last_run_timestamp_seconds",
	Help:      "Unix time of the last completed audit over all students.",
})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests, by method and status class.",
}, []string{"method", "class"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "timebank",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method"})

var WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "timebank",
	Subsystem: "ws",
	Name:      "clients",
	Help:      "Connected WebSocket clients.",
})

var PushSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "push",
	Name:      "sent_total",
	Help:      "Web push deliveries, by result.",
}, []string{"result"})

var RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the rate limiter, by path.",
}, []string{"path"})
