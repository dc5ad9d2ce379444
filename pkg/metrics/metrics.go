// Package metrics holds the Prometheus collectors for the signature service.
//
// Pipeline metrics:
//   - signature_pipeline_step_duration_seconds{step}
//   - signature_dispatch_total{outcome}
//   - signature_ledger_writes_total{outcome}
//
// Provider metrics:
//   - esign_provider_requests_total{operation,outcome}
//   - esign_circuit_breaker_state{name} (0=closed, 1=half-open, 2=open)
//
// Reconciliation metrics:
//   - signature_reconcile_changes_total{change}
//
// HTTP metrics:
//   - http_requests_total{method,route,status}
//   - http_request_duration_seconds{method,route}
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signature_pipeline_step_duration_seconds",
			Help:    "Duration of each contract-to-signature pipeline step",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"step"},
	)
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signature_dispatch_total",
			Help: "Signature dispatch attempts by outcome (success, replayed, or the error kind)",
		},
		[]string{"outcome"},
	)
	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signature_ledger_writes_total",
			Help: "Signature ledger inserts by outcome",
		},
		[]string{"outcome"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_provider_requests_total",
			Help: "Requests sent to the e-signature provider",
		},
		[]string{"operation", "outcome"},
	)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "esign_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ReconcileChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signature_reconcile_changes_total",
			Help: "Ledger rows touched by reconciliation",
		},
		[]string{"change"}, // inserted, updated
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
)
