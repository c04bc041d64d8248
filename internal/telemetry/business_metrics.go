// Package telemetry exposes Prometheus metrics for billing observability.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for billing-level observability.
// Metrics include a tenant_id label where segmentation makes sense for
// multi-tenant dashboards.
type BusinessMetrics struct {
	// Webhook pipeline
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookIgnored   *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec
	WebhookRetries   *prometheus.CounterVec

	// Billing state machine
	StatusTransitions  *prometheus.CounterVec
	InvalidTransitions *prometheus.CounterVec

	// Reconciliation
	SyncRuns   *prometheus.CounterVec
	SyncFailed *prometheus.CounterVec

	// External API performance
	ProcessorAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "baldr"
	}

	subsystem := "billing"

	return &BusinessMetrics{
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total inbound webhook deliveries",
			},
			[]string{"source", "event_type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total webhook events settled as processed",
			},
			[]string{"tenant_id", "event_type"},
		),
		WebhookIgnored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_ignored_total",
				Help:      "Total webhook events acknowledged without action",
			},
			[]string{"event_type", "reason"}, // reason: unmodeled, tenant_not_found
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total webhook processing failures",
			},
			[]string{"tenant_id", "event_type", "failure_reason"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook handler latency in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"event_type"},
		),
		WebhookRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_retries_total",
				Help:      "Total retry attempts driven by the retry worker",
			},
			[]string{"event_type"},
		),
		StatusTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "status_transitions_total",
				Help:      "Total applied billing status transitions",
			},
			[]string{"tenant_id", "from", "to"},
		),
		InvalidTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invalid_transitions_total",
				Help:      "Total rejected billing status transitions",
			},
			[]string{"tenant_id", "from", "to"},
		),
		SyncRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_runs_total",
				Help:      "Total full reconciliation sync runs",
			},
			[]string{"tenant_id", "outcome"}, // outcome: changed, unchanged
		),
		SyncFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_failed_total",
				Help:      "Total failed reconciliation sync runs",
			},
			[]string{"tenant_id"},
		),
		ProcessorAPILatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "processor_api_seconds",
				Help:      "Payment processor API call latency in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
	}
}

// Business is the process-wide metrics instance. Nil until
// InitBusinessMetrics runs; callers nil-check before use so unit tests do
// not need a registry.
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global metrics instance.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
