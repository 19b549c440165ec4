// Package metrics provides the router's Prometheus instrumentation. It is
// internal and should not be imported by external projects.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns every metric the router exports. It is safe for
// concurrent use; the underlying prometheus vectors are themselves
// concurrency-safe.
type Collector struct {
	requestsTotal               *prometheus.CounterVec
	routingDurationMs           *prometheus.HistogramVec
	modelInvocationsTotal       *prometheus.CounterVec
	healthTrackingFailures      *prometheus.CounterVec
	metricsRecordingFailures    *prometheus.CounterVec
	backgroundHealthTaskFailure prometheus.Counter

	recordingFailed atomic.Bool
}

// NewCollector registers and returns the router's metric set under
// namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of completed user-facing chat requests.",
			},
			[]string{"tier", "strategy"},
		),
		routingDurationMs: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "routing_duration_ms",
				Help:      "Time spent deciding which tier serves a request, in milliseconds.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"strategy"},
		),
		modelInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_invocations_total",
				Help:      "Total number of user-facing model invocations (excludes the LLM router's own classification calls).",
			},
			[]string{"tier"},
		),
		healthTrackingFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "health_tracking_failures_total",
				Help:      "Health-store bookkeeping anomalies, by endpoint and error type.",
			},
			[]string{"endpoint", "error_type"},
		),
		metricsRecordingFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metrics_recording_failures_total",
				Help:      "Failures encountered while recording a metric observation, by operation.",
			},
			[]string{"operation"},
		),
		backgroundHealthTaskFailure: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "background_health_task_failures_total",
				Help:      "Restarts of the background health-check supervisor.",
			},
		),
	}
	return c
}

// RecordRequest increments requests_total for a completed user request.
// Strategy must be "rule" or "llm" — Hybrid is never recorded.
func (c *Collector) RecordRequest(tier, strategy string) {
	c.requestsTotal.WithLabelValues(tier, strategy).Inc()
}

// RecordRoutingDuration observes how long a routing decision took.
func (c *Collector) RecordRoutingDuration(strategy string, ms float64) {
	c.routingDurationMs.WithLabelValues(strategy).Observe(ms)
}

// RecordModelInvocation increments model_invocations_total for a
// user-facing invocation of tier.
func (c *Collector) RecordModelInvocation(tier string) {
	c.modelInvocationsTotal.WithLabelValues(tier).Inc()
}

// RecordHealthTrackingFailure records a health-store bookkeeping anomaly.
func (c *Collector) RecordHealthTrackingFailure(endpoint, errorType string) {
	c.healthTrackingFailures.WithLabelValues(endpoint, errorType).Inc()
}

// RecordMetricsRecordingFailure records that recording a metric itself
// failed, and flips the collector into a degraded state surfaced by
// Degraded for as long as the process runs.
func (c *Collector) RecordMetricsRecordingFailure(operation string) {
	c.recordingFailed.Store(true)
	c.metricsRecordingFailures.WithLabelValues(operation).Inc()
}

// RecordBackgroundHealthTaskFailure increments the background health-check
// supervisor's restart counter.
func (c *Collector) RecordBackgroundHealthTaskFailure() {
	c.backgroundHealthTaskFailure.Inc()
}

// Degraded reports whether a metrics-recording failure has ever been
// observed, for GET /health's metrics_recording_status field.
func (c *Collector) Degraded() bool {
	return c.recordingFailed.Load()
}
