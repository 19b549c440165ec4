// Package telemetry wraps OpenTelemetry tracing setup for the router.
// Metrics are covered separately by internal/metrics (Prometheus), so
// only a TracerProvider is configured here. When tracing is disabled,
// Init returns a no-op Providers and nothing connects to an exporter.
package telemetry
