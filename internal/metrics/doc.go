// Package metrics provides the router's Prometheus instrumentation,
// registered once at startup via promauto and recorded from the HTTP
// handlers and the health-check supervisor.
package metrics
