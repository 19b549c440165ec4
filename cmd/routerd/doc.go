/*
Command routerd is the router's executable entry point: it loads
configuration, wires the routing core to the outbound HTTP client, and
serves the chat, models, and health endpoints alongside a Prometheus
metrics listener.

# Core types

  - Server     — owns every long-lived dependency and the two HTTP listeners
  - Middleware — func(http.Handler) http.Handler, composed with Chain

# Middleware chain

Recovery, RequestID, RequestLogger, SecurityHeaders, OTelTracing — applied
in that order to the application listener. The metrics listener serves
only /metrics and carries no middleware.

# Shutdown

WaitForShutdown blocks on an OS signal or a listener failure, then stops
the background health checker, drains both HTTP listeners, and flushes
any pending trace spans.
*/
package main
