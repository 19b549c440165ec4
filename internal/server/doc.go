/*
Package server provides HTTP server lifecycle management: non-blocking
start, graceful shutdown, and OS signal handling.

# Core types

  - Manager — wraps http.Server and net.Listener, exposing Start,
    Shutdown, WaitForShutdown, and an async error channel.
  - Config  — listen address, read/write/idle timeouts, max header
    bytes, and shutdown timeout.

# Lifecycle

Start runs the server in a background goroutine and returns immediately.
WaitForShutdown blocks until SIGINT/SIGTERM or a listener error arrives,
then Shutdown drains in-flight requests within the configured timeout.
*/
package server
