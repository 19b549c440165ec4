// Package api defines the router's wire types: the request/response shapes
// for POST /chat, the OpenAI-compatible POST /v1/chat/completions (buffered
// and SSE-streamed), GET /models, and GET /health.
//
// # Base URL
//
// The default base URL is http://localhost:8080; Prometheus metrics are
// served on a separate port (see internal/metrics).
package api
