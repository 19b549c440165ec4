/*
Package handlers implements the router's HTTP request handlers: chat
completion (native and OpenAI-compatible, buffered and SSE-streamed),
model/endpoint listing, and health reporting.

# Core types

  - ChatHandler   — POST /chat and POST /v1/chat/completions
  - ModelsHandler — GET /models, per-endpoint health snapshot
  - HealthHandler — GET /health, subsystem status

# Shared helpers

WriteJSON, WriteSuccess, and WriteError in common.go give every handler
a single way to write a response body and map a *types.Error to its
HTTP status.
*/
package handlers
