// Package handlers implements the HTTP surface described in SPEC_FULL.md
// section 6: POST /chat, POST /v1/chat/completions, GET /models,
// GET /health, and the JSON/SSE response shapes they share.
package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/basui-labs/llmrouter/api"
	"github.com/basui-labs/llmrouter/types"
)

// WriteJSON writes data as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response with data as the body.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteError writes a *types.Error as `{"error": <message>}`, mapping it
// to an HTTP status via the error's own HTTPStatus when set, else
// types.StatusFor(code). Messages are informative but never leak
// credentials — callers must not embed secrets in error messages.
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = types.StatusFor(err.Code)
	}

	if logger != nil {
		logger.Error("request failed",
			zap.String("code", string(err.Code)),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
			zap.String("endpoint", err.Endpoint),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, api.ErrorResponse{Error: err.Message})
}

// DecodeJSONBody decodes r's body into dst, rejecting unknown fields and
// bodies over 1 MB. On failure it writes the error response itself.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrValidation, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrValidation, "invalid JSON body").WithCause(err)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// ValidateContentType rejects any request whose Content-Type is not
// application/json, writing the error response itself on rejection.
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		apiErr := types.NewError(types.ErrValidation, "Content-Type must be application/json")
		WriteError(w, apiErr, logger)
		return false
	}
	return true
}
