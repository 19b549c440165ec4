package handlers

import (
	"net/http"
	"time"

	"github.com/basui-labs/llmrouter/api"
	"github.com/basui-labs/llmrouter/llm/router"
)

// ModelsHandler serves GET /models: the configured endpoints and their
// current health, in stable per-tier configuration order.
type ModelsHandler struct {
	registry *router.Registry
}

// NewModelsHandler creates a models handler backed by the shared registry.
func NewModelsHandler(registry *router.Registry) *ModelsHandler {
	return &ModelsHandler{registry: registry}
}

// HandleModels serves GET /models.
func (h *ModelsHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	var entries []api.ModelEntry
	for _, tier := range router.Tiers {
		for _, ep := range h.registry.Endpoints(tier) {
			snap, _ := h.registry.Snapshot(ep.Name)

			lastCheckSecondsAgo := 0
			if !snap.LastCheckAt.IsZero() {
				lastCheckSecondsAgo = int(time.Since(snap.LastCheckAt).Seconds())
			}

			entries = append(entries, api.ModelEntry{
				Name:                ep.Name,
				Tier:                string(ep.Tier),
				Endpoint:            ep.BaseURL,
				Healthy:             snap.Healthy,
				LastCheckSecondsAgo: lastCheckSecondsAgo,
				ConsecutiveFailures: snap.ConsecutiveFailures,
			})
		}
	}
	WriteSuccess(w, api.ModelsResponse{Models: entries})
}
