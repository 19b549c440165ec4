package handlers

import (
	"net/http"

	"github.com/basui-labs/llmrouter/api"
	"github.com/basui-labs/llmrouter/llm/router"
)

// HealthHandler serves GET /health, reporting the status of the
// background subsystems: health tracking, metrics recording, and the
// background health-check task.
type HealthHandler struct {
	checker         *router.HealthChecker
	metricsDegraded func() bool
}

// NewHealthHandler creates a health handler backed by the running
// health-check supervisor. metricsDegraded reports whether the metrics
// pipeline has ever failed to record an observation; pass nil if no
// such signal is wired up.
func NewHealthHandler(checker *router.HealthChecker, metricsDegraded func() bool) *HealthHandler {
	return &HealthHandler{checker: checker, metricsDegraded: metricsDegraded}
}

// HandleHealth serves GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	backgroundStatus := "operational"
	if h.checker.GaveUp() {
		backgroundStatus = "degraded"
	}

	metricsStatus := "operational"
	if h.metricsDegraded != nil && h.metricsDegraded() {
		metricsStatus = "degraded"
	}

	resp := api.HealthResponse{
		HealthTrackingStatus:   "operational",
		MetricsRecordingStatus: metricsStatus,
		BackgroundTaskStatus:   backgroundStatus,
		BackgroundTaskFailures: h.checker.Restarts(),
	}

	WriteJSON(w, http.StatusOK, resp)
}
