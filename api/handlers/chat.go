package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/basui-labs/llmrouter/api"
	"github.com/basui-labs/llmrouter/internal/metrics"
	"github.com/basui-labs/llmrouter/llm/client"
	"github.com/basui-labs/llmrouter/llm/router"
	"github.com/basui-labs/llmrouter/llm/tokenizer"
	"github.com/basui-labs/llmrouter/types"
)

// routingDirect labels a Decision built from an explicit model="fast",
// "balanced", or "deep" in a completions request — the classifier (rule or
// LLM) is never consulted, so neither StrategyRule nor StrategyLlm applies.
const routingDirect router.Strategy = "direct"

// ChatHandler serves POST /chat and POST /v1/chat/completions: it turns an
// inbound request into a routing decision, drives it through the retry
// loop or a direct invocation, and records the metrics named in section 6.
type ChatHandler struct {
	router    router.Router
	invLoop   *router.InvocationLoop
	executor  *router.Executor
	registry  *router.Registry
	collector *metrics.Collector
	logger    *zap.Logger
}

func NewChatHandler(rtr router.Router, invLoop *router.InvocationLoop, executor *router.Executor, registry *router.Registry, collector *metrics.Collector, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		router:    rtr,
		invLoop:   invLoop,
		executor:  executor,
		registry:  registry,
		collector: collector,
		logger:    logger,
	}
}

// HandleChat serves POST /chat: the router's native, single-message form.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	meta := buildMetadata(req.Importance, req.TaskType, req.Message)
	ctx := r.Context()

	start := time.Now()
	decision, rErr := h.router.Route(ctx, req.Message, meta)
	if rErr != nil {
		WriteError(w, rErr, h.logger)
		return
	}
	h.recordRoutingDuration(decision.Strategy, start)

	result, rErr := h.invLoop.RunBuffered(ctx, decision, []types.Message{types.NewUserMessage(req.Message)})
	if rErr != nil {
		WriteError(w, rErr, h.logger)
		return
	}
	h.recordOutcome(result.Tier, result.Strategy, result.EndpointName, result.Warnings)

	WriteSuccess(w, api.ChatResponseBody{
		Content:         result.Content,
		ModelTier:       string(result.Tier),
		ModelName:       result.EndpointName,
		RoutingStrategy: string(result.Strategy),
		Warnings:        []string(result.Warnings),
	})
}

// HandleCompletions serves POST /v1/chat/completions.
func (h *ChatHandler) HandleCompletions(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.CompletionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateCompletionRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	messages := toTypesMessages(req.Messages)
	ctx := r.Context()

	decision, direct, rErr := h.resolveCompletionDecision(ctx, req.Model, messages)
	if rErr != nil {
		WriteError(w, rErr, h.logger)
		return
	}

	if direct != nil {
		if req.Stream {
			h.streamDirectEndpoint(w, ctx, direct, messages)
			return
		}
		h.bufferedDirectEndpoint(w, ctx, direct, messages)
		return
	}

	if req.Stream {
		h.streamViaLoop(w, ctx, decision, messages)
		return
	}
	h.bufferedViaLoop(w, ctx, decision, messages)
}

// resolveCompletionDecision interprets the completions "model" field per
// the three-way split: "auto" routes, a tier name bypasses the classifier,
// anything else names a specific endpoint to invoke with no failover (in
// which case direct is non-nil and decision is unused).
func (h *ChatHandler) resolveCompletionDecision(ctx context.Context, model string, messages []types.Message) (router.Decision, *router.Endpoint, *types.Error) {
	switch {
	case model == "auto":
		text := lastUserContent(messages)
		meta := buildMetadata("", "", text)
		start := time.Now()
		decision, rErr := h.router.Route(ctx, text, meta)
		if rErr == nil {
			h.recordRoutingDuration(decision.Strategy, start)
		}
		return decision, nil, rErr

	case router.Tier(model).Valid():
		return router.Decision{Tier: router.Tier(model), Strategy: routingDirect}, nil, nil

	default:
		ep, ok := h.registry.EndpointByName(model)
		if !ok {
			return router.Decision{}, nil, types.NewError(types.ErrValidation, fmt.Sprintf("unknown model %q", model))
		}
		return router.Decision{}, ep, nil
	}
}

func (h *ChatHandler) bufferedViaLoop(w http.ResponseWriter, ctx context.Context, decision router.Decision, messages []types.Message) {
	result, rErr := h.invLoop.RunBuffered(ctx, decision, messages)
	if rErr != nil {
		WriteError(w, rErr, h.logger)
		return
	}
	h.recordOutcome(result.Tier, result.Strategy, result.EndpointName, result.Warnings)
	WriteSuccess(w, completionResponse(result.EndpointName, result.Content))
}

func (h *ChatHandler) streamViaLoop(w http.ResponseWriter, ctx context.Context, decision router.Decision, messages []types.Message) {
	streamResult, rErr := h.invLoop.RunStream(ctx, decision, messages)
	if rErr != nil {
		WriteError(w, rErr, h.logger)
		return
	}
	h.recordRequestAndInvocation(streamResult.Tier, streamResult.Strategy)

	succeeded := writeSSE(w, streamResult.EndpointName, streamResult.EndpointName, streamResult.Events, h.logger)
	h.invLoop.MarkStreamOutcome(streamResult.EndpointName, succeeded)
}

func (h *ChatHandler) bufferedDirectEndpoint(w http.ResponseWriter, ctx context.Context, ep *router.Endpoint, messages []types.Message) {
	content, _, err := h.executor.InvokeBuffered(ctx, ep, messages)
	if err != nil {
		h.registry.MarkFailure(ep.Name)
		WriteError(w, asAPIError(err, ep.Name), h.logger)
		return
	}
	h.registry.MarkSuccess(ep.Name)
	h.collector.RecordModelInvocation(string(ep.Tier))
	WriteSuccess(w, completionResponse(ep.Name, content))
}

func (h *ChatHandler) streamDirectEndpoint(w http.ResponseWriter, ctx context.Context, ep *router.Endpoint, messages []types.Message) {
	events, err := h.executor.InvokeStream(ctx, ep, messages)
	if err != nil {
		h.registry.MarkFailure(ep.Name)
		WriteError(w, asAPIError(err, ep.Name), h.logger)
		return
	}
	h.collector.RecordModelInvocation(string(ep.Tier))

	succeeded := writeSSE(w, ep.Model, ep.Name, events, h.logger)
	if succeeded {
		h.registry.MarkSuccess(ep.Name)
	} else {
		h.registry.MarkFailure(ep.Name)
	}
}

// writeSSE forwards events as chat-completion-shaped SSE chunks, returning
// whether the stream completed without an upstream error.
func writeSSE(w http.ResponseWriter, model, endpointName string, events <-chan client.StreamEvent, logger *zap.Logger) bool {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		apiErr := types.NewError(types.ErrStreamInterrupted, "streaming not supported by this response writer")
		WriteError(w, apiErr, logger)
		return false
	}
	w.WriteHeader(http.StatusOK)

	sawDone := false
	for ev := range events {
		if ev.Err != nil {
			if logger != nil {
				logger.Error("stream interrupted", zap.String("endpoint", endpointName), zap.Error(ev.Err))
			}
			writeSSELine(w, flusher, `{"error":"upstream stream interrupted"}`, true)
			return false
		}
		if ev.Done {
			sawDone = true
			break
		}
		chunk := api.StreamChunk{Model: model, Delta: api.Message{Role: "assistant", Content: ev.Delta}}
		payload, _ := json.Marshal(chunk)
		writeSSELine(w, flusher, string(payload), false)
	}

	if !sawDone {
		// The upstream closed the event channel without a Done signal and
		// without an Err — a clean mid-stream EOF is still an interruption,
		// not a completed response.
		if logger != nil {
			logger.Error("stream interrupted: upstream closed without completion signal", zap.String("endpoint", endpointName))
		}
		writeSSELine(w, flusher, `{"error":"upstream stream interrupted"}`, true)
		return false
	}

	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
	return true
}

func writeSSELine(w http.ResponseWriter, flusher http.Flusher, payload string, isErrorEvent bool) {
	if isErrorEvent {
		w.Write([]byte("event: error\n"))
	}
	w.Write([]byte("data: "))
	w.Write([]byte(payload))
	w.Write([]byte("\n\n"))
	flusher.Flush()
}

func (h *ChatHandler) recordOutcome(tier router.Tier, strategy router.Strategy, endpoint string, warnings router.Warnings) {
	h.recordRequestAndInvocation(tier, strategy)
	defer func() {
		if p := recover(); p != nil {
			h.collector.RecordMetricsRecordingFailure("health_tracking_failure")
			if h.logger != nil {
				h.logger.Error("metrics recording panic recovered", zap.Any("panic", p))
			}
		}
	}()
	for _, warning := range warnings {
		h.collector.RecordHealthTrackingFailure(endpoint, warning)
	}
}

// recordRequestAndInvocation records requests_total and
// model_invocations_total for a completed routing decision. requests_total
// is only observed for the classifier strategies section 6 pins the metric
// to ({rule,llm}) — a tier-bypass or direct-endpoint decision never reaches
// here with a classifier strategy, so it's excluded rather than widening the
// label set.
func (h *ChatHandler) recordRequestAndInvocation(tier router.Tier, strategy router.Strategy) {
	defer func() {
		if p := recover(); p != nil {
			h.collector.RecordMetricsRecordingFailure("request_count")
			if h.logger != nil {
				h.logger.Error("metrics recording panic recovered", zap.Any("panic", p))
			}
		}
	}()
	if strategy == router.StrategyRule || strategy == router.StrategyLlm {
		h.collector.RecordRequest(string(tier), string(strategy))
	}
	h.collector.RecordModelInvocation(string(tier))
}

// recordRoutingDuration observes routing_duration_ms for a decision the
// router resolved successfully; callers only invoke this once rErr is nil,
// since a failed Route call never produces a real strategy label.
func (h *ChatHandler) recordRoutingDuration(strategy router.Strategy, start time.Time) {
	defer func() {
		if p := recover(); p != nil {
			h.collector.RecordMetricsRecordingFailure("routing_duration")
			if h.logger != nil {
				h.logger.Error("metrics recording panic recovered", zap.Any("panic", p))
			}
		}
	}()
	h.collector.RecordRoutingDuration(string(strategy), elapsedMs(start))
}

func completionResponse(endpointName, content string) api.CompletionResponse {
	return api.CompletionResponse{
		Model: endpointName,
		Choices: []api.CompletionChoice{
			{Index: 0, FinishReason: "stop", Message: api.Message{Role: "assistant", Content: content}},
		},
	}
}

func asAPIError(err error, endpoint string) *types.Error {
	if apiErr, ok := err.(*types.Error); ok {
		return apiErr.WithEndpoint(endpoint)
	}
	return types.NewError(types.ErrUpstreamFailure, "upstream invocation failed").WithCause(err).WithEndpoint(endpoint)
}

func toTypesMessages(msgs []api.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		out[i] = types.Message{Role: types.Role(m.Role), Content: m.Content}
	}
	return out
}

func lastUserContent(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}

func buildMetadata(importance, taskType, message string) types.RequestMetadata {
	tokens := tokenizer.Estimate(message)
	meta := types.RequestMetadata{
		Importance:    types.Importance(importance),
		TaskType:      types.TaskType(taskType),
		TokenEstimate: tokens,
	}
	return meta.WithDefaults()
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

func validateChatRequest(req *api.ChatRequest) *types.Error {
	if req.Message == "" {
		return types.NewError(types.ErrValidation, "message is required")
	}
	if req.Importance != "" && !validImportance(req.Importance) {
		return types.NewError(types.ErrValidation, fmt.Sprintf("importance %q is not one of low|normal|high", req.Importance))
	}
	if req.TaskType != "" && !validTaskType(req.TaskType) {
		return types.NewError(types.ErrValidation, fmt.Sprintf("task_type %q is not recognized", req.TaskType))
	}
	return nil
}

func validateCompletionRequest(req *api.CompletionRequest) *types.Error {
	if req.Model == "" {
		return types.NewError(types.ErrValidation, "model is required")
	}
	if len(req.Messages) == 0 {
		return types.NewError(types.ErrValidation, "messages cannot be empty")
	}
	return nil
}

func validImportance(s string) bool {
	switch types.Importance(s) {
	case types.ImportanceLow, types.ImportanceNormal, types.ImportanceHigh:
		return true
	}
	return false
}

func validTaskType(s string) bool {
	switch types.TaskType(s) {
	case types.TaskCasualChat, types.TaskCode, types.TaskCreativeWriting, types.TaskDeepAnalysis, types.TaskDocumentSummary, types.TaskQuestionAnswer:
		return true
	}
	return false
}
