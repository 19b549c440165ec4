package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basui-labs/llmrouter/api"
	"github.com/basui-labs/llmrouter/internal/metrics"
	"github.com/basui-labs/llmrouter/llm/client"
	"github.com/basui-labs/llmrouter/llm/router"
	"github.com/basui-labs/llmrouter/types"
)

var chatTestNamespaceSeq uint64

func nextChatTestNamespace() string {
	return fmt.Sprintf("chat_test_%d", atomic.AddUint64(&chatTestNamespaceSeq, 1))
}

// fakeInvoker is a router.Invoker test double that returns a fixed response
// or error, regardless of which endpoint was addressed.
type fakeInvoker struct {
	content string
	err     error
	events  []client.StreamEvent
}

func (f *fakeInvoker) InvokeBuffered(_ context.Context, _, _ string, _ []types.Message, _ time.Duration) (string, client.Usage, error) {
	if f.err != nil {
		return "", client.Usage{}, f.err
	}
	return f.content, client.Usage{TotalTokens: 10}, nil
}

func (f *fakeInvoker) InvokeStream(_ context.Context, _, _ string, _ []types.Message, _ time.Duration) (<-chan client.StreamEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan client.StreamEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func newTestChatHandler(t *testing.T, invoker *fakeInvoker) *ChatHandler {
	t.Helper()
	registry := router.NewRegistry([]router.Endpoint{
		{Name: "fast-1", Tier: router.TierFast, BaseURL: "http://fast/v1", Model: "m-fast", Weight: 1, TimeoutSeconds: 10},
		{Name: "balanced-1", Tier: router.TierBalanced, BaseURL: "http://balanced/v1", Model: "m-balanced", Weight: 1, TimeoutSeconds: 10},
		{Name: "deep-1", Tier: router.TierDeep, BaseURL: "http://deep/v1", Model: "m-deep", Weight: 1, TimeoutSeconds: 10},
	})
	selector := router.NewSelector(registry, router.TierBalanced)
	executor := router.NewExecutor(invoker)
	invLoop := router.NewInvocationLoop(registry, selector, executor)
	rtr := router.NewRuleOnlyRouter(router.TierBalanced)
	collector := metrics.NewCollector(nextChatTestNamespace())

	return NewChatHandler(rtr, invLoop, executor, registry, collector, zap.NewNop())
}

func doRequest(handler http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	handler(w, r)
	return w
}

func TestChatHandler_HandleChat_Success(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "hi there"})

	w := doRequest(h.HandleChat, http.MethodPost, "/chat", api.ChatRequest{Message: "hello"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.ChatResponseBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "hi there", resp.Content)
	assert.NotEmpty(t, resp.ModelTier)
	assert.NotEmpty(t, resp.ModelName)
}

func TestChatHandler_HandleChat_MissingMessage(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "x"})

	w := doRequest(h.HandleChat, http.MethodPost, "/chat", api.ChatRequest{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_HandleChat_InvalidImportance(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "x"})

	w := doRequest(h.HandleChat, http.MethodPost, "/chat", api.ChatRequest{Message: "hi", Importance: "urgent"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_HandleChat_UpstreamFailureExhaustsRetries(t *testing.T) {
	upstreamErr := types.NewError(types.ErrUpstreamFailure, "upstream 500").WithRetryable(true)
	h := newTestChatHandler(t, &fakeInvoker{err: upstreamErr})

	w := doRequest(h.HandleChat, http.MethodPost, "/chat", api.ChatRequest{Message: "hello"})

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Error)
}

func TestChatHandler_HandleCompletions_Auto(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "auto reply"})

	req := api.CompletionRequest{Model: "auto", Messages: []api.Message{{Role: "user", Content: "hello"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.CompletionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "auto reply", resp.Choices[0].Message.Content)
}

func TestChatHandler_HandleCompletions_TierBypass(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "deep reply"})

	req := api.CompletionRequest{Model: "deep", Messages: []api.Message{{Role: "user", Content: "hello"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.CompletionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "deep-1", resp.Model)
}

func TestChatHandler_HandleCompletions_TierBypassNeverRecordsDirectStrategy(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "deep reply"})

	req := api.CompletionRequest{Model: "deep", Messages: []api.Message{{Role: "user", Content: "hello"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(0), testutil.ToFloat64(h.collector.requestsTotal.WithLabelValues("deep", "direct")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.collector.modelInvocationsTotal.WithLabelValues("deep")))
}

func TestChatHandler_HandleChat_Success_RecordsRuleStrategyOnly(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "hi there"})

	w := doRequest(h.HandleChat, http.MethodPost, "/chat", api.ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.collector.requestsTotal.WithLabelValues("balanced", "rule")))
}

func TestChatHandler_HandleCompletions_SpecificEndpoint(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "direct reply"})

	req := api.CompletionRequest{Model: "fast-1", Messages: []api.Message{{Role: "user", Content: "hello"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.CompletionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "fast-1", resp.Model)
	assert.Equal(t, "direct reply", resp.Choices[0].Message.Content)
}

func TestChatHandler_HandleCompletions_UnknownModel(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "x"})

	req := api.CompletionRequest{Model: "nonexistent-model", Messages: []api.Message{{Role: "user", Content: "hello"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_HandleCompletions_EmptyMessages(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{content: "x"})

	req := api.CompletionRequest{Model: "auto", Messages: []api.Message{}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_HandleCompletions_StreamTierBypass(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{events: []client.StreamEvent{
		{Delta: "hello "},
		{Delta: "world"},
		{Done: true},
	}})

	req := api.CompletionRequest{Model: "fast", Stream: true, Messages: []api.Message{{Role: "user", Content: "hi"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "data: [DONE]")
	assert.Contains(t, w.Body.String(), "hello ")
}

func TestChatHandler_HandleCompletions_StreamSpecificEndpoint(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{events: []client.StreamEvent{
		{Delta: "chunk"},
		{Done: true},
	}})

	req := api.CompletionRequest{Model: "balanced-1", Stream: true, Messages: []api.Message{{Role: "user", Content: "hi"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Contains(t, w.Body.String(), "chunk")
	assert.Contains(t, w.Body.String(), "data: [DONE]")
}

func TestChatHandler_HandleCompletions_StreamClosesWithoutDoneIsInterrupted(t *testing.T) {
	h := newTestChatHandler(t, &fakeInvoker{events: []client.StreamEvent{
		{Delta: "partial"},
	}})

	req := api.CompletionRequest{Model: "fast", Stream: true, Messages: []api.Message{{Role: "user", Content: "hi"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Contains(t, w.Body.String(), "event: error")
	assert.NotContains(t, w.Body.String(), "data: [DONE]")
}

func TestChatHandler_HandleCompletions_StreamUpstreamInterrupted(t *testing.T) {
	streamErr := types.NewError(types.ErrStreamInterrupted, "stream interrupted")
	h := newTestChatHandler(t, &fakeInvoker{events: []client.StreamEvent{
		{Err: streamErr},
	}})

	req := api.CompletionRequest{Model: "fast", Stream: true, Messages: []api.Message{{Role: "user", Content: "hi"}}}
	w := doRequest(h.HandleCompletions, http.MethodPost, "/v1/chat/completions", req)

	assert.Contains(t, w.Body.String(), "event: error")
}
