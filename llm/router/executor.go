package router

import (
	"context"
	"time"

	"github.com/basui-labs/llmrouter/llm/client"
	"github.com/basui-labs/llmrouter/types"
)

// Invoker is the shared query executor's dependency on the outbound
// transport. A *client.Client satisfies it; tests substitute a fake.
type Invoker interface {
	InvokeBuffered(ctx context.Context, model, baseURL string, messages []types.Message, timeout time.Duration) (string, client.Usage, error)
	InvokeStream(ctx context.Context, model, baseURL string, messages []types.Message, timeout time.Duration) (<-chan client.StreamEvent, error)
}

// Executor is the single choke point through which every LLM invocation —
// user-facing and router-internal alike — passes, so metrics and logging
// have one place to attach.
type Executor struct {
	invoker Invoker
}

func NewExecutor(invoker Invoker) *Executor {
	return &Executor{invoker: invoker}
}

// InvokeBuffered calls endpoint with the given messages and returns the full
// response text.
func (e *Executor) InvokeBuffered(ctx context.Context, endpoint *Endpoint, messages []types.Message) (string, client.Usage, error) {
	timeout := time.Duration(endpoint.TimeoutSeconds) * time.Second
	return e.invoker.InvokeBuffered(ctx, endpoint.Model, endpoint.BaseURL, messages, timeout)
}

// InvokeStream calls endpoint and returns a channel of streamed chunks.
func (e *Executor) InvokeStream(ctx context.Context, endpoint *Endpoint, messages []types.Message) (<-chan client.StreamEvent, error) {
	timeout := time.Duration(endpoint.TimeoutSeconds) * time.Second
	return e.invoker.InvokeStream(ctx, endpoint.Model, endpoint.BaseURL, messages, timeout)
}
