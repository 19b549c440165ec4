package router

import (
	"context"

	"github.com/basui-labs/llmrouter/llm/client"
	"github.com/basui-labs/llmrouter/types"
)

const maxInvocationAttempts = 3

// Warnings is a request-scoped, append-only list of non-fatal anomalies.
// A nil or empty Warnings means "no warnings attached" — callers should
// omit the field entirely rather than render an empty array.
type Warnings []string

func (w *Warnings) add(msg string) {
	*w = append(*w, msg)
}

// Result is the outcome of a successful buffered invocation.
type Result struct {
	Content      string
	Tier         Tier
	Strategy     Strategy
	EndpointName string
	Warnings     Warnings
}

// InvocationLoop drives the retry-and-invoke algorithm (C7): given a chosen
// tier, it repeatedly selects an endpoint excluding previously failed ones,
// invokes it, and classifies the outcome as success, retryable, or
// systemic.
type InvocationLoop struct {
	registry *Registry
	selector *Selector
	executor *Executor
}

func NewInvocationLoop(registry *Registry, selector *Selector, executor *Executor) *InvocationLoop {
	return &InvocationLoop{registry: registry, selector: selector, executor: executor}
}

// RunBuffered executes the retry loop in buffered mode.
func (l *InvocationLoop) RunBuffered(ctx context.Context, decision Decision, messages []types.Message) (Result, *types.Error) {
	exclusions := make(map[string]struct{})
	var warnings Warnings
	var lastErr *types.Error

	for attempt := 1; attempt <= maxInvocationAttempts; attempt++ {
		endpoint := l.selector.Select(decision.Tier, exclusions)
		if endpoint == nil {
			if attempt == 1 {
				return Result{}, types.NewError(types.ErrNoHealthyEndpoint, "no healthy endpoints available").WithRetryable(false)
			}
			if lastErr != nil {
				return Result{}, lastErr
			}
			return Result{}, types.NewError(types.ErrNoHealthyEndpoint, "no healthy endpoints remain after exclusions").WithRetryable(false)
		}

		content, _, err := l.executor.InvokeBuffered(ctx, endpoint, messages)
		if err == nil && content == "" {
			err = types.NewError(types.ErrUpstreamFailure, "upstream returned empty content").WithRetryable(true)
		}
		if err == nil {
			if !l.registry.MarkSuccess(endpoint.Name) {
				warnings.add("health bookkeeping anomaly: mark_success on unknown endpoint " + endpoint.Name)
			}
			return Result{
				Content:      content,
				Tier:         decision.Tier,
				Strategy:     decision.Strategy,
				EndpointName: endpoint.Name,
				Warnings:     warnings,
			}, nil
		}

		asErr, ok := err.(*types.Error)
		if !ok {
			asErr = types.NewError(types.ErrUpstreamFailure, err.Error()).WithRetryable(true)
		}
		asErr = asErr.WithEndpoint(endpoint.Name)

		if !asErr.Retryable {
			return Result{}, asErr
		}

		if !l.registry.MarkFailure(endpoint.Name) {
			warnings.add("health bookkeeping anomaly: mark_failure on unknown endpoint " + endpoint.Name)
		}
		exclusions[endpoint.Name] = struct{}{}
		lastErr = asErr
	}

	if lastErr != nil {
		return Result{}, types.NewError(types.ErrRoutingFailure, "retries exhausted").WithCause(lastErr)
	}
	return Result{}, types.NewError(types.ErrRoutingFailure, "retries exhausted")
}

// StreamResult carries the metadata a streaming caller needs once the
// endpoint for a stream has been chosen; the caller forwards chunks from
// Events itself since the HTTP layer owns writing them to the client.
type StreamResult struct {
	Events       <-chan client.StreamEvent
	Tier         Tier
	Strategy     Strategy
	EndpointName string
	Warnings     Warnings
}

// RunStream selects an endpoint and opens a stream on it. A retryable error
// returned while opening the stream, before any bytes reach the client,
// marks that endpoint failed and tries another, up to maxInvocationAttempts,
// as RunBuffered does. Once a stream is open no retry happens: the caller
// forwards Events to the client and reports the outcome through
// MarkStreamOutcome.
func (l *InvocationLoop) RunStream(ctx context.Context, decision Decision, messages []types.Message) (StreamResult, *types.Error) {
	exclusions := make(map[string]struct{})
	var warnings Warnings
	var lastErr *types.Error

	for attempt := 1; attempt <= maxInvocationAttempts; attempt++ {
		endpoint := l.selector.Select(decision.Tier, exclusions)
		if endpoint == nil {
			if attempt == 1 {
				return StreamResult{}, types.NewError(types.ErrNoHealthyEndpoint, "no healthy endpoints available").WithRetryable(false)
			}
			if lastErr != nil {
				return StreamResult{}, lastErr
			}
			return StreamResult{}, types.NewError(types.ErrNoHealthyEndpoint, "no healthy endpoints remain after exclusions").WithRetryable(false)
		}

		events, err := l.executor.InvokeStream(ctx, endpoint, messages)
		if err == nil {
			return StreamResult{
				Events:       events,
				Tier:         decision.Tier,
				Strategy:     decision.Strategy,
				EndpointName: endpoint.Name,
				Warnings:     warnings,
			}, nil
		}

		asErr, ok := err.(*types.Error)
		if !ok {
			asErr = types.NewError(types.ErrUpstreamFailure, err.Error()).WithRetryable(true)
		}
		asErr = asErr.WithEndpoint(endpoint.Name)

		if !asErr.Retryable {
			return StreamResult{}, asErr
		}

		if !l.registry.MarkFailure(endpoint.Name) {
			warnings.add("health bookkeeping anomaly: mark_failure on unknown endpoint " + endpoint.Name)
		}
		exclusions[endpoint.Name] = struct{}{}
		lastErr = asErr
	}

	if lastErr != nil {
		return StreamResult{}, types.NewError(types.ErrRoutingFailure, "retries exhausted").WithCause(lastErr)
	}
	return StreamResult{}, types.NewError(types.ErrRoutingFailure, "retries exhausted")
}

// MarkStreamOutcome records the health effect of a stream that has already
// begun delivering bytes to the client: success if it completed cleanly,
// failure if it was interrupted mid-flight. No retry follows either way.
func (l *InvocationLoop) MarkStreamOutcome(endpointName string, succeeded bool) {
	if succeeded {
		l.registry.MarkSuccess(endpointName)
	} else {
		l.registry.MarkFailure(endpointName)
	}
}
