// Package client implements the outbound OpenAI-compatible contract used to
// invoke and probe upstream model endpoints: POST {base_url}/chat/completions
// for generation (buffered or streamed) and HEAD {base_url}/models for
// liveness.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/basui-labs/llmrouter/internal/tlsutil"
	"github.com/basui-labs/llmrouter/types"
)

// Client issues requests against any number of OpenAI-compatible endpoints
// using one shared, TLS-hardened http.Client so connections are pooled
// across endpoints within a single retry loop.
type Client struct {
	http *http.Client
}

// New builds a Client with the default connect timeout; per-call timeouts
// are applied via context, not the client's own Timeout field, since one
// Client serves endpoints with different per-tier timeouts.
func New() *Client {
	c := tlsutil.SecureHTTPClient(0)
	return &Client{http: c}
}

type chatRequestBody struct {
	Model    string          `json:"model"`
	Messages []types.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

type chatResponseBody struct {
	Choices []struct {
		Message types.Message `json:"message"`
		Delta   types.Message `json:"delta"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Usage reports token accounting for a completed invocation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// InvokeBuffered sends a non-streaming chat completion request and returns
// the full response text. Failures come back already classified: transport
// errors, timeouts, 5xx statuses and malformed bodies are retryable, and a
// 4xx status is a non-retryable validation error.
func (c *Client) InvokeBuffered(ctx context.Context, model, baseURL string, messages []types.Message, timeout time.Duration) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequestBody{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return "", Usage{}, types.NewError(types.ErrConfiguration, "failed to encode chat request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, types.NewError(types.ErrConfiguration, "failed to build chat request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", Usage{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", Usage{}, types.NewError(types.ErrUpstreamFailure, fmt.Sprintf("upstream returned status %d", resp.StatusCode)).WithRetryable(true)
	}
	if resp.StatusCode >= 400 {
		return "", Usage{}, types.NewError(types.ErrValidation, fmt.Sprintf("upstream rejected request: status %d", resp.StatusCode))
	}

	var parsed chatResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", Usage{}, types.NewError(types.ErrUpstreamFailure, "malformed upstream response").WithCause(err).WithRetryable(true)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, types.NewError(types.ErrUpstreamFailure, "upstream response had no choices").WithRetryable(true)
	}

	usage := Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

// StreamEvent is one unit forwarded from an upstream SSE stream.
type StreamEvent struct {
	Delta string
	Err   error
	Done  bool
}

// InvokeStream sends a streaming chat completion request and republishes
// the upstream SSE body as a channel of StreamEvent. The channel is closed
// after a Done event or a fatal error.
func (c *Client) InvokeStream(ctx context.Context, model, baseURL string, messages []types.Message, timeout time.Duration) (<-chan StreamEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	body, err := json.Marshal(chatRequestBody{Model: model, Messages: messages, Stream: true})
	if err != nil {
		cancel()
		return nil, types.NewError(types.ErrConfiguration, "failed to encode chat request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, types.NewError(types.ErrConfiguration, "failed to build chat request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		defer cancel()
		if resp.StatusCode >= 500 {
			return nil, types.NewError(types.ErrUpstreamFailure, fmt.Sprintf("upstream returned status %d", resp.StatusCode)).WithRetryable(true)
		}
		return nil, types.NewError(types.ErrValidation, fmt.Sprintf("upstream rejected request: status %d", resp.StatusCode))
	}

	events := make(chan StreamEvent)
	go func() {
		defer cancel()
		defer resp.Body.Close()
		defer close(events)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				events <- StreamEvent{Done: true}
				return
			}
			var chunk chatResponseBody
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 {
				delta := chunk.Choices[0].Delta.Content
				if delta == "" {
					delta = chunk.Choices[0].Message.Content
				}
				events <- StreamEvent{Delta: delta}
			}
		}
		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: types.NewError(types.ErrStreamInterrupted, "stream interrupted before completion").WithCause(err)}
			return
		}
	}()

	return events, nil
}

// ProbeLiveness issues a HEAD probe against {base_url}/models with a short,
// fixed timeout, returning nil only on a 2xx response.
func (c *Client) ProbeLiveness(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL+"/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

func classifyTransportError(err error) *types.Error {
	if isTimeout(err) {
		return types.NewError(types.ErrAttemptTimeout, "attempt timed out").WithCause(err).WithRetryable(true)
	}
	return types.NewError(types.ErrUpstreamFailure, "transport error invoking upstream").WithCause(err).WithRetryable(true)
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
