package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/basui-labs/llmrouter/types"
)

const (
	llmRouterMaxAttempts  = 2
	llmRouterMaxRunes     = 500
	llmRouterSystemPrompt = "You are a routing classifier for a tiered LLM fleet. " +
		"FAST handles short casual exchanges. BALANCED handles everyday question " +
		"answering and document summaries. DEEP handles complex analysis, code, " +
		"and creative writing. Given the request below, respond with exactly one " +
		"of: FAST, BALANCED, DEEP."
)

// LlmRouter asks a designated "router tier" to classify a request into a
// target tier when the rule router (RuleRoute) has no opinion.
type LlmRouter struct {
	selector   *Selector
	executor   *Executor
	routerTier Tier
}

func NewLlmRouter(selector *Selector, executor *Executor, routerTier Tier) *LlmRouter {
	return &LlmRouter{selector: selector, executor: executor, routerTier: routerTier}
}

// Route asks the router tier to classify the request. Transport/timeout
// failures are retried (up to llmRouterMaxAttempts) against a different
// router-tier endpoint; an unparseable response is a systemic failure and is
// never retried or silently defaulted.
func (r *LlmRouter) Route(ctx context.Context, message string, meta types.RequestMetadata) (Decision, *types.Error) {
	prompt := buildRouterPrompt(message, meta)
	exclusions := make(map[string]struct{})

	var lastErr *types.Error
	for attempt := 1; attempt <= llmRouterMaxAttempts; attempt++ {
		endpoint := r.selector.Select(r.routerTier, exclusions)
		if endpoint == nil {
			return Decision{}, types.NewError(types.ErrNoHealthyEndpoint, "no healthy router endpoints").WithRetryable(false)
		}

		text, _, err := r.executor.InvokeBuffered(ctx, endpoint, []types.Message{
			types.NewSystemMessage(llmRouterSystemPrompt),
			types.NewUserMessage(prompt),
		})
		if err != nil {
			asErr, _ := err.(*types.Error)
			if asErr == nil {
				asErr = types.NewError(types.ErrUpstreamFailure, err.Error()).WithRetryable(true)
			}
			lastErr = asErr.WithEndpoint(endpoint.Name)
			if !asErr.Retryable {
				return Decision{}, lastErr
			}
			exclusions[endpoint.Name] = struct{}{}
			continue
		}

		tier, ok := parseTierResponse(text)
		if !ok {
			return Decision{}, types.NewError(types.ErrRoutingFailure, "LLM router produced an unparseable response").
				WithRetryable(false).WithHTTPStatus(http.StatusBadGateway).WithEndpoint(endpoint.Name)
		}

		r.selector.registry.MarkSuccess(endpoint.Name)
		return Decision{Tier: tier, Strategy: StrategyLlm}, nil
	}

	if lastErr != nil {
		return Decision{}, lastErr
	}
	return Decision{}, types.NewError(types.ErrNoHealthyEndpoint, "no healthy router endpoints").WithRetryable(false)
}

func buildRouterPrompt(message string, meta types.RequestMetadata) string {
	meta = meta.WithDefaults()
	truncated := message
	if utf8.RuneCountInString(message) > llmRouterMaxRunes {
		runes := []rune(message)
		truncated = string(runes[:llmRouterMaxRunes]) + "... [truncated]"
	}

	var b strings.Builder
	b.WriteString(truncated)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "importance: %s\n", meta.Importance)
	fmt.Fprintf(&b, "task_type: %s\n", meta.TaskType)
	fmt.Fprintf(&b, "token_estimate: %d\n", meta.TokenEstimate)
	b.WriteString("\nrespond with exactly one of: FAST, BALANCED, DEEP")
	return b.String()
}

var refusalMarkers = []string{"CANNOT", "ERROR", "REFUSE"}

func parseTierResponse(text string) (Tier, bool) {
	upper := strings.ToUpper(text)
	for _, marker := range refusalMarkers {
		if strings.Contains(upper, marker) {
			return "", false
		}
	}

	type candidate struct {
		token string
		tier  Tier
	}
	candidates := []candidate{
		{"FAST", TierFast},
		{"BALANCED", TierBalanced},
		{"DEEP", TierDeep},
	}

	bestIdx := -1
	var bestTier Tier
	for _, c := range candidates {
		if idx := strings.Index(upper, c.token); idx != -1 && (bestIdx == -1 || idx < bestIdx) {
			bestIdx = idx
			bestTier = c.tier
		}
	}
	if bestIdx == -1 {
		return "", false
	}
	return bestTier, true
}
