package router

import (
	"context"

	"github.com/basui-labs/llmrouter/types"
)

// HybridRouter composes the rule router and the LLM router: if the rule
// router has an opinion it wins outright; otherwise the request falls
// through to the LLM router. Hybrid itself is never recorded as a strategy
// label — only Rule or Llm are.
type HybridRouter struct {
	llm *LlmRouter
}

func NewHybridRouter(llm *LlmRouter) *HybridRouter {
	return &HybridRouter{llm: llm}
}

func (h *HybridRouter) Route(ctx context.Context, message string, meta types.RequestMetadata) (Decision, *types.Error) {
	if tier, ok := RuleRoute(meta); ok {
		return Decision{Tier: tier, Strategy: StrategyRule}, nil
	}
	return h.llm.Route(ctx, message, meta)
}

// Router is implemented by HybridRouter and by the single-strategy wrappers
// used when configuration pins strategy to "rule" or "llm" outright.
type Router interface {
	Route(ctx context.Context, message string, meta types.RequestMetadata) (Decision, *types.Error)
}

// RuleOnlyRouter wraps RuleRoute so it satisfies Router, falling back to a
// configured default tier rather than the LLM router when no rule matches.
type RuleOnlyRouter struct {
	defaultTier Tier
}

func NewRuleOnlyRouter(defaultTier Tier) *RuleOnlyRouter {
	return &RuleOnlyRouter{defaultTier: defaultTier}
}

func (r *RuleOnlyRouter) Route(_ context.Context, _ string, meta types.RequestMetadata) (Decision, *types.Error) {
	if tier, ok := RuleRoute(meta); ok {
		return Decision{Tier: tier, Strategy: StrategyRule}, nil
	}
	return Decision{Tier: r.defaultTier, Strategy: StrategyRule}, nil
}

// LlmOnlyRouter wraps LlmRouter so it satisfies Router without consulting
// the rule table first.
type LlmOnlyRouter struct {
	llm *LlmRouter
}

func NewLlmOnlyRouter(llm *LlmRouter) *LlmOnlyRouter {
	return &LlmOnlyRouter{llm: llm}
}

func (r *LlmOnlyRouter) Route(ctx context.Context, message string, meta types.RequestMetadata) (Decision, *types.Error) {
	return r.llm.Route(ctx, message, meta)
}

var _ Router = (*HybridRouter)(nil)
var _ Router = (*RuleOnlyRouter)(nil)
var _ Router = (*LlmOnlyRouter)(nil)
