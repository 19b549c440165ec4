package router

import "github.com/basui-labs/llmrouter/types"

// Strategy labels how a routing decision was reached. Hybrid is never a
// member: it names a configuration mode, not an outcome.
type Strategy string

const (
	StrategyRule Strategy = "rule"
	StrategyLlm  Strategy = "llm"
)

// Decision is the outcome of routing: which tier should serve the request,
// and how that tier was chosen.
type Decision struct {
	Tier     Tier
	Strategy Strategy
}

// RuleRoute evaluates the fixed-order rule table against request metadata.
// It is pure, deterministic, and performs no I/O. Returns ok=false when no
// rule matches, signalling the caller should fall through to the LLM
// router.
//
// Order is load-bearing: rule 2 must be checked before rule 4, or
// high-importance non-casual requests would be misrouted to Balanced.
func RuleRoute(m types.RequestMetadata) (Tier, bool) {
	m = m.WithDefaults()

	if m.TaskType == types.TaskCasualChat && m.TokenEstimate < 256 && m.Importance != types.ImportanceHigh {
		return TierFast, true
	}

	if (m.Importance == types.ImportanceHigh && m.TaskType != types.TaskCasualChat) ||
		m.TaskType == types.TaskDeepAnalysis || m.TaskType == types.TaskCreativeWriting {
		return TierDeep, true
	}

	if m.TaskType == types.TaskCode {
		if m.TokenEstimate > 1024 {
			return TierDeep, true
		}
		return TierBalanced, true
	}

	if m.TokenEstimate >= 200 && m.TokenEstimate < 2048 &&
		(m.TaskType == types.TaskQuestionAnswer || m.TaskType == types.TaskDocumentSummary) {
		return TierBalanced, true
	}

	return "", false
}
