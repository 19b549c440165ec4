package router

import (
	"math/rand"
	"sync"
	"time"
)

// taskLocalRand is a small, mutex-guarded RNG. Each Selector owns one rather
// than using the package-level generator; requests that draw through the
// same Selector take turns on this lock and share the generator's state.
type taskLocalRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newTaskLocalRand() *taskLocalRand {
	return &taskLocalRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (t *taskLocalRand) float64() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Float64()
}

// Selector implements the six-step endpoint selection algorithm: exclusion
// filtering, priority filtering, health filtering, and a weighted random
// draw over what remains.
type Selector struct {
	registry  *Registry
	rng       *taskLocalRand
	defaultTr Tier
}

// NewSelector builds a selector over registry. defaultTier is returned by
// DefaultTier for the last-resort case where no rule matched and no LLM
// router is configured.
func NewSelector(registry *Registry, defaultTier Tier) *Selector {
	return &Selector{registry: registry, rng: newTaskLocalRand(), defaultTr: defaultTier}
}

// DefaultTier returns the configured last-resort tier.
func (s *Selector) DefaultTier() Tier {
	return s.defaultTr
}

// Select implements the six-step algorithm described in the spec: gather,
// exclude, filter to max priority, filter to healthy, and draw weighted at
// random. Returns nil if no endpoint survives filtering.
func (s *Selector) Select(tier Tier, exclusions map[string]struct{}) *Endpoint {
	candidates := s.registry.Endpoints(tier)
	if len(candidates) == 0 {
		return nil
	}

	// Step 2: remove excluded.
	filtered := candidates[:0:0]
	for _, ep := range candidates {
		if _, excluded := exclusions[ep.Name]; !excluded {
			filtered = append(filtered, ep)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	// Step 3: keep only endpoints at the maximum remaining priority.
	maxPriority := filtered[0].Priority
	for _, ep := range filtered[1:] {
		if ep.Priority > maxPriority {
			maxPriority = ep.Priority
		}
	}
	prioritized := filtered[:0:0]
	for _, ep := range filtered {
		if ep.Priority == maxPriority {
			prioritized = append(prioritized, ep)
		}
	}

	// Step 4: keep only healthy endpoints.
	healthy := prioritized[:0:0]
	for _, ep := range prioritized {
		if snap, ok := s.registry.Snapshot(ep.Name); ok && snap.Healthy {
			healthy = append(healthy, ep)
		}
	}
	if len(healthy) == 0 {
		return nil
	}

	// Step 6: weighted random draw via a prefix-sum scan.
	return s.weightedDraw(healthy)
}

func (s *Selector) weightedDraw(candidates []*Endpoint) *Endpoint {
	if len(candidates) == 1 {
		return candidates[0]
	}

	var total float64
	for _, ep := range candidates {
		total += ep.Weight
	}

	target := s.rng.float64() * total
	var cumulative float64
	for _, ep := range candidates {
		cumulative += ep.Weight
		if target < cumulative {
			return ep
		}
	}
	// Floating point rounding can leave target just past the last boundary.
	return candidates[len(candidates)-1]
}
