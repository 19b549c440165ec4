package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/basui-labs/llmrouter/llm/router"
)

// Config is the router's complete, immutable configuration.
type Config struct {
	Server        ServerConfig        `toml:"server" env:"SERVER"`
	Models        ModelsConfig        `toml:"models"`
	Routing       RoutingConfig       `toml:"routing" env:"ROUTING"`
	Timeouts      TimeoutsConfig      `toml:"timeouts" env:"TIMEOUTS"`
	Observability ObservabilityConfig `toml:"observability" env:"OBSERVABILITY"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	HTTPPort        int           `toml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `toml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `toml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `toml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// ModelsConfig groups the per-tier endpoint arrays.
// TOML shape: [[models.fast]], [[models.balanced]], [[models.deep]].
type ModelsConfig struct {
	Fast     []EndpointConfig `toml:"fast"`
	Balanced []EndpointConfig `toml:"balanced"`
	Deep     []EndpointConfig `toml:"deep"`
}

// EndpointConfig is a single upstream model entry as it appears in the
// configuration file, before it is turned into a router.Endpoint.
type EndpointConfig struct {
	Name           string  `toml:"name"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Weight         float64 `toml:"weight"`
	Priority       int     `toml:"priority"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// RoutingConfig selects the routing strategy and the two tier-level
// parameters that depend on it.
type RoutingConfig struct {
	// Strategy is one of "rule", "llm", "hybrid".
	Strategy string `toml:"strategy" env:"STRATEGY"`
	// RouterTier is the tier whose endpoints run the LLM classifier itself.
	RouterTier string `toml:"router_tier" env:"ROUTER_TIER"`
	// DefaultTier is the last-resort tier used when no rule fires and the
	// LLM router is unavailable (rule-only strategy).
	DefaultTier string `toml:"default_tier" env:"DEFAULT_TIER"`
}

// TimeoutsConfig supplies per-tier default attempt timeouts, in seconds,
// used for any endpoint that does not set its own timeout_seconds.
type TimeoutsConfig struct {
	Fast     int `toml:"fast" env:"FAST"`
	Balanced int `toml:"balanced" env:"BALANCED"`
	Deep     int `toml:"deep" env:"DEEP"`
}

// ObservabilityConfig controls logging and tracing.
type ObservabilityConfig struct {
	LogLevel       string `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat      string `toml:"log_format" env:"LOG_FORMAT"`
	TracingEnabled bool   `toml:"tracing_enabled" env:"TRACING_ENABLED"`
	OTLPEndpoint   string `toml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// Validate enforces the numeric and enum constraints every loaded
// configuration must satisfy before the router starts.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "server.http_port must be in (0,65535]")
	}

	tierEndpoints := map[router.Tier][]EndpointConfig{
		router.TierFast:     c.Models.Fast,
		router.TierBalanced: c.Models.Balanced,
		router.TierDeep:     c.Models.Deep,
	}
	tierDefaultTimeout := map[router.Tier]int{
		router.TierFast:     c.Timeouts.Fast,
		router.TierBalanced: c.Timeouts.Balanced,
		router.TierDeep:     c.Timeouts.Deep,
	}
	for _, tier := range router.Tiers {
		entries := tierEndpoints[tier]
		if len(entries) == 0 {
			errs = append(errs, fmt.Sprintf("models.%s must declare at least one endpoint", tier))
			continue
		}
		for _, e := range entries {
			if err := validateEndpointConfig(tier, e, tierDefaultTimeout[tier]); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	switch c.Routing.Strategy {
	case "rule", "llm", "hybrid":
	default:
		errs = append(errs, fmt.Sprintf("routing.strategy must be one of rule|llm|hybrid, got %q", c.Routing.Strategy))
	}

	if c.Routing.RouterTier != "" && !router.Tier(c.Routing.RouterTier).Valid() {
		errs = append(errs, fmt.Sprintf("routing.router_tier %q is not a valid tier", c.Routing.RouterTier))
	}
	if c.Routing.DefaultTier != "" && !router.Tier(c.Routing.DefaultTier).Valid() {
		errs = append(errs, fmt.Sprintf("routing.default_tier %q is not a valid tier", c.Routing.DefaultTier))
	}

	for name, secs := range map[string]int{
		"timeouts.fast": c.Timeouts.Fast, "timeouts.balanced": c.Timeouts.Balanced, "timeouts.deep": c.Timeouts.Deep,
	} {
		if secs < 1 || secs > 300 {
			errs = append(errs, fmt.Sprintf("%s must be in [1,300], got %d", name, secs))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateEndpointConfig checks the config-only fields (name presence,
// max_tokens) directly, then resolves the endpoint's effective timeout
// (its own timeout_seconds, or the tier default) and delegates the
// shared invariants — base_url shape, weight, timeout range — to
// router.Endpoint.Validate so both validation paths can never drift.
func validateEndpointConfig(tier router.Tier, e EndpointConfig, tierDefaultTimeout int) error {
	if e.Name == "" {
		return fmt.Errorf("models.%s: an endpoint is missing a name", tier)
	}
	if e.MaxTokens <= 0 {
		return fmt.Errorf("models.%s[%s]: max_tokens must be positive", tier, e.Name)
	}

	timeout := e.TimeoutSeconds
	if timeout == 0 {
		timeout = tierDefaultTimeout
	}
	ep := router.Endpoint{
		Name:           e.Name,
		Tier:           tier,
		BaseURL:        e.BaseURL,
		Model:          e.Model,
		Weight:         e.Weight,
		Priority:       e.Priority,
		TimeoutSeconds: timeout,
	}
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("models.%s[%s]: %w", tier, e.Name, err)
	}
	return nil
}

// Endpoints builds the full, validated router.Endpoint list across all
// tiers, resolving each endpoint's timeout from its own timeout_seconds
// when set, falling back to the tier default from [timeouts].
func (c *Config) Endpoints() []router.Endpoint {
	tierDefaults := map[router.Tier]int{
		router.TierFast:     c.Timeouts.Fast,
		router.TierBalanced: c.Timeouts.Balanced,
		router.TierDeep:     c.Timeouts.Deep,
	}
	tierEntries := map[router.Tier][]EndpointConfig{
		router.TierFast:     c.Models.Fast,
		router.TierBalanced: c.Models.Balanced,
		router.TierDeep:     c.Models.Deep,
	}

	var out []router.Endpoint
	for _, tier := range router.Tiers {
		for _, e := range tierEntries[tier] {
			timeout := e.TimeoutSeconds
			if timeout == 0 {
				timeout = tierDefaults[tier]
			}
			out = append(out, router.Endpoint{
				Name:           e.Name,
				Tier:           tier,
				BaseURL:        e.BaseURL,
				Model:          e.Model,
				Weight:         e.Weight,
				Priority:       e.Priority,
				TimeoutSeconds: timeout,
			})
		}
	}
	return out
}

// ResolvedDefaultTier returns the operator-configured default_tier, or,
// when unset, the first tier with at least one configured endpoint in the
// preference order Balanced, Fast, Deep.
func (c *Config) ResolvedDefaultTier() router.Tier {
	if c.Routing.DefaultTier != "" {
		return router.Tier(c.Routing.DefaultTier)
	}
	for _, tier := range []router.Tier{router.TierBalanced, router.TierFast, router.TierDeep} {
		if len(c.tierEntries(tier)) > 0 {
			return tier
		}
	}
	return router.TierBalanced
}

// ResolvedRouterTier returns the operator-configured router_tier, or,
// when unset, the same deterministic fallback as ResolvedDefaultTier.
func (c *Config) ResolvedRouterTier() router.Tier {
	if c.Routing.RouterTier != "" {
		return router.Tier(c.Routing.RouterTier)
	}
	return c.ResolvedDefaultTier()
}

func (c *Config) tierEntries(tier router.Tier) []EndpointConfig {
	switch tier {
	case router.TierFast:
		return c.Models.Fast
	case router.TierBalanced:
		return c.Models.Balanced
	case router.TierDeep:
		return c.Models.Deep
	default:
		return nil
	}
}
