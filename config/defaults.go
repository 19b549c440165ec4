package config

import "time"

// DefaultConfig returns a configuration with sane defaults and no
// configured endpoints. Callers must still supply at least one endpoint
// per tier via a config file or Validate will reject it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Routing: RoutingConfig{
			Strategy: "hybrid",
		},
		Timeouts: TimeoutsConfig{
			Fast:     15,
			Balanced: 30,
			Deep:     60,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}
