// Package config loads and validates the router's configuration: the
// server's listen address, the per-tier model endpoints, the routing
// strategy, per-tier timeouts, and observability settings.
//
// Configuration is layered default values -> TOML file -> environment
// variables, mirroring the precedence order used throughout the
// reference codebase this router was built from. The result is loaded
// once at startup and handed to the core as an immutable value; there
// is no hot-reload.
package config
