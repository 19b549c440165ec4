// Package main wires the router's composition root: configuration,
// clients, the routing core, HTTP handlers, and the two listeners
// (application traffic and Prometheus metrics).
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/basui-labs/llmrouter/api/handlers"
	"github.com/basui-labs/llmrouter/config"
	"github.com/basui-labs/llmrouter/internal/metrics"
	"github.com/basui-labs/llmrouter/internal/server"
	"github.com/basui-labs/llmrouter/internal/telemetry"
	"github.com/basui-labs/llmrouter/llm/client"
	"github.com/basui-labs/llmrouter/llm/router"
)

// Server owns every long-lived dependency the router needs and the two
// HTTP listeners (application traffic, Prometheus metrics) built from them.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	registry      *router.Registry
	healthChecker *router.HealthChecker
	collector     *metrics.Collector
	tracing       *telemetry.Providers

	cancelHealthChecker context.CancelFunc
	wg                  sync.WaitGroup
}

// NewServer assembles the full dependency graph from cfg but starts
// nothing yet; call Start to bring the listeners and background tasks up.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	tracing, err := telemetry.Init(cfg.Observability, logger)
	if err != nil {
		logger.Warn("failed to initialize tracing", zap.Error(err))
		tracing = &telemetry.Providers{}
	}

	httpClient := client.New()
	registry := router.NewRegistry(cfg.Endpoints())
	selector := router.NewSelector(registry, cfg.ResolvedDefaultTier())
	executor := router.NewExecutor(httpClient)
	invLoop := router.NewInvocationLoop(registry, selector, executor)

	rtr, err := buildRouter(cfg, selector, executor)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector("llmrouter")
	healthChecker := router.NewHealthChecker(registry, httpClient, logger, collector)

	chatHandler := handlers.NewChatHandler(rtr, invLoop, executor, registry, collector, logger)
	modelsHandler := handlers.NewModelsHandler(registry)
	healthHandler := handlers.NewHealthHandler(healthChecker, collector.Degraded)

	return &Server{
		cfg:           cfg,
		logger:        logger,
		registry:      registry,
		healthChecker: healthChecker,
		collector:     collector,
		tracing:       tracing,
		httpManager:   newHTTPManager(cfg, logger, chatHandler, modelsHandler, healthHandler),
		metricsManager: server.NewManager(metricsMux(), server.Config{
			Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, logger),
	}, nil
}

// buildRouter selects the Router implementation named by
// cfg.Routing.Strategy, wiring the LLM classifier only when a strategy
// actually needs it.
func buildRouter(cfg *config.Config, selector *router.Selector, executor *router.Executor) (router.Router, error) {
	switch cfg.Routing.Strategy {
	case "rule":
		return router.NewRuleOnlyRouter(cfg.ResolvedDefaultTier()), nil
	case "llm":
		llm := router.NewLlmRouter(selector, executor, cfg.ResolvedRouterTier())
		return router.NewLlmOnlyRouter(llm), nil
	case "hybrid":
		llm := router.NewLlmRouter(selector, executor, cfg.ResolvedRouterTier())
		return router.NewHybridRouter(llm), nil
	default:
		return nil, fmt.Errorf("unknown routing strategy %q", cfg.Routing.Strategy)
	}
}

func newHTTPManager(cfg *config.Config, logger *zap.Logger, chatHandler *handlers.ChatHandler, modelsHandler *handlers.ModelsHandler, healthHandler *handlers.HealthHandler) *server.Manager {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/models", modelsHandler.HandleModels)
	mux.HandleFunc("/chat", chatHandler.HandleChat)
	mux.HandleFunc("/v1/chat/completions", chatHandler.HandleCompletions)

	handler := Chain(mux,
		Recovery(logger),
		RequestID(),
		RequestLogger(logger),
		SecurityHeaders(),
		OTelTracing(),
	)

	cfgServer := server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	return server.NewManager(handler, cfgServer, logger)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start brings up both listeners and the background health-check loop.
// It returns once both listeners are accepting connections; the health
// checker runs in its own goroutine for the remainder of the process.
func (s *Server) Start(ctx context.Context) error {
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.metricsManager.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	healthCtx, cancel := context.WithCancel(ctx)
	s.cancelHealthChecker = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.healthChecker.Run(healthCtx)
	}()

	s.logger.Info("router started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("routing_strategy", s.cfg.Routing.Strategy),
	)
	return nil
}

// WaitForShutdown blocks until a shutdown signal or a listener failure,
// then performs an orderly shutdown of every owned resource.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown tears down both listeners and flushes pending trace spans.
func (s *Server) Shutdown() {
	s.logger.Info("shutting down")

	if s.cancelHealthChecker != nil {
		s.cancelHealthChecker()
	}

	ctx := context.Background()
	if err := s.httpManager.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := s.metricsManager.Shutdown(ctx); err != nil {
		s.logger.Error("metrics server shutdown error", zap.Error(err))
	}
	if err := s.tracing.Shutdown(ctx); err != nil {
		s.logger.Error("tracing shutdown error", zap.Error(err))
	}

	s.wg.Wait()
	s.logger.Info("shutdown complete")
}
