package router

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basui-labs/llmrouter/llm/client"
	"github.com/basui-labs/llmrouter/llm/retry"

	"go.uber.org/zap"
)

const (
	probeInterval = 30 * time.Second
	probeTimeout  = 5 * time.Second
)

// Prober issues liveness probes against an endpoint's base URL. A
// *client.Client satisfies it.
type Prober interface {
	ProbeLiveness(ctx context.Context, baseURL string, timeout time.Duration) error
}

// BackgroundTaskFailureRecorder is the narrow slice of internal/metrics.Collector
// that HealthChecker needs — accepting an interface here keeps the router
// package from depending on the metrics package's full surface.
type BackgroundTaskFailureRecorder interface {
	RecordBackgroundHealthTaskFailure()
}

// HealthChecker is the background task (C2) that periodically probes every
// registered endpoint and updates the registry's health state. If the probe
// loop itself fails (panics), a supervisor restarts it with exponential
// backoff; after five consecutive restart failures it gives up permanently
// and the server continues serving with whatever health state it last saw.
type HealthChecker struct {
	registry  *Registry
	prober    Prober
	logger    *zap.Logger
	collector BackgroundTaskFailureRecorder

	restarts int
	gaveUp   bool
}

func NewHealthChecker(registry *Registry, prober Prober, logger *zap.Logger, collector BackgroundTaskFailureRecorder) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{registry: registry, prober: prober, logger: logger, collector: collector}
}

// Restarts reports the monotonically increasing supervisor restart counter,
// surfaced at GET /health as background_task_failures.
func (h *HealthChecker) Restarts() int {
	return h.restarts
}

// GaveUp reports whether the supervisor exhausted its restart budget and
// stopped probing permanently.
func (h *HealthChecker) GaveUp() bool {
	return h.gaveUp
}

// Run drives the supervised probe loop until ctx is canceled or the
// supervisor gives up. It blocks; callers should run it in its own
// goroutine.
func (h *HealthChecker) Run(ctx context.Context) {
	retryer := retry.NewBackoffRetryer(retry.DefaultPolicy(), h.logger)

	err := retryer.Do(ctx, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("health check loop panicked: %v", r)
				h.restarts++
				if h.collector != nil {
					h.collector.RecordBackgroundHealthTaskFailure()
				}
			}
		}()
		return h.loop(ctx)
	})

	if err != nil && ctx.Err() == nil {
		h.gaveUp = true
		h.logger.Error("health checker supervisor gave up after exhausting restarts", zap.Error(err))
	}
}

// loop runs probe ticks until ctx is done or an unexpected error occurs.
// A probe failure for one endpoint is not an error for the loop itself —
// only the supervisor-visible restart path treats panics that way.
func (h *HealthChecker) loop(ctx context.Context) error {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.probeAll(ctx)
		}
	}
}

func (h *HealthChecker) probeAll(ctx context.Context) {
	names := h.registry.AllNames()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			h.probeOne(gctx, name)
			return nil
		})
	}
	_ = g.Wait()
}

func (h *HealthChecker) probeOne(ctx context.Context, name string) {
	ep, ok := h.registry.EndpointByName(name)
	if !ok {
		h.logger.Warn("health bookkeeping anomaly: probe target not found", zap.String("endpoint", name))
		return
	}

	if err := h.prober.ProbeLiveness(ctx, ep.BaseURL, probeTimeout); err != nil {
		if !h.registry.MarkFailure(name) {
			h.logger.Warn("health bookkeeping anomaly: mark_failure on unknown endpoint", zap.String("endpoint", name))
		}
		h.logger.Debug("endpoint probe failed", zap.String("endpoint", name), zap.Error(err))
		return
	}
	if !h.registry.MarkSuccess(name) {
		h.logger.Warn("health bookkeeping anomaly: mark_success on unknown endpoint", zap.String("endpoint", name))
	}
}

var _ Prober = (*client.Client)(nil)
