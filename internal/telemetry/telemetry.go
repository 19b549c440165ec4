// Package telemetry wraps OpenTelemetry tracing setup for the router. Only
// the tracing half of the OTel SDK is wired — metrics are covered by
// Prometheus (internal/metrics), so carrying the OTel metrics SDK as well
// would stand up a second, redundant metrics pipeline.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/basui-labs/llmrouter/config"
)

const serviceName = "llmrouter"

// Providers holds the OTel SDK TracerProvider. When tracing is disabled,
// tp is nil and Shutdown is a no-op; the global tracer remains the no-op
// implementation so span creation elsewhere in the router costs nothing.
type Providers struct {
	tp *sdktrace.TracerProvider
}

// Init initializes tracing per cfg. When cfg.TracingEnabled is false it
// returns a no-op Providers without opening any network connection.
func Init(cfg config.ObservabilityConfig, logger *zap.Logger) (*Providers, error) {
	if !cfg.TracingEnabled {
		logger.Info("tracing disabled, using noop tracer provider")
		return &Providers{}, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized", zap.String("otlp_endpoint", cfg.OTLPEndpoint))
	return &Providers{tp: tp}, nil
}

// Shutdown flushes pending spans and closes the exporter. Safe to call on
// a nil *Providers or one built with tracing disabled.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
