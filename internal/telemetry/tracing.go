// Package telemetry configures OpenTelemetry tracing for the server.
package telemetry

import (
	"context"
	"fmt"

	"github.com/eventeye/server/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// InitTracing installs a global tracer provider and W3C propagators. When
// tracing is disabled it installs nothing and the returned shutdown is a
// no-op.
func InitTracing(ctx context.Context, cfg config.TracingConfig, serviceVersion string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	sampler, err := newSampler(cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newSampler(rate float64) (sdktrace.Sampler, error) {
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("invalid sample rate %f: must be between 0.0 and 1.0", rate)
	case rate == 1:
		return sdktrace.AlwaysSample(), nil
	case rate == 0:
		return sdktrace.NeverSample(), nil
	default:
		return sdktrace.TraceIDRatioBased(rate), nil
	}
}

func newExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return exporter, nil
	case "otlp":
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
		return exporter, nil
	case "none", "":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s (must be 'stdout', 'otlp', or 'none')", cfg.Exporter)
	}
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// noopExporter drops spans; sampling and propagation still run.
type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (noopExporter) Shutdown(context.Context) error { return nil }
