// Package tracing sets up OpenTelemetry for the storefront and the sync
// client. Both sides propagate W3C trace context, so a button press in
// syncctl and the handler that serves it share one trace.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Settings describes where spans go. An empty Endpoint keeps the no-op
// provider; propagation is installed either way.
type Settings struct {
	Service     string
	Version     string
	Environment string
	// Endpoint is the host:port of an OTLP/HTTP collector.
	Endpoint string
	// Ratio is the share of new traces sampled, in [0, 1]. Traces arriving
	// with a sampled parent are always kept.
	Ratio float64
}

// Version is stamped on spans when Settings.Version is empty.
const Version = "0.1.0"

// Propagate installs the TraceContext and Baggage propagators globally.
func Propagate() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Setup installs propagation and, when s.Endpoint is set, an OTLP provider.
// The returned function flushes and stops the provider.
func Setup(ctx context.Context, s Settings) (func(context.Context) error, error) {
	Propagate()
	if s.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if s.Version == "" {
		s.Version = Version
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(s.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.Service),
			semconv.ServiceVersion(s.Version),
			semconv.DeploymentEnvironment(s.Environment),
		),
		resource.WithProcessRuntimeDescription(),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(s.Ratio)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Sampler samples ratio of root spans and follows the parent otherwise.
func Sampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	if ratio >= 1 {
		root = sdktrace.AlwaysSample()
	} else if ratio <= 0 {
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
