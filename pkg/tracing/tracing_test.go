package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func restoreGlobals(t *testing.T) {
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestSetup_WithoutEndpointOnlyPropagates(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), Settings{Service: "syncctl"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.Equal(t, before, otel.GetTracerProvider())
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestSetup_WithEndpoint(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := Setup(context.Background(), Settings{
		Service:     "storefront",
		Environment: "test",
		Endpoint:    "127.0.0.1:0",
		Ratio:       0.5,
	})
	require.NoError(t, err)
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	// Nothing listens on the endpoint, so the flush may fail.
	_ = shutdown(context.Background())
}

func TestPropagate_RoundTrip(t *testing.T) {
	restoreGlobals(t)
	Propagate()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	h := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	got := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(h)))

	assert.Equal(t, traceID, got.TraceID())
	assert.True(t, got.IsRemote())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, Sampler(tt.ratio).Description(), "ParentBased{root:"+tt.root, "ratio %v", tt.ratio)
	}
}

func TestTracer(t *testing.T) {
	_, span := Tracer("homifyhub/test").Start(context.Background(), "cart.add")
	span.End()
}
