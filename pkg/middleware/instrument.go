package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Values of the client label. Requests from the sync client carry
// X-Requested-With: XMLHttpRequest; everything else is a page load.
const (
	ClientSync = "sync"
	ClientPage = "page"
)

// unmatchedRoute labels requests chi could not route, so stray URLs do not
// spawn new series.
const unmatchedRoute = "unmatched"

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Requests served, by route pattern, status and client.",
		},
		[]string{"service", "method", "route", "status", "client"},
	)
	requestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_seconds",
			Help:    "Request latency by route pattern.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "method", "route", "client"},
	)
	requestsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_http_requests_active",
			Help: "Requests currently being served.",
		},
		[]string{"service"},
	)
)

// Instrument records a server span and request metrics for every request.
// Incoming W3C trace context is continued and the response carries the
// span's traceparent. Span names and metric labels use the chi route
// pattern as chi reports it, without the trailing slash, so /carts/add/{slug}
// is one series however many products exist.
func Instrument(service string) func(http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/jashezan/HomifyHub/" + service)
	active := requestsActive.WithLabelValues(service)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			active.Inc()
			defer active.Dec()

			prop := otel.GetTextMapPropagator()
			ctx, span := tracer.Start(
				prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header)),
				r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethod(r.Method),
					semconv.HTTPTarget(r.URL.RequestURI()),
					attribute.String("http.client_ip", ClientIP(r)),
					attribute.String("storefront.client", clientKind(r)),
				),
			)
			defer span.End()
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := routePattern(r)
			if route != unmatchedRoute {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
			span.SetAttributes(semconv.HTTPStatusCode(rec.status))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}

			client := clientKind(r)
			requestsTotal.WithLabelValues(service, r.Method, route, strconv.Itoa(rec.status), client).Inc()
			requestSeconds.WithLabelValues(service, r.Method, route, client).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern reads the pattern chi matched. It is only complete once the
// router has run, which is why Instrument reads it after next returns.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

func clientKind(r *http.Request) string {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return ClientSync
	}
	return ClientPage
}
