package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// System names the store a statement runs against. It becomes db.system on
// spans and the system label on metrics.
type System string

const (
	Postgres System = "postgresql"
	Redis    System = "redis"
)

const tracerName = "github.com/jashezan/HomifyHub/pkg/database"

var querySeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "storefront_db_query_seconds",
		Help:    "Statement latency by store and operation.",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, 1},
	},
	[]string{"system", "operation", "outcome"},
)

type slowLog struct {
	after  time.Duration
	logger *slog.Logger
}

var slow atomic.Pointer[slowLog]

// LogSlowQueries warns through logger about statements that take at least
// after. A zero after or nil logger turns the warning off.
func LogSlowQueries(after time.Duration, logger *slog.Logger) {
	if after <= 0 || logger == nil {
		slow.Store(nil)
		return
	}
	slow.Store(&slowLog{after: after, logger: logger})
}

// Trace opens a client span for one statement and returns the function that
// closes it:
//
//	ctx, done := database.Trace(ctx, database.Postgres, "GetProductBySlug", query)
//	defer func() { done(err) }()
//
// For Redis, statement names the command and key pattern, never values.
func Trace(ctx context.Context, sys System, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, string(sys)+" "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", string(sys)),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		querySeconds.WithLabelValues(string(sys), operation, outcome).Observe(elapsed.Seconds())

		cfg := slow.Load()
		if cfg == nil || elapsed < cfg.after {
			return
		}
		attrs := []any{
			slog.String("system", string(sys)),
			slog.String("operation", operation),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		cfg.logger.WarnContext(ctx, "slow query", attrs...)
	}
}
