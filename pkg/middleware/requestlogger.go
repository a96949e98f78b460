package middleware

import (
	"log/slog"
	"net/http"

	"github.com/jashezan/HomifyHub/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context carrying
// correlation_id, shopper, trace_id and span_id. Mount it after
// RequestLogging, Tracing and the identity middleware.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id, ok := IdentityFromContext(ctx); ok {
				ctx = logger.WithShopper(ctx, id.Key())
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
