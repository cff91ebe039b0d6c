package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type middlewareFunc = func(http.HandlerFunc) http.HandlerFunc

// NewRateLimitMiddleware answers 429 without calling the handler once the
// client has used up its tokens
func NewRateLimitMiddleware(portName string, rateLimiter ratelimiting.RequestRateLimiter) middlewareFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if rateLimiter.Consume(r) {
				next(w, r)
				return
			}

			ctx := r.Context()
			metrics.rateLimitedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("port", portName)))
			logging.FromContext(ctx).InfoContext(ctx, "Rate limit exceeded", slog.String("key", rateLimiter.KeyFor(r)))

			w.Header().Set("Retry-After", "1")
			writeError(ctx, w, http.StatusTooManyRequests, "rate limit exceeded")
		}
	}
}

// ComposeMiddlewares wraps handlers so the first middleware sees the request first
func ComposeMiddlewares(middlewares ...middlewareFunc) middlewareFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}
