package middlewares

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sbilibin2017/gw-shop-auth/internal/handlers"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/metrics"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
)

// Limiter takes one token from the bucket of key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimitMiddleware limits requests per client IP for one route.
// A limiter error lets the request through.
func RateLimitMiddleware(limiter Limiter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + ":" + route

			allowed, wait, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Log.Warnw("rate limiter unavailable", "route", route, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(route).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				handlers.WriteError(w, services.ErrTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
