package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-shop-auth/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	allowed bool
	wait    time.Duration
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.wait, s.err
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		limiter      *stubLimiter
		expectedCode int
		retryAfter   string
	}{
		{name: "allowed", limiter: &stubLimiter{allowed: true}, expectedCode: http.StatusOK},
		{name: "denied", limiter: &stubLimiter{wait: 1500 * time.Millisecond}, expectedCode: http.StatusTooManyRequests, retryAfter: "2"},
		{name: "limiter down fails open", limiter: &stubLimiter{err: errors.New("redis down")}, expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:5555"
			rec := httptest.NewRecorder()

			RateLimitMiddleware(tt.limiter, "login")(okHandler(&called)).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, tt.expectedCode == http.StatusOK, called)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			assert.Equal(t, []string{"10.0.0.1:login"}, tt.limiter.keys)
			if tt.expectedCode == http.StatusTooManyRequests {
				assert.JSONEq(t, `{"success":false,"message":"Too many requests"}`, rec.Body.String())
			}
		})
	}
}

func TestRateLimitMiddleware_Redis(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	handler := RateLimitMiddleware(ratelimit.New(rdb, "test", 0.001, 2), "register")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }),
	)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
