package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func send(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/flyers", nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_WithinBurstPasses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 10, 10, newTestLogger())(okHandler())

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, send(h, "192.168.1.1:12345").Code, "request %d", i+1)
	}
}

func TestRateLimit_ExceedingBurstReturns429(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 0.5, 2, newTestLogger())(okHandler())

	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1").Code)

	rr := send(h, "10.0.0.1:1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 1, 1, newTestLogger())(okHandler())

	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.2:1").Code)
}

func TestRateLimit_DisabledWhenRateIsZero(t *testing.T) {
	h := RateLimit(context.Background(), 0, 0, newTestLogger())(okHandler())
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1").Code)
	}
}

func TestLimiterPool_SweepEvictsIdle(t *testing.T) {
	pool := newLimiterPool(1, 1, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }

	pool.get("10.0.0.1")
	now = now.Add(30 * time.Second)
	pool.get("10.0.0.2")
	now = now.Add(45 * time.Second)

	pool.sweep()
	assert.Equal(t, 1, pool.size())
}

func TestLimiterPool_RetryAfterTracksRefill(t *testing.T) {
	pool := newLimiterPool(0.25, 1, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }
	h := limitWith(pool, newTestLogger())(okHandler())

	assert.Equal(t, http.StatusOK, send(h, "10.0.0.9:1").Code)
	rr := send(h, "10.0.0.9:1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "4", rr.Header().Get("Retry-After"))

	// A rejected request does not consume the token that refills.
	now = now.Add(4 * time.Second)
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.9:1").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.1.1.1:5555", "10.1.1.1"},
		{"remote without port", nil, "10.1.1.1", "10.1.1.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.9"},
		{"forwarded garbage then ip", map[string]string{"X-Forwarded-For": "unknown, 198.51.100.2"}, "10.0.0.1:1", "198.51.100.2"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:1", "198.51.100.7"},
		{"invalid headers", map[string]string{"X-Forwarded-For": "nope", "X-Real-IP": "nope"}, "10.0.0.3:1", "10.0.0.3"},
		{"mapped ipv6 forwarded", map[string]string{"X-Forwarded-For": "::ffff:203.0.113.4"}, "10.0.0.1:1", "203.0.113.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
