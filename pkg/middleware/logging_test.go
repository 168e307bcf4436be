package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

func newTestLogger(w *bytes.Buffer) *slog.Logger {
	return logger.NewWithWriter("topprix-bff", "debug", w)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestRequestLogging_AssignsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/flyers", nil))

	require.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(HeaderCorrelationID))

	line := decodeLine(t, &buf)
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, float64(http.StatusAccepted), line["status"])
	assert.Equal(t, seen, line["correlation_id"])
}

func TestRequestLogging_CorrelationIDFromClient(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"kept", "corr-from-client", true},
		{"too long", strings.Repeat("x", maxCorrelationIDLen+1), false},
		{"blank", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			req := httptest.NewRequest(http.MethodGet, "/api/v1/coupons", nil)
			req.Header.Set(HeaderCorrelationID, tt.header)
			req.Header.Set(HeaderViewID, "coupons-page")
			rec := httptest.NewRecorder()
			RequestLogging(newTestLogger(&buf))(okHandler()).ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderCorrelationID)
			if tt.keep {
				assert.Equal(t, tt.header, got)
			} else {
				assert.Len(t, got, 36)
			}
			assert.Equal(t, "coupons-page", decodeLine(t, &buf)["view_id"])
		})
	}
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, accessLevel("/api/v1/flyers", http.StatusBadGateway))
	assert.Equal(t, slog.LevelWarn, accessLevel("/api/v1/flyers", http.StatusNotFound))
	assert.Equal(t, slog.LevelInfo, accessLevel("/api/v1/flyers", http.StatusOK))
	assert.Equal(t, slog.LevelDebug, accessLevel("/health/ready", http.StatusOK))
	assert.Equal(t, slog.LevelDebug, accessLevel("/metrics", http.StatusOK))
	assert.Equal(t, slog.LevelError, accessLevel("/health/ready", http.StatusServiceUnavailable))
}

// serveLogged runs req through RequestLogger and decodes what the handler
// logged.
func serveLogged(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	h := RequestLogger(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("listing assembled")
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	return decodeLine(t, &buf)
}

func TestRequestLogger_Fields(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))
	ctx = logger.WithCorrelationID(ctx, "corr-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/consent/evaluate", nil).WithContext(ctx)
	req.Header.Set(HeaderVisitorID, "visitor-abc")
	req.Header.Set(HeaderViewID, "home")

	line := serveLogged(t, req)
	assert.Equal(t, "topprix-bff", line["service"])
	assert.Equal(t, "corr-1", line["correlation_id"])
	assert.Equal(t, "visitor-abc", line["visitor_id"])
	assert.Equal(t, "home", line["view_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", line["span_id"])
}

func TestRequestLogger_OmitsAbsentFields(t *testing.T) {
	line := serveLogged(t, httptest.NewRequest(http.MethodGet, "/api/v1/flyers", nil))
	for _, k := range []string{"visitor_id", "view_id", "user_id", "trace_id"} {
		assert.NotContains(t, line, k)
	}
}
