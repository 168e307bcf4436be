package middleware

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

// Headers the web client sends alongside every call.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderVisitorID     = "X-Visitor-ID"
	HeaderViewID        = "X-View-ID"
)

// maxCorrelationIDLen bounds client-supplied ids before they reach logs.
const maxCorrelationIDLen = 128

// responseWriter remembers the first status written and counts body bytes.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

// wrapResponseWriter reuses an outer wrapper so stacked middleware share
// one status.
func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode, rw.wroteHeader = code, true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// correlationID returns the client's id when it is usable, a new one
// otherwise.
func correlationID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
	if id == "" || len(id) > maxCorrelationIDLen || strings.ContainsAny(id, "\r\n") {
		return uuid.NewString()
	}
	return id
}

// accessLevel picks the access log level from the response status. Probe
// traffic is logged at debug.
func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/"), path == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// RequestLogging assigns the correlation id, echoes it on the response and
// writes one access log line per request.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := correlationID(r)
			ctx := logger.WithCorrelationID(r.Context(), id)
			w.Header().Set(HeaderCorrelationID, id)

			rw := wrapResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int("bytes", rw.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", id),
			}
			if view := r.Header.Get(HeaderViewID); view != "" {
				attrs = append(attrs, slog.String("view_id", view))
			}
			l.LogAttrs(ctx, accessLevel(r.URL.Path, rw.statusCode), "http request", attrs...)
		})
	}
}

// RequestLogger stores a logger carrying correlation, visitor, view and
// trace ids in the request context, for handlers to fetch with
// logger.FromContext. Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if visitor := r.Header.Get(HeaderVisitorID); visitor != "" {
				ctx = logger.WithVisitorID(ctx, visitor)
			}

			l := logger.WithContext(ctx, base)
			if view := r.Header.Get(HeaderViewID); view != "" {
				l = l.With(slog.String("view_id", view))
			}
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, l)))
		})
	}
}
