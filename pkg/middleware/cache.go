package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// cacheWriter stamps Cache-Control when the status is known, so only
// successful answers are marked cacheable. A value the handler set itself
// is kept.
type cacheWriter struct {
	http.ResponseWriter
	value       string
	wroteHeader bool
}

func (c *cacheWriter) WriteHeader(status int) {
	if !c.wroteHeader {
		c.wroteHeader = true
		if c.Header().Get("Cache-Control") == "" {
			if status < http.StatusMultipleChoices {
				c.Header().Set("Cache-Control", c.value)
			} else {
				c.Header().Set("Cache-Control", "no-store")
			}
		}
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *cacheWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	return c.ResponseWriter.Write(p)
}

func (c *cacheWriter) Unwrap() http.ResponseWriter { return c.ResponseWriter }

// CacheControl lets browsers and shared caches keep successful GET and HEAD
// answers for maxAge. Error answers are sent with no-store, and handlers
// can opt a degraded answer out by setting Cache-Control first.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(int(maxAge/time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(&cacheWriter{ResponseWriter: w, value: value}, r)
		})
	}
}

// NoStore marks answers as per-visitor.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
