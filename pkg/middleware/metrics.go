package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests chi could not route, so scanners probing
// random paths do not create new series.
const unmatchedRoute = "unmatched"

var (
	requestLabels = []string{"service", "method", "route", "code"}

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topprix",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests served, by route pattern and status code.",
	}, requestLabels)

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "topprix",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to serve a request, upstream calls included.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, requestLabels)

	httpResponseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "topprix",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Response body size before compression.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"service", "route"})

	httpRequestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "topprix",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently being served.",
	}, []string{"service"})
)

// PrometheusMetrics records request count, latency and response size per
// chi route pattern. The pattern is read after the handler ran, once chi
// has finished routing.
func PrometheusMetrics(service string) func(http.Handler) http.Handler {
	inFlight := httpRequestsInFlight.WithLabelValues(service)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inFlight.Inc()
			defer inFlight.Dec()
			start := time.Now()

			rw := wrapResponseWriter(w)
			next.ServeHTTP(rw, r)

			route := routePattern(r)
			code := strconv.Itoa(rw.statusCode)
			httpRequestsTotal.WithLabelValues(service, r.Method, route, code).Inc()
			httpRequestDuration.WithLabelValues(service, r.Method, route, code).Observe(time.Since(start).Seconds())
			httpResponseBytes.WithLabelValues(service, route).Observe(float64(rw.bytes))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
