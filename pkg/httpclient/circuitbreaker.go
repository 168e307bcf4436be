package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

// HeaderCorrelationID is forwarded on every upstream request so backend
// logs can be joined with the BFF's.
const HeaderCorrelationID = "X-Correlation-ID"

// ErrCircuitOpen is returned while an upstream's breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// CircuitBreakerConfig tunes the breaker guarding one upstream.
type CircuitBreakerConfig struct {
	// Name is the upstream name. It labels metrics and prefixes errors.
	Name string
	// MaxRequests probes are let through while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counts. Zero never resets.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// The breaker opens once MinRequests calls were seen in the current
	// interval and at least FailureRatio of them failed.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig opens after half of at least five calls fail
// and probes again after 30s.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "topprix",
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Breaker state per upstream: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"upstream"},
	)

	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topprix",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream calls by result: ok, client_error, failure or rejected.",
		},
		[]string{"upstream", "result"},
	)
)

// CircuitBreakerClient sends requests to a single upstream through a
// gobreaker breaker. Transport errors and 5xx answers count as failures,
// 4xx answers and cancelled callers do not.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	name    string
}

// NewCircuitBreakerClient wraps client for the upstream named in cfg.
func NewCircuitBreakerClient(client *Client, cfg CircuitBreakerConfig, log *slog.Logger) *CircuitBreakerClient {
	if log == nil {
		log = slog.Default()
	}
	minRequests, ratio := cfg.MinRequests, cfg.FailureRatio

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= minRequests && float64(c.TotalFailures) >= ratio*float64(c.Requests)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateValue(to))
			log.Warn("upstream breaker changed state",
				slog.String("upstream", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))

	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		name:    cfg.Name,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// Do forwards the caller's correlation id and trace context, then sends
// req through the breaker. A 5xx answer is consumed and returned as an
// upstream AppError. Other answers are returned to the caller untouched.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if id := logger.CorrelationIDFromContext(ctx); id != "" && req.Header.Get(HeaderCorrelationID) == "" {
		req.Header.Set(HeaderCorrelationID, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, ParseResponseError(resp, c.name)
		}
		return resp, nil
	})
	upstreamRequests.WithLabelValues(c.name, result(resp, err)).Inc()
	return resp, err
}

func result(resp *http.Response, err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case err != nil:
		return "failure"
	case IsClientError(resp.StatusCode):
		return "client_error"
	}
	return "ok"
}

// Name is the upstream name used in errors and metrics.
func (c *CircuitBreakerClient) Name() string {
	return c.name
}

// State reports the breaker's current state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
