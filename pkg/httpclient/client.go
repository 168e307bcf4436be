// Package httpclient is the BFF's outbound HTTP stack: a pooled client that
// retries idempotent failures, a per-upstream circuit breaker, and the
// mapping from upstream error bodies to AppErrors.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Config tunes one upstream client.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	MaxConnsPerHost int
}

// DefaultConfig is used for both the REST backend and the geocoder.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		BackoffBase:     200 * time.Millisecond,
		BackoffCap:      2 * time.Second,
		MaxConnsPerHost: 64,
	}
}

// Client sends requests with retries on a tuned transport.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New builds a Client. Connections are pooled per upstream host.
func New(cfg Config) *Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          2 * cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config:     cfg,
	}
}

// Do sends req, retrying transport errors and retryable statuses up to
// MaxRetries times. A request whose body cannot be rewound (no GetBody) is
// sent once. The last response is returned as is when retries run out.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	attempts := c.config.MaxRetries + 1
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		last := attempt >= attempts || ctx.Err() != nil

		var wait time.Duration
		switch {
		case err != nil:
			if last || !isRetryableError(err) {
				return nil, fmt.Errorf("%s %s: attempt %d: %w", req.Method, req.URL.Redacted(), attempt, err)
			}
			wait = c.backoff(attempt)
		case retryableStatus(resp.StatusCode) && !last:
			wait = max(c.backoff(attempt), retryAfter(resp, c.config.BackoffCap))
			drain(resp)
		default:
			return resp, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}
	}
}

// backoff doubles BackoffBase per attempt up to BackoffCap and spreads the
// result by a quarter either way.
func (c *Client) backoff(attempt int) time.Duration {
	if c.config.BackoffBase <= 0 {
		return 0
	}
	d := c.config.BackoffBase << min(attempt-1, 16)
	if c.config.BackoffCap > 0 && (d > c.config.BackoffCap || d <= 0) {
		d = c.config.BackoffCap
	}
	return addJitter(d)
}

// retryableStatus is true for 5xx answers except 501, which will not change
// on a retry, and for 429.
func retryableStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status != http.StatusNotImplemented
}

// retryAfter reads a Retry-After header given in seconds, capped at limit.
func retryAfter(resp *http.Response, limit time.Duration) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// isRetryableError accepts network-level failures. A cancelled caller is
// never retried.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	quarter := int64(d) / 4
	if quarter == 0 {
		return d
	}
	return time.Duration(int64(d) - quarter + rand.Int64N(2*quarter+1))
}
