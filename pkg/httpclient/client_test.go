package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig retries quickly so tests do not sleep.
func fastConfig(retries int) Config {
	return Config{
		Timeout:         5 * time.Second,
		MaxRetries:      retries,
		BackoffBase:     time.Millisecond,
		BackoffCap:      5 * time.Millisecond,
		MaxConnsPerHost: 4,
	}
}

// scripted answers with statuses in order, repeating the last one.
func scripted(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		w.WriteHeader(statuses[min(n, len(statuses))-1])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func send(t *testing.T, c *Client, ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	require.NoError(t, err)
	resp, err := c.Do(ctx, req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, Config{
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		BackoffBase:     200 * time.Millisecond,
		BackoffCap:      2 * time.Second,
		MaxConnsPerHost: 64,
	}, DefaultConfig())
}

func TestDo_RetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		retries  int
		want     int
		wantHits int32
	}{
		{"success first try", []int{200}, 2, 200, 1},
		{"recovers from 503", []int{503, 503, 200}, 3, 200, 3},
		{"recovers from 429", []int{429, 200}, 1, 200, 2},
		{"gives up with last answer", []int{502}, 2, 502, 3},
		{"501 is final", []int{501, 200}, 3, 501, 1},
		{"4xx is final", []int{404, 200}, 3, 404, 1},
		{"no retries configured", []int{500, 200}, 0, 500, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := scripted(t, tt.statuses...)
			resp, err := send(t, New(fastConfig(tt.retries)), context.Background(), http.MethodGet, srv.URL, http.NoBody)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestDo_RewindsBodyOnRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"latitude":-20.88}`, string(body))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	resp, err := send(t, New(fastConfig(2)), context.Background(), http.MethodPatch, srv.URL, strings.NewReader(`{"latitude":-20.88}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDo_OneShotBodyIsSentOnce(t *testing.T) {
	srv, hits := scripted(t, http.StatusBadGateway)

	// MultiReader hides the concrete type so no GetBody is installed.
	resp, err := send(t, New(fastConfig(3)), context.Background(), http.MethodPost, srv.URL, io.MultiReader(strings.NewReader(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_StopsWhenContextEnds(t *testing.T) {
	srv, _ := scripted(t, http.StatusServiceUnavailable)
	cfg := fastConfig(10)
	cfg.BackoffBase, cfg.BackoffCap = 200*time.Millisecond, time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := send(t, New(cfg), ctx, http.MethodGet, srv.URL, http.NoBody)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_TransportErrorNamesRequest(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api/stores"
	srv.Close()

	_, err := send(t, New(fastConfig(1)), context.Background(), http.MethodGet, url, http.NoBody)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET "+url)
	assert.Contains(t, err.Error(), "attempt 2")
}

func TestRetryAfter(t *testing.T) {
	resp := func(v string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{v}}}
	}
	assert.Equal(t, 3*time.Second, retryAfter(resp("3"), 0))
	assert.Equal(t, 2*time.Second, retryAfter(resp("30"), 2*time.Second))
	assert.Zero(t, retryAfter(resp("Wed, 21 Oct 2015 07:28:00 GMT"), time.Second))
	assert.Zero(t, retryAfter(resp("-1"), time.Second))
}

func TestBackoff_GrowsToCap(t *testing.T) {
	c := New(Config{BackoffBase: 100 * time.Millisecond, BackoffCap: 300 * time.Millisecond})
	for attempt, want := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 5: 300 * time.Millisecond, 60: 300 * time.Millisecond} {
		got := c.backoff(attempt)
		assert.InDelta(t, float64(want), float64(got), float64(want)/4, "attempt %d", attempt)
	}
	assert.Zero(t, New(Config{}).backoff(3))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(fmt.Errorf("get: %w", context.Canceled)))
	assert.False(t, isRetryableError(io.ErrUnexpectedEOF))
	assert.True(t, isRetryableError(context.DeadlineExceeded), "deadline errors implement net.Error")
}

func TestAddJitter(t *testing.T) {
	assert.Zero(t, addJitter(0))
	assert.Equal(t, time.Duration(3), addJitter(3))

	seen := map[time.Duration]bool{}
	for range 100 {
		d := addJitter(time.Second)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 10)
}
