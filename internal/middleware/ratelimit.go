// Package middleware holds the BFF-specific HTTP middleware.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
)

const idleLimiterTTL = 3 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per client address. Buckets unused
// for longer than idle are swept.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

func newLimiterPool(rps float64, burst int, idle time.Duration) *limiterPool {
	return &limiterPool{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		idle:    idle,
		now:     time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.buckets[key] = b
	}
	b.lastSeen = p.now()
	return b.limiter
}

func (p *limiterPool) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-p.idle)
	for key, b := range p.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(p.buckets, key)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets)
}

func (p *limiterPool) sweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// RateLimit allows each client address rps requests per second with the
// given burst and answers 429 beyond that. Retry-After carries the wait
// until the next token. The sweeper stops with ctx. A non-positive rps
// turns limiting off.
func RateLimit(ctx context.Context, rps float64, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	pool := newLimiterPool(rps, burst, idleLimiterTTL)
	go pool.sweepEvery(ctx, idleLimiterTTL)
	return limitWith(pool, logger)
}

func limitWith(pool *limiterPool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			wait, ok := reserve(pool.get(ip), pool.now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			logger.WarnContext(r.Context(), "rate limited",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
				slog.Duration("retry_in", wait),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
			})
		})
	}
}

// reserve takes a token if one is available now. Otherwise it reports how
// long the caller would have to wait, without consuming anything.
func reserve(lim *rate.Limiter, now time.Time) (time.Duration, bool) {
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return 0, true
	}
	res.CancelAt(now)
	return max(delay, time.Second), false
}

// ClientIP is the caller's address: the first parseable X-Forwarded-For
// hop, else X-Real-IP, else RemoteAddr without the port.
func ClientIP(r *http.Request) string {
	candidates := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	candidates = append(candidates, r.Header.Get("X-Real-IP"))
	for _, c := range candidates {
		if addr, err := netip.ParseAddr(strings.TrimSpace(c)); err == nil {
			return addr.Unmap().String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
