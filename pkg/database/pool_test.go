package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoff_ExponentialWithJitter(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := defaultRetryBaseWait << attempt // 1s, 2s, 4s
		minExpected := time.Duration(float64(base) * (1 - retryJitterFraction))
		maxExpected := time.Duration(float64(base) * (1 + retryJitterFraction))

		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, minExpected, "attempt %d iteration %d: %v < %v", attempt, i, d, minExpected)
			assert.LessOrEqual(t, d, maxExpected, "attempt %d iteration %d: %v > %v", attempt, i, d, maxExpected)
		}
	}
}

func TestRedisConfig_Options(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Password = "secret"
	cfg.DB = 2

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
}

func TestRedisConfig_OptionsFromURL(t *testing.T) {
	cfg := RedisConfig{URL: "redis://:pw@cache.internal:6380/3", PoolSize: 5}

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 5, opts.PoolSize)
}

func TestRedisConfig_InvalidURL(t *testing.T) {
	_, err := RedisConfig{URL: "http://not-redis"}.Options()
	require.Error(t, err)
}

func TestNewRedisClient_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := RedisConfig{URL: "redis://" + mr.Addr()}

	client, err := NewRedisClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

// flakyPinger fails the first n pings.
type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(ctx context.Context) *redis.StatusCmd {
	p.calls++
	cmd := redis.NewStatusCmd(ctx, "ping")
	if p.calls <= p.failures {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func noWait(int) time.Duration { return 0 }

func TestPingWithRetry_RecoversAfterFailures(t *testing.T) {
	p := &flakyPinger{failures: 2}
	require.NoError(t, pingWithRetry(context.Background(), p, 3, noWait, nil))
	assert.Equal(t, 3, p.calls)
}

func TestPingWithRetry_GivesUp(t *testing.T) {
	p := &flakyPinger{failures: 10}
	err := pingWithRetry(context.Background(), p, 3, noWait, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, p.calls)
}

func TestPingWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &flakyPinger{failures: 10}
	err := pingWithRetry(ctx, p, 3, func(int) time.Duration { return time.Hour }, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
