package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "consent:"

// Store persists Markers per session key.
type Store interface {
	Load(ctx context.Context, key string) (Markers, error)
	Save(ctx context.Context, key string, m Markers) error
}

// RedisStore keeps markers in Redis as JSON with a sliding TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed marker store.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Load returns the markers of key. A session without stored markers has
// the zero value.
func (s *RedisStore) Load(ctx context.Context, key string) (Markers, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Markers{}, nil
		}
		return Markers{}, fmt.Errorf("redis get consent markers: %w", err)
	}

	var m Markers
	if err := json.Unmarshal(data, &m); err != nil {
		return Markers{}, fmt.Errorf("unmarshal consent markers: %w", err)
	}
	return m, nil
}

// Save writes the markers of key and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, key string, m Markers) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal consent markers: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set consent markers: %w", err)
	}
	return nil
}
