package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
)

// Fetcher loads the category tree. *backend.Client implements it.
type Fetcher interface {
	Categories(ctx context.Context) ([]domain.Category, error)
}

// Cache keeps the category tree in memory for a TTL. Concurrent callers that
// find the tree expired share a single fetch.
//
// A failed fetch is not retried until the TTL runs out again: lookups keep
// using the previous tree, or degrade to raw ids when there is none.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time

	mu        sync.RWMutex
	names     *Names
	fetchedAt time.Time
}

// NewCache creates a category cache.
func NewCache(fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		names:   NewNames(nil),
	}
}

// Names returns the current lookup snapshot, refreshing it when expired.
func (c *Cache) Names(ctx context.Context) *Names {
	c.mu.RLock()
	names, fresh := c.names, !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return names
	}

	v, _, _ := c.group.Do("tree", func() (any, error) {
		return c.refresh(ctx), nil
	})
	return v.(*Names)
}

// Invalidate forces the next Names call to refetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) refresh(ctx context.Context) *Names {
	// The refresh is shared by every waiting caller, so one caller going
	// away must not abort it.
	tree, err := c.fetcher.Categories(context.WithoutCancel(ctx))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetchedAt = c.now()
	if err != nil {
		c.logger.WarnContext(ctx, "category tree fetch failed, using fallback names",
			slog.String("error", err.Error()),
		)
		return c.names
	}
	c.names = NewNames(tree)
	return c.names
}
