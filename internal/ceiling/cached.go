package ceiling

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"babybudget/internal/cache"
)

const defaultCacheSize = 1024

// Cached remembers successful lookups for a short TTL. Misses and errors are
// never cached, so a ceiling set for a new user is visible immediately.
type Cached struct {
	next  Lookup
	cache *cache.LRUCache[decimal.Decimal]
}

// NewCached wraps next. A non-positive ttl disables caching and returns next.
func NewCached(next Lookup, ttl time.Duration, size int) Lookup {
	if ttl <= 0 {
		return next
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Cached{next: next, cache: cache.NewLRUCache[decimal.Decimal](size, ttl)}
}

func (c *Cached) GetCeiling(ctx context.Context, userID string) (decimal.Decimal, error) {
	if v, ok := c.cache.Get(userID); ok {
		return v, nil
	}
	v, err := c.next.GetCeiling(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.Set(userID, v)
	return v, nil
}

// Invalidate drops a cached ceiling.
func (c *Cached) Invalidate(userID string) {
	c.cache.Delete(userID)
}

func (c *Cached) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

// CleanExpired lets a cache.Manager sweep the entries.
func (c *Cached) CleanExpired() int {
	return c.cache.CleanExpired()
}
