// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"stockwatcher/internal/platform/logging"
	"stockwatcher/internal/platform/store"
)

// ClosePriceReader is the read path being cached.
type ClosePriceReader interface {
	GetLastClosePriceForSymbol(ctx context.Context, symbol string, opts ...store.Option) (decimal.Decimal, error)
}

// CachingClosePriceRepository decorates a ClosePriceReader with Redis caching.
// Entries are dropped by Invalidate when new daily summaries are written.
type CachingClosePriceRepository struct {
	inner     ClosePriceReader
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingClosePriceRepository decorates inner with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "lastclose".
func NewCachingClosePriceRepository(rdb *redis.Client, ttl time.Duration, inner ClosePriceReader, namespace string) *CachingClosePriceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "lastclose"
	}
	return &CachingClosePriceRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// GetLastClosePriceForSymbol checks the cache first, then falls back to the store.
// Errors from the store, NotFound included, are never cached.
func (c *CachingClosePriceRepository) GetLastClosePriceForSymbol(ctx context.Context, symbol string, opts ...store.Option) (decimal.Decimal, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.GetLastClosePriceForSymbol(ctx, symbol, opts...)
	}

	key := c.cacheKey(symbol)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out decimal.Decimal
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.GetLastClosePriceForSymbol(ctx, symbol, opts...)
	if err != nil {
		return decimal.Zero, err
	}

	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

// Invalidate drops the cached prices of symbols, or every cached price when
// symbols is empty. Failures are logged; the cache is best effort.
func (c *CachingClosePriceRepository) Invalidate(ctx context.Context, symbols ...string) {
	if c.rdb == nil {
		return
	}
	if len(symbols) == 0 {
		if err := c.deleteByPattern(ctx, c.namespace+":*"); err != nil {
			logging.Warn().Err(err).Str("namespace", c.namespace).Msg("cache invalidation failed")
		}
		return
	}

	keys := make([]string, 0, len(symbols))
	for _, s := range symbols {
		keys = append(keys, c.cacheKey(s))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logging.Warn().Err(err).Int("keys", len(keys)).Msg("cache invalidation failed")
	}
}

func (c *CachingClosePriceRepository) cacheKey(symbol string) string {
	return fmt.Sprintf("%s:%s", c.namespace, safe(symbol))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingClosePriceRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
