package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bikeshop-pos/internal/core"
	"bikeshop-pos/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "bikeshop:product:"

// ProductCache is a Redis-backed cache-aside store for catalog products keyed by SKU.
// Redis failures degrade to the loader; they never fail a lookup.
type ProductCache struct {
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ core.ProductCache = (*ProductCache)(nil)

func NewProductCache(client *redis.Client, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *ProductCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductCache{client: client, ttl: ttl, logger: logger, metrics: m}
}

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

func cacheKey(sku string) string {
	return keyPrefix + core.NormalizeSKU(sku)
}

func (c *ProductCache) GetOrLoad(ctx context.Context, sku string, load func(ctx context.Context) (*core.Product, error)) (*core.Product, error) {
	key := cacheKey(sku)
	if p, ok := c.get(ctx, key); ok {
		c.metrics.CacheLookup(true)
		return p, nil
	}
	c.metrics.CacheLookup(false)

	// singleflight collapses concurrent misses for the same SKU into one load.
	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Product), nil
}

func (c *ProductCache) Invalidate(ctx context.Context, sku string) error {
	if err := c.client.Del(ctx, cacheKey(sku)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", sku, err)
	}
	return nil
}

func (c *ProductCache) get(ctx context.Context, key string) (*core.Product, bool) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var p core.Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (c *ProductCache) set(ctx context.Context, key string, p *core.Product) {
	payload, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("failed to encode product for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
