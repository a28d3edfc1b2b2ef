package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/etl-service/internal/model"
)

// PageKey identifies one page of one search.
type PageKey struct {
	Country string
	What    string
	Where   string
	Page    int
}

// PageCache stores fetched pages so that a retried task does not hit the API again.
type PageCache interface {
	Get(ctx context.Context, key PageKey) ([]model.RawListing, bool)
	Set(ctx context.Context, key PageKey, listings []model.RawListing) error
}

// RedisPageCache is a PageCache backed by Redis string keys with a TTL.
type RedisPageCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPageCache wraps an already connected client.
func NewRedisPageCache(rdb *redis.Client, ttl time.Duration) *RedisPageCache {
	return &RedisPageCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached page, or false on a miss or any Redis/decoding error.
func (c *RedisPageCache) Get(ctx context.Context, key PageKey) ([]model.RawListing, bool) {
	data, err := c.rdb.Get(ctx, key.redisKey()).Bytes()
	if err != nil {
		return nil, false
	}
	var listings []model.RawListing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, false
	}
	return listings, true
}

// Set stores a page with the configured TTL.
func (c *RedisPageCache) Set(ctx context.Context, key PageKey, listings []model.RawListing) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	return c.rdb.Set(ctx, key.redisKey(), data, c.ttl).Err()
}

func (k PageKey) redisKey() string {
	raw := strings.ToLower(fmt.Sprintf("%s:%s:%s:%d", k.Country, k.What, k.Where, k.Page))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("jobmate:etl:adzuna:%x", hash[:8])
}
