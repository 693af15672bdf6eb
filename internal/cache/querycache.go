package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueryCache is a read-through cache for list queries, keyed by entity. Every
// mutation invalidates its entity's keys, so staleness is bounded by the time
// between invalidation and the next read ("mutate, then re-fetch").
type QueryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQueryCache creates a QueryCache with the given TTL.
func NewQueryCache(rdb *redis.Client, ttl time.Duration) *QueryCache {
	return &QueryCache{rdb: rdb, ttl: ttl}
}

func (c *QueryCache) key(entity, variant string) string {
	return fmt.Sprintf("querycache:%s:%s", entity, variant)
}

// Get unmarshals the cached value for (entity, variant) into dest.
// Returns false on a miss or any cache error; cache errors never fail a read.
func (c *QueryCache) Get(ctx context.Context, entity, variant string, dest interface{}) bool {
	data, err := c.rdb.Get(ctx, c.key(entity, variant)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false
	}
	return true
}

// Set stores the value for (entity, variant), best effort.
func (c *QueryCache) Set(ctx context.Context, entity, variant string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(entity, variant), data, c.ttl).Err()
}

// Invalidate drops every cached variant of one entity.
func (c *QueryCache) Invalidate(ctx context.Context, entity string) {
	pattern := c.key(entity, "*")
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		_ = c.rdb.Del(ctx, iter.Val()).Err()
	}
}
