package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"authguard/pkg/behavior"
)

// BaselineCache is a best-effort Redis read-through cache for identity
// baselines. All methods are safe on a nil receiver, so the service degrades
// to direct Postgres reads when Redis is not configured or unreachable.
type BaselineCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBaselineCache connects to Redis at addr. An empty addr or a failed ping
// returns nil (cache disabled).
func NewBaselineCache(addr, password string, ttl time.Duration) *BaselineCache {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, baseline cache disabled: %v", err)
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BaselineCache{rdb: rdb, ttl: ttl}
}

func cacheKey(identity string) string {
	return "authguard:baseline:" + identity
}

func (c *BaselineCache) Get(ctx context.Context, identity string) (*behavior.Baseline, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, cacheKey(identity)).Bytes()
	if err != nil {
		return nil, false
	}
	var b behavior.Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false
	}
	return &b, true
}

func (c *BaselineCache) Set(ctx context.Context, identity string, b *behavior.Baseline) {
	if c == nil || b == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(identity), data, c.ttl).Err(); err != nil {
		log.Printf("baseline cache set %s: %v", identity, err)
	}
}

func (c *BaselineCache) Delete(ctx context.Context, identity string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey(identity)).Err(); err != nil {
		log.Printf("baseline cache delete %s: %v", identity, err)
	}
}
