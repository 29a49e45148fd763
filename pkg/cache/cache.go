package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/raywall/docstore-toolkit/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache stores serialized query results in Redis. When no Redis address
// is configured every operation is a no-op, so callers never branch on
// cache availability.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// New builds the cache from configuration. A missing address yields a
// disabled cache, not an error.
func New(cfg config.RedisConfig, log zerolog.Logger) *Cache {
	c := &Cache{
		ttl: cfg.CacheTTL,
		log: log.With().Str("component", "cache").Logger(),
	}
	if cfg.Addr == "" {
		return c
	}
	c.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return c
}

// Enabled reports whether a Redis backend is configured.
func (c *Cache) Enabled() bool {
	return c.client != nil
}

// Key derives a stable cache key from an operation name and its
// parameters. Parameters are serialized to JSON and hashed, so any
// JSON-encodable value works.
func Key(operation string, params interface{}) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(time.Now().String()) // never collide on marshal failure
	}
	sum := sha1.Sum(append([]byte(operation+":"), raw...))
	return "docstore:" + operation + ":" + hex.EncodeToString(sum[:])
}

// Get unmarshals the cached value for key into out. The bool reports
// whether a usable entry was found; cache errors degrade to a miss.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) bool {
	if c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupted")
		return false
	}
	return true
}

// Set stores value under key with the configured TTL. Failures are
// logged and otherwise ignored.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache value not serializable")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate removes every entry of the given operations. Called after
// writes so stale counts and statistics are not served.
func (c *Cache) Invalidate(ctx context.Context, operations ...string) {
	if c.client == nil {
		return
	}
	for _, op := range operations {
		pattern := "docstore:" + op + ":*"
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				c.log.Warn().Err(err).Str("key", iter.Val()).Msg("cache invalidation failed")
			}
		}
		if err := iter.Err(); err != nil {
			c.log.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
		}
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
