package cache

import (
	"context"
	"fmt"
	"time"

	"sportschatplus/ingestion/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RedisCache remembers which teams are already stored so repeated
// existence checks skip the document store
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg Config, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func teamKey(sport, name string) string {
	return fmt.Sprintf("teams:%s:%s", sport, name)
}

// TeamKnown reports whether the team was recently seen in the store.
// Redis errors count as a miss.
func (c *RedisCache) TeamKnown(ctx context.Context, sport, name string) bool {
	n, err := c.client.Exists(ctx, teamKey(sport, name)).Result()
	if err != nil {
		log.Debug().Err(err).Str("team", name).Msg("Team cache lookup failed")
		metrics.RecordError("cache", "exists")
		metrics.RecordCacheMiss()
		return false
	}
	if n == 0 {
		metrics.RecordCacheMiss()
		return false
	}
	metrics.RecordCacheHit()
	return true
}

// RememberTeam marks the team as stored
func (c *RedisCache) RememberTeam(ctx context.Context, sport, name string) {
	if err := c.client.Set(ctx, teamKey(sport, name), name, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("team", name).Msg("Team cache write failed")
		metrics.RecordError("cache", "set")
	}
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
