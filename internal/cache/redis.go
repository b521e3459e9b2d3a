package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Ensure *RedisCache implements Cache at compile time.
var _ Cache = (*RedisCache)(nil)

// RedisConfig holds connection settings for the Redis cache backend.
type RedisConfig struct {
	Addr     string // host:port (default: localhost:6379)
	Password string
	DB       int
}

// RedisCache implements Cache using a shared Redis connection pool.
// The client is safe for concurrent use; per-key writes are independent.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrUnavailable, cfg.Addr, err)
	}

	return &RedisCache{client: client}, nil
}

// Get returns the value for key or ErrCacheMiss when absent.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return val, nil
}

// SetWithTTL stores value under key with the given expiry.
func (c *RedisCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Increment atomically adds delta to the counter at key.
func (c *RedisCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := c.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: incrby %q: %v", ErrUnavailable, key, err)
	}
	return n, nil
}

// Expire resets the TTL of an existing key.
func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: expire %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// HSet stores the given hash fields under key.
func (c *RedisCache) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	if err := c.client.HSet(ctx, key, args).Err(); err != nil {
		return fmt.Errorf("%w: hset %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// HGetAll returns all hash fields stored under key.
func (c *RedisCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall %q: %v", ErrUnavailable, key, err)
	}
	return fields, nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// HealthCheck pings the Redis backend.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
