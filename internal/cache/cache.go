// Package cache provides the key-value cache boundary for Agent Memz.
//
// The engine treats the cache as a pure performance layer: every cached
// operation has a live fallback path, so cache failures degrade latency but
// never correctness. Callers are expected to swallow ErrUnavailable after
// logging it.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the key was not present (or had expired).
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnavailable indicates the cache backend could not be reached or
	// failed to serve the request. Callers must degrade gracefully.
	ErrUnavailable = errors.New("cache unavailable")
)

// Cache is the key-value store boundary used by the memory engine.
// Values are binary-safe; every write carries a per-key TTL. Writes to
// distinct keys are independent; no cross-key locking is implied.
type Cache interface {
	// Get returns the value for key, ErrCacheMiss when absent or expired,
	// or an error wrapping ErrUnavailable on backend failure.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value under key with the given expiry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Increment atomically adds delta to the integer stored at key and
	// returns the new value. Missing keys start at zero.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// HSet stores the given hash fields under key.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGetAll returns all hash fields stored under key. A missing key
	// yields an empty map, not an error.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Close releases the underlying connection resources.
	Close() error
}
