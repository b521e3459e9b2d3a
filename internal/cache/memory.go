package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Ensure *MemoryCache implements Cache at compile time.
var _ Cache = (*MemoryCache)(nil)

// MemoryCache is an in-process Cache implementation with passive TTL expiry.
// It backs hermetic tests and single-node deployments that run without Redis.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	hashes  map[string]hashEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type hashEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		hashes:  make(map[string]hashEntry),
	}
}

func (e memoryEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func (e hashEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// Get returns the value for key or ErrCacheMiss when absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired() {
		return nil, ErrCacheMiss
	}

	// Return a copy so callers cannot mutate the cached value.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// SetWithTTL stores value under key. A zero ttl means no expiry.
func (c *MemoryCache) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Increment atomically adds delta to the counter at key. An existing key
// keeps its TTL, matching Redis INCRBY; a new key has no expiry.
func (c *MemoryCache) Increment(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	var expiresAt time.Time
	if entry, ok := c.entries[key]; ok && !entry.expired() {
		current, _ = strconv.ParseInt(string(entry.value), 10, 64)
		expiresAt = entry.expiresAt
	}
	current += delta
	c.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(current, 10)), expiresAt: expiresAt}
	return current, nil
}

// Expire resets the TTL of an existing key.
func (c *MemoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && !entry.expired() {
		entry.expiresAt = time.Now().Add(ttl)
		c.entries[key] = entry
	}
	if entry, ok := c.hashes[key]; ok && !entry.expired() {
		entry.expiresAt = time.Now().Add(ttl)
		c.hashes[key] = entry
	}
	return nil
}

// HSet stores the given hash fields under key, merging with existing fields.
func (c *MemoryCache) HSet(_ context.Context, key string, fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.hashes[key]
	if !ok || entry.expired() {
		entry = hashEntry{fields: make(map[string]string)}
	}
	for k, v := range fields {
		entry.fields[k] = v
	}
	c.hashes[key] = entry
	return nil
}

// HGetAll returns a copy of all hash fields stored under key.
func (c *MemoryCache) HGetAll(_ context.Context, key string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.hashes[key]
	if !ok || entry.expired() {
		return map[string]string{}, nil
	}

	out := make(map[string]string, len(entry.fields))
	for k, v := range entry.fields {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op for the in-process cache.
func (c *MemoryCache) Close() error {
	return nil
}
