package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves the result set cached under key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func Get[T any](ctx context.Context, m *Manager, key Key) (map[world.Coordinate]T, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.WithLabelValues(key.Query).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.WithLabelValues(key.Query).Inc()
		return nil, ErrCacheMiss
	}

	if entry.Query != key.Query || entry.Region().Normalize() != key.Region.Normalize() {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: entry for %s %s stored under %s", ErrInvalidEntry, entry.Query, entry.Region(), cacheKey)
	}

	values, ok := entry.Map()
	if !ok {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %d values for region %s", ErrInvalidEntry, len(entry.Values), entry.Region())
	}

	CacheHits.WithLabelValues(key.Query).Inc()
	return values, nil
}

// Set stores a complete result set with the given TTL. A non-positive TTL stores nothing.
func Set[T any](ctx context.Context, m *Manager, key Key, values map[world.Coordinate]T, ttl time.Duration) error {
	if values == nil {
		return fmt.Errorf("result set cannot be nil")
	}
	if ttl <= 0 {
		return nil
	}

	entry, ok := NewEntry(key.Query, key.Region, values, ttl)
	if !ok {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: result set does not cover region %s", ErrInvalidEntry, key.Region)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Purge removes every cached result set of query, or of all queries when query is empty,
// and returns the number of keys deleted.
func (m *Manager) Purge(ctx context.Context, query string) (int, error) {
	deleted := 0
	iter := m.redis.Scan(ctx, 0, pattern(query), 100).Iterator()
	for iter.Next(ctx) {
		if err := m.redis.Del(ctx, iter.Val()).Err(); err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	return deleted, nil
}
