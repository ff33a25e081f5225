// Package cache stores complete fetch result sets in Redis.
//
// A cached entry holds the decoded values of one query over one normalized region, in
// partition order (ascending x, then y, then z), together with its expiry time. Entries
// are all-or-nothing: an entry whose value count does not match the region volume is
// rejected as ErrInvalidEntry, so the cache can never produce a partial result set.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.KeyFor[int]("world.getBlock", region)
//	ids, err := cache.Get[int](ctx, manager, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the server, then:
//		_ = cache.Set(ctx, manager, key, ids, 30*time.Second)
//	}
//
// # Staleness
//
// The world changes while players build, so cached regions go stale. Keep TTLs short
// and call Purge after placing blocks through another connection.
//
// # Metrics
//
//   - mcpi_cache_hits_total - Cache hits
//   - mcpi_cache_misses_total - Cache misses
//   - mcpi_cache_size_bytes - Bytes written to the cache
//   - mcpi_cache_errors_total{operation} - Cache operation errors
package cache
