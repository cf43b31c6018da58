// Package cache keeps catalog responses in Redis so that re-opening a
// session, or paging back over already seen offsets after a page size
// change, costs a conditional request instead of a full download.
//
// # Basic Usage
//
//	manager := cache.NewManager(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
//	key := cache.Key{
//		Path:  "/pokemons",
//		Query: url.Values{"limit": {"50"}, "offset": {"100"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the server
//	}
//
// # Conditional Requests
//
// Entries remember the ETag and Last-Modified validators of the response.
// ShouldRevalidate and AddConditionalHeaders turn a cached entry into an
// If-None-Match / If-Modified-Since request; a 304 answer is then served from
// the entry and its lifetime is extended with RefreshTTL.
//
// # Lifetime
//
// An entry lives as long as the response's Cache-Control max-age or Expires
// header allows, DefaultTTL when neither is present. Responses marked
// no-store are never cached.
//
// # Metrics
//
//   - catalog_cache_hits_total
//   - catalog_cache_misses_total
//   - catalog_cache_stored_bytes
//   - catalog_cache_not_modified_total
//   - catalog_cache_conditional_requests_total
//   - catalog_cache_errors_total{operation}
package cache
