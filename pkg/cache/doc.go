// Package cache provides the optional Redis result cache for report
// endpoints.
//
// The upstream service exposes no caching headers, so entries live for a
// fixed TTL chosen by the operator (RESULT_CACHE_TTL). With no Redis
// configured the API runs without a cache and every request reaches the
// upstream service.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint: "/api/presupuesto-detalle",
//		Query:    r.URL.Query(),
//	}
//
//	var payload Response
//	if err := manager.GetJSON(ctx, key, &payload); err == cache.ErrCacheMiss {
//		// Cache miss - fetch from upstream
//		payload = build()
//		_ = manager.SetJSON(ctx, key, payload, 5*time.Minute)
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - presupuesto_cache_hits_total - Cache hits
//   - presupuesto_cache_misses_total - Cache misses
//   - presupuesto_cache_errors_total{operation} - Cache operation errors
package cache
