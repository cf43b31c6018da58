package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits counts cache hits.
	Hits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Total number of catalog response cache hits",
	})

	// Misses counts cache misses, including expired entries.
	Misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Total number of catalog response cache misses",
	})

	// StoredBytes counts bytes written to the cache.
	StoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_stored_bytes",
		Help: "Total bytes of catalog responses written to the cache",
	})

	// NotModified counts 304 responses served from the cache.
	NotModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_not_modified_total",
		Help: "Total number of 304 Not Modified responses served from cache",
	})

	// ConditionalRequests counts requests sent with validators.
	ConditionalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// Errors counts cache operation failures by operation.
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)
