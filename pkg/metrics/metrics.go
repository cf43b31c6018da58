// Package metrics exposes the Prometheus registry used across the module.
// Metrics are declared with promauto in the packages that own them; this
// package documents them and serves the exposition endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registerer. promauto registers every
// metric of this module here.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the Prometheus exposition format for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Catalogue lists every metric name declared by this module.
var Catalogue = []string{
	// pkg/client
	"catalog_requests_total",
	"catalog_request_duration_seconds",
	"catalog_errors_total",
	"catalog_unrecognized_pages_total",

	// pkg/cache
	"catalog_cache_hits_total",
	"catalog_cache_misses_total",
	"catalog_cache_stored_bytes",
	"catalog_cache_not_modified_total",
	"catalog_cache_conditional_requests_total",
	"catalog_cache_errors_total",

	// pkg/ratelimit
	"catalog_rate_limit_remaining",
	"catalog_rate_limit_blocks_total",
	"catalog_rate_limit_throttles_total",

	// pkg/pagination
	"catalog_pagination_fetches_total",
	"catalog_pagination_stale_results_total",
	"catalog_pagination_resets_total",
	"catalog_pagination_recoveries_total",
	"catalog_pagination_master_size",

	// pkg/scroll
	"catalog_scroll_triggers_total",

	// pkg/browser
	"catalog_sessions_active",

	// pkg/detail
	"catalog_detail_retries_total",
	"catalog_detail_retry_exhausted_total",
}

// Example Prometheus Queries:
//
//	# Pages fetched per minute, by outcome
//	sum by (outcome) (rate(catalog_pagination_fetches_total[1m])) * 60
//
//	# Share of page fetches that failed
//	rate(catalog_pagination_fetches_total{outcome="error"}[5m]) /
//	sum(rate(catalog_pagination_fetches_total[5m]))
//
//	# Cache Hit Rate
//	sum(rate(catalog_cache_hits_total[5m])) /
//	(sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//	# P95 Request Latency
//	histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
