// Package client is the HTTP client for the remote catalog: request
// execution with a rate limit gate and an optional Redis response cache,
// plus the list (FetchPage) and detail (FetchRecord) calls built on it.
//
// The client never retries. Recovery policy belongs to its callers: the
// pagination controller for pages, the detail fetcher for single records.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/cache"
	"github.com/Sternrassler/catalog-sync/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for catalog requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog request errors by class",
	}, []string{"class"})

	unrecognizedPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_unrecognized_pages_total",
		Help: "Total list responses whose shape was not recognized and were treated as empty",
	})
)

// DefaultListPath is the list endpoint of the reference deployment.
const DefaultListPath = "/pokemons"

// Client talks to the remote catalog.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the catalog origin, e.g. "https://nestjs-pokedex-api.vercel.app".
	BaseURL string

	// ListPath is the list endpoint; single records live at ListPath/{idOrName}.
	ListPath string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each request.
	Timeout time.Duration

	// Redis enables the response cache and shares rate limit state. Optional.
	Redis *redis.Client
}

// DefaultConfig returns a configuration for the given origin.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		ListPath:  DefaultListPath,
		UserAgent: "catalog-sync/0.1.0",
		Timeout:   15 * time.Second,
	}
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("base url must be http(s) (got %q)", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.ListPath == "" {
		cfg.ListPath = DefaultListPath
	}
	cfg.ListPath = "/" + strings.Trim(cfg.ListPath, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		config:      cfg,
		logger:      logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}
	return c, nil
}

// Do executes one request through the rate limit gate and the response
// cache. Non-success statuses are returned as responses; only transport
// failures and gate blocks are errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := c.endpointLabel(req.URL.Path)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		return nil, &FetchError{ErrorClass: ErrorClassNetwork, Message: "rate limit check", Err: err}
	}
	if !allowed {
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		return nil, &FetchError{ErrorClass: ErrorClassRateLimit, Message: "blocked locally", Err: ErrRateLimited}
	}

	key := cache.Key{Path: req.URL.Path, Query: req.URL.Query()}
	var cached *cache.Entry
	if c.cache != nil {
		cached, err = c.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if cache.ShouldRevalidate(cached) {
			cache.AddConditionalHeaders(req, cached)
			cache.ConditionalRequests.Inc()
		}
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", req.URL.String()).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Catalog request failed")
		return nil, &FetchError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}

	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		resp.Body.Close()
		cache.NotModified.Inc()
		if err := c.cache.RefreshTTL(ctx, key, cache.Expiry(resp.Header, time.Now())); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache TTL")
		}
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - serving cached response")
		return cache.EntryToResponse(cached, req), nil
	}

	if resp.StatusCode >= 400 {
		errorsTotal.WithLabelValues(string(classifyStatus(resp.StatusCode))).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Catalog request error")
		return resp, nil
	}

	if c.cache != nil && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			return nil, &FetchError{ErrorClass: ErrorClassNetwork, Message: "read response", Err: err}
		}
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// Get performs a GET for path (relative to the base URL) with query.
func (c *Client) Get(ctx context.Context, path string, query string) (*http.Response, error) {
	u := c.config.BaseURL + path
	if query != "" {
		u += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// ListPath returns the configured list endpoint path.
func (c *Client) ListPath() string {
	return c.config.ListPath
}

// endpointLabel keeps metric cardinality bounded: the list endpoint and
// every detail path collapse into two labels.
func (c *Client) endpointLabel(path string) string {
	if strings.TrimRight(path, "/") == c.config.ListPath {
		return "list"
	}
	return "record"
}
