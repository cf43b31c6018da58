// Package detail fetches single catalog records for the detail view, with a
// bounded linear retry.
package detail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/Sternrassler/catalog-sync/pkg/client"
	"github.com/Sternrassler/catalog-sync/pkg/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for detail fetches.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_detail_retries_total",
		Help: "Detail fetch retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_detail_retry_exhausted_total",
		Help: "Detail fetches that failed after every attempt",
	})
)

var (
	// ErrNotFound is returned when the record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrRetryExhausted wraps the last error once every attempt failed.
	ErrRetryExhausted = errors.New("detail retry attempts exhausted")
)

// RecordFetcher fetches one record. *client.Client implements it.
type RecordFetcher interface {
	FetchRecord(ctx context.Context, idOrName string) (catalog.Record, error)
}

// RetryConfig holds the detail retry policy.
type RetryConfig struct {
	// MaxAttempts includes the initial request.
	MaxAttempts int

	// Step is multiplied by the attempt number to get the pause after that
	// attempt fails.
	Step time.Duration
}

// DefaultRetryConfig returns 3 attempts with pauses of 2s then 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Step:        2 * time.Second,
	}
}

// Backoff returns the pause after the given failed attempt (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * c.Step
}

// Fetcher retrieves detail records.
type Fetcher struct {
	records RecordFetcher
	retry   RetryConfig
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewFetcher creates a Fetcher. A nil clock selects the wall clock.
func NewFetcher(records RecordFetcher, retry RetryConfig, clk clock.Clock) *Fetcher {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Fetcher{
		records: records,
		retry:   retry,
		clock:   clk,
		logger:  log.With().Str("component", "detail").Logger(),
	}
}

// Get fetches the record identified by idOrName. A 404 returns ErrNotFound
// immediately; other client errors are not retried either.
func (f *Fetcher) Get(ctx context.Context, idOrName string) (catalog.Record, error) {
	var lastErr error

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		record, err := f.records.FetchRecord(ctx, idOrName)
		if err == nil {
			if attempt > 1 {
				f.logger.Info().
					Str("record", idOrName).
					Int("attempt", attempt).
					Msg("Detail fetch succeeded after retry")
			}
			return record, nil
		}
		lastErr = err

		if client.StatusCode(err) == http.StatusNotFound {
			return catalog.Record{}, fmt.Errorf("%w: %s", ErrNotFound, idOrName)
		}
		if !shouldRetry(err) {
			return catalog.Record{}, err
		}
		if attempt >= f.retry.MaxAttempts {
			break
		}

		class := errorClass(err)
		retriesTotal.WithLabelValues(class).Inc()
		backoff := f.retry.Backoff(attempt)
		f.logger.Debug().
			Err(err).
			Str("record", idOrName).
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying detail fetch after backoff")

		if !clock.Sleep(f.clock, backoff, ctx.Done()) {
			return catalog.Record{}, ctx.Err()
		}
	}

	retryExhaustedTotal.Inc()
	f.logger.Warn().
		Err(lastErr).
		Str("record", idOrName).
		Int("max_attempts", f.retry.MaxAttempts).
		Msg("Detail retry attempts exhausted")

	return catalog.Record{}, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, f.retry.MaxAttempts, lastErr)
}

// shouldRetry retries transport failures, server errors, rate limiting and
// malformed bodies. Other 4xx responses will not change on retry.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *client.FetchError
	if errors.As(err, &fe) {
		return fe.ErrorClass != client.ErrorClassClient
	}
	return true
}

func errorClass(err error) string {
	var fe *client.FetchError
	if errors.As(err, &fe) {
		return string(fe.ErrorClass)
	}
	return "decode"
}
