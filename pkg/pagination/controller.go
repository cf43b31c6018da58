package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/Sternrassler/catalog-sync/pkg/clock"
	"github.com/Sternrassler/catalog-sync/pkg/filter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for the pagination controller.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pagination_fetches_total",
		Help: "Completed page fetches by outcome (advanced, exhausted, error)",
	}, []string{"outcome"})

	staleResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pagination_stale_results_total",
		Help: "Page results discarded because a reset started a new epoch while they were in flight",
	})

	resetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pagination_resets_total",
		Help: "Total number of pagination resets",
	})

	recoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pagination_recoveries_total",
		Help: "Recoveries from the error state by kind (automatic, manual)",
	}, []string{"kind"})

	masterSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_pagination_master_size",
		Help: "Number of records in the most recently updated master collection",
	})
)

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("pagination controller closed")

// DefaultLimit is the default page size.
const DefaultLimit = 50

// State is the controller's state machine position.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateExhausted State = "exhausted"
	StateError     State = "error"
)

// PageFetcher fetches one page of the remote list.
type PageFetcher interface {
	FetchPage(ctx context.Context, limit, offset int) (catalog.Page, error)
}

// Config holds controller configuration.
type Config struct {
	// Limit is the initial page size.
	Limit int

	// RecoveryDelay is the pause before leaving the error state on its own.
	RecoveryDelay time.Duration

	// Clock drives the recovery timer. Defaults to the wall clock.
	Clock clock.Clock

	// OnChange is called after every transition, outside the controller's
	// lock, with the resulting snapshot.
	OnChange func(Snapshot)

	// Logger defaults to the global logger tagged with the component name.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Limit:         DefaultLimit,
		RecoveryDelay: DefaultRecoveryDelay,
	}
}

// Snapshot is a consistent copy of the pagination state.
type Snapshot struct {
	State      State
	Limit      int
	Offset     int
	HasMore    bool
	TotalCount *int
	Loading    bool
	LastError  error
	Epoch      uint64
	Size       int
	Criteria   filter.Criteria
}

// ErrorMessage returns a human-readable description of LastError, or "".
func (s Snapshot) ErrorMessage() string {
	if s.LastError == nil {
		return ""
	}
	return fmt.Sprintf("Could not load more records: %v", s.LastError)
}

// Controller owns the master collection and the pagination state.
type Controller struct {
	fetcher  PageFetcher
	recovery *RecoveryPolicy
	onChange func(Snapshot)
	logger   zerolog.Logger

	// base is cancelled by Close; each epoch derives its own context from it.
	base       context.Context
	cancelBase context.CancelFunc

	mu          sync.Mutex
	state       State
	limit       int
	offset      int
	hasMore     bool
	totalCount  *int
	lastError   error
	master      []catalog.Record
	criteria    filter.Criteria
	epoch       uint64
	cancelFetch context.CancelFunc
	closed      bool

	wg sync.WaitGroup
}

// NewController creates a controller in the Idle state with offset 0.
func NewController(fetcher PageFetcher, cfg Config) (*Controller, error) {
	if fetcher == nil {
		return nil, errors.New("page fetcher is required")
	}
	if cfg.Limit == 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must be positive (got %d)", cfg.Limit)
	}

	logger := log.With().Str("component", "pagination").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	base, cancel := context.WithCancel(context.Background())

	return &Controller{
		fetcher:    fetcher,
		recovery:   NewRecoveryPolicy(cfg.RecoveryDelay, cfg.Clock),
		onChange:   cfg.OnChange,
		logger:     logger,
		base:       base,
		cancelBase: cancel,
		state:      StateIdle,
		limit:      cfg.Limit,
		hasMore:    true,
	}, nil
}

// ShouldFetchMore reports whether an automatic fetch may start now: the
// controller is idle with more data available, no filter is active, and the
// server-reported total (when known) has not been reached.
func (c *Controller) ShouldFetchMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shouldFetchMoreLocked()
}

func (c *Controller) shouldFetchMoreLocked() bool {
	if c.closed || c.state != StateIdle || !c.hasMore {
		return false
	}
	if c.criteria.Active() {
		return false
	}
	return c.totalCount == nil || len(c.master) < *c.totalCount
}

// Trigger starts fetching the next page when ShouldFetchMore holds. The
// returned channel is closed once the result has been applied or
// discarded; started is false when no fetch was issued.
func (c *Controller) Trigger() (done <-chan struct{}, started bool) {
	c.mu.Lock()
	if !c.shouldFetchMoreLocked() {
		c.mu.Unlock()
		return nil, false
	}
	done = c.startFetchLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return done, true
}

// Load starts a fetch whenever the controller is idle with more data,
// regardless of the filter. Sessions use it for the first page of an epoch so
// an active filter never leaves the collection empty.
func (c *Controller) Load() (done <-chan struct{}, started bool) {
	c.mu.Lock()
	if c.closed || c.state != StateIdle || !c.hasMore {
		c.mu.Unlock()
		return nil, false
	}
	done = c.startFetchLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return done, true
}

// Retry leaves the error state immediately and refetches the failed page,
// superseding the scheduled automatic recovery.
func (c *Controller) Retry() (done <-chan struct{}, started bool) {
	c.mu.Lock()
	if c.closed || c.state != StateError {
		c.mu.Unlock()
		return nil, false
	}
	c.recovery.Cancel()
	recoveriesTotal.WithLabelValues("manual").Inc()
	c.logger.Info().
		Int("offset", c.offset).
		Uint64("epoch", c.epoch).
		Msg("Manual retry")

	done = c.startFetchLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return done, true
}

// Reset starts a new epoch with the given page size: offset 0, hasMore,
// an empty master collection. A fetch in flight is cancelled and its result
// will be discarded. A fetcher that ignores cancellation may still be running
// while the new epoch's first fetch starts; only one of them can change
// state.
func (c *Controller) Reset(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive (got %d)", limit)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	c.epoch++
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.recovery.Cancel()

	c.state = StateIdle
	c.limit = limit
	c.offset = 0
	c.hasMore = true
	c.totalCount = nil
	c.lastError = nil
	c.master = nil

	resetsTotal.Inc()
	masterSize.Set(0)
	c.logger.Info().
		Int("limit", limit).
		Uint64("epoch", c.epoch).
		Msg("Pagination reset")

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// SetCriteria records the active filter. While any filter is active no
// automatic fetch starts.
func (c *Controller) SetCriteria(criteria filter.Criteria) {
	c.mu.Lock()
	c.criteria = criteria.Normalize()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// Records returns a copy of the master collection.
func (c *Controller) Records() []catalog.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]catalog.Record(nil), c.master...)
}

// Snapshot returns the current pagination state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close cancels any fetch in flight and the pending recovery, then waits for
// the fetch goroutine to return. Further operations are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.epoch++
	c.cancelFetch = nil
	c.recovery.Cancel()
	c.mu.Unlock()

	c.cancelBase()
	c.wg.Wait()
}

// startFetchLocked must be called with c.mu held.
func (c *Controller) startFetchLocked() <-chan struct{} {
	c.state = StateFetching
	c.lastError = nil

	ctx, cancel := context.WithCancel(c.base)
	c.cancelFetch = cancel

	epoch, limit, offset := c.epoch, c.limit, c.offset
	done := make(chan struct{})

	c.logger.Debug().
		Int("limit", limit).
		Int("offset", offset).
		Uint64("epoch", epoch).
		Msg("Fetching page")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		defer cancel()

		start := time.Now()
		page, err := c.fetcher.FetchPage(ctx, limit, offset)
		c.complete(epoch, limit, offset, page, err, time.Since(start))
	}()

	return done
}

func (c *Controller) complete(epoch uint64, limit, offset int, page catalog.Page, err error, took time.Duration) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		staleResultsTotal.Inc()
		c.logger.Debug().
			Uint64("epoch", epoch).
			Int("offset", offset).
			Msg("Discarding result from a previous epoch")
		return
	}
	c.cancelFetch = nil

	if err != nil {
		c.state = StateError
		c.lastError = err
		fetchesTotal.WithLabelValues("error").Inc()
		c.recovery.Schedule(func() { c.recover(epoch) })

		c.logger.Warn().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Dur("recovery_delay", c.recovery.Delay()).
			Msg("Page fetch failed")
	} else {
		c.apply(limit, page)

		c.logger.Debug().
			Int("offset", offset).
			Int("records", len(page.Records)).
			Int("size", len(c.master)).
			Str("state", string(c.state)).
			Dur("duration", took).
			Msg("Page applied")
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// apply must be called with c.mu held.
func (c *Controller) apply(limit int, page catalog.Page) {
	if page.TotalCount != nil {
		total := *page.TotalCount
		c.totalCount = &total
	}

	merged, inserted := catalog.Merge(c.master, page.Records)
	c.master = merged
	masterSize.Set(float64(len(merged)))

	exhausted := len(page.Records) < limit ||
		inserted == 0 ||
		(c.totalCount != nil && len(c.master) >= *c.totalCount)

	if exhausted {
		c.hasMore = false
		c.state = StateExhausted
		fetchesTotal.WithLabelValues("exhausted").Inc()
		c.logger.Info().
			Int("size", len(c.master)).
			Int("inserted", inserted).
			Bool("unrecognized", page.Unrecognized).
			Msg("Catalog exhausted")
		return
	}

	c.offset += limit
	c.state = StateIdle
	fetchesTotal.WithLabelValues("advanced").Inc()
}

func (c *Controller) recover(epoch uint64) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch || c.state != StateError {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.lastError = nil
	recoveriesTotal.WithLabelValues("automatic").Inc()
	c.logger.Info().
		Int("offset", c.offset).
		Msg("Recovered from fetch error")

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// snapshotLocked must be called with c.mu held.
func (c *Controller) snapshotLocked() Snapshot {
	var total *int
	if c.totalCount != nil {
		t := *c.totalCount
		total = &t
	}
	return Snapshot{
		State:      c.state,
		Limit:      c.limit,
		Offset:     c.offset,
		HasMore:    c.hasMore,
		TotalCount: total,
		Loading:    c.state == StateFetching,
		LastError:  c.lastError,
		Epoch:      c.epoch,
		Size:       len(c.master),
		Criteria:   c.criteria,
	}
}

func (c *Controller) notify(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
