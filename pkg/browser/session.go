// Package browser ties one pagination controller, one scroll trigger and
// the filter criteria into a browsing session.
package browser

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/Sternrassler/catalog-sync/pkg/clock"
	"github.com/Sternrassler/catalog-sync/pkg/filter"
	"github.com/Sternrassler/catalog-sync/pkg/pagination"
	"github.com/Sternrassler/catalog-sync/pkg/scroll"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "catalog_sessions_active",
	Help: "Number of open browsing sessions",
})

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrNothingToRetry is returned by Retry outside the error state.
	ErrNothingToRetry = errors.New("no failed fetch to retry")

	// ErrInvalidPageSize is returned by SetPageSize for a size not in PageSizes.
	ErrInvalidPageSize = errors.New("invalid page size")
)

// PageSizes are the page sizes offered to users.
var PageSizes = []int{10, 25, 50, 100}

// ValidPageSize reports whether limit is one of PageSizes.
func ValidPageSize(limit int) bool {
	return slices.Contains(PageSizes, limit)
}

// suggestionCount is how many "did you mean" names an empty view offers.
const suggestionCount = 3

// Config holds session configuration.
type Config struct {
	PageSize      int
	RecoveryDelay time.Duration
	Margin        float64
	Debounce      time.Duration

	// Clock drives the debounce and recovery timers.
	Clock clock.Clock
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:      pagination.DefaultLimit,
		RecoveryDelay: pagination.DefaultRecoveryDelay,
		Margin:        scroll.DefaultMargin,
		Debounce:      scroll.DefaultDebounce,
	}
}

// Status is the session state presented to the user.
type Status struct {
	SessionID       string `json:"session_id"`
	State           string `json:"state"`
	Limit           int    `json:"limit"`
	Offset          int    `json:"offset"`
	HasMore         bool   `json:"has_more"`
	TotalCount      *int   `json:"total_count,omitempty"`
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
	Size            int    `json:"size"`
	Epoch           uint64 `json:"epoch"`
	SentinelVisible bool   `json:"sentinel_visible"`
}

// View is the filtered view with the status it was computed under.
type View struct {
	Records     []catalog.Record `json:"records"`
	Criteria    filter.Criteria  `json:"criteria"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Status      Status           `json:"status"`
}

// Session is one user's browsing state. Every method is safe for concurrent
// use.
type Session struct {
	id      string
	logger  zerolog.Logger
	ctrl    *pagination.Controller
	trigger *scroll.Trigger

	mu       sync.Mutex
	criteria filter.Criteria
	closed   bool
}

// New creates a session over fetcher, watching obs for the sentinel. Call
// Open to load the first page and Close to release it.
func New(fetcher pagination.PageFetcher, obs scroll.Observer, cfg Config) (*Session, error) {
	if obs == nil {
		return nil, errors.New("observer is required")
	}

	id := uuid.NewString()
	s := &Session{
		id:     id,
		logger: log.With().Str("component", "browser").Str("session_id", id).Logger(),
	}

	ctrlLogger := log.With().Str("component", "pagination").Str("session_id", id).Logger()
	ctrl, err := pagination.NewController(fetcher, pagination.Config{
		Limit:         cfg.PageSize,
		RecoveryDelay: cfg.RecoveryDelay,
		Clock:         cfg.Clock,
		OnChange:      s.onChange,
		Logger:        &ctrlLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}
	s.ctrl = ctrl

	scrollLogger := log.With().Str("component", "scroll").Str("session_id", id).Logger()
	s.trigger = scroll.NewTrigger(obs, ctrl.ShouldFetchMore, s.requestMore, scroll.Config{
		Margin:   cfg.Margin,
		Debounce: cfg.Debounce,
		Clock:    cfg.Clock,
		Logger:   &scrollLogger,
	})

	sessionsActive.Inc()
	s.logger.Info().Int("limit", ctrl.Snapshot().Limit).Msg("Session created")
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Open loads the first page and waits for it to be applied. A failed fetch
// is not an error here; it shows up in Status.
func (s *Session) Open(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.wait(ctx, s.ctrl.Load)
}

// SetSearch changes the name filter.
func (s *Session) SetSearch(term string) {
	s.mu.Lock()
	s.criteria.Search = term
	criteria := s.criteria
	s.mu.Unlock()

	s.ctrl.SetCriteria(criteria)
}

// SetCategory changes the category filter. Empty or "all" clears it.
func (s *Session) SetCategory(category string) {
	s.mu.Lock()
	s.criteria.Category = category
	criteria := s.criteria
	s.mu.Unlock()

	s.ctrl.SetCriteria(criteria)
}

// SetFilters replaces both filters at once.
func (s *Session) SetFilters(criteria filter.Criteria) {
	s.mu.Lock()
	s.criteria = criteria
	s.mu.Unlock()

	s.ctrl.SetCriteria(criteria)
}

// SetPageSize discards the collection, starts a new epoch with limit and
// waits for its first page. limit must be one of PageSizes.
func (s *Session) SetPageSize(ctx context.Context, limit int) error {
	if s.isClosed() {
		return ErrClosed
	}
	if !ValidPageSize(limit) {
		return fmt.Errorf("%w: %d (allowed %v)", ErrInvalidPageSize, limit, PageSizes)
	}
	if err := s.ctrl.Reset(limit); err != nil {
		return err
	}
	s.logger.Info().Int("limit", limit).Msg("Page size changed")
	return s.wait(ctx, s.ctrl.Load)
}

// Retry refetches the failed page now and waits for the result.
func (s *Session) Retry(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	done, started := s.ctrl.Retry()
	if !started {
		return ErrNothingToRetry
	}
	return waitDone(ctx, done)
}

// View returns the filtered view of the collection.
func (s *Session) View() View {
	s.mu.Lock()
	criteria := s.criteria.Normalize()
	s.mu.Unlock()

	master := s.ctrl.Records()
	view := View{
		Records:  filter.Apply(master, criteria),
		Criteria: criteria,
		Status:   s.Status(),
	}
	if len(view.Records) == 0 && criteria.Search != "" {
		view.Suggestions = filter.Suggest(master, criteria.Search, suggestionCount)
	}
	return view
}

// Status returns the pagination status.
func (s *Session) Status() Status {
	snap := s.ctrl.Snapshot()
	return Status{
		SessionID:       s.id,
		State:           string(snap.State),
		Limit:           snap.Limit,
		Offset:          snap.Offset,
		HasMore:         snap.HasMore,
		TotalCount:      snap.TotalCount,
		Loading:         snap.Loading,
		Error:           snap.ErrorMessage(),
		Size:            snap.Size,
		Epoch:           snap.Epoch,
		SentinelVisible: s.trigger.Visible(),
	}
}

// Facets counts the collection's records per category.
func (s *Session) Facets() []filter.Facet {
	return filter.Facets(s.ctrl.Records())
}

// Close deregisters the observer, stops every timer and cancels the fetch
// in flight. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.trigger.Close()
	s.ctrl.Close()
	sessionsActive.Dec()
	s.logger.Info().Msg("Session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) requestMore() {
	s.ctrl.Trigger()
}

func (s *Session) onChange(snap pagination.Snapshot) {
	if snap.LastError != nil {
		s.logger.Warn().
			Str("state", string(snap.State)).
			Int("offset", snap.Offset).
			Str("error", snap.ErrorMessage()).
			Msg("Loading paused")
	}

	// A landed page or a recovery may leave the sentinel on screen; observers
	// will not report it again.
	if snap.State == pagination.StateIdle && s.trigger != nil {
		s.trigger.Recheck()
	}
}

func (s *Session) wait(ctx context.Context, start func() (<-chan struct{}, bool)) error {
	done, started := start()
	if !started {
		return nil
	}
	return waitDone(ctx, done)
}

func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
