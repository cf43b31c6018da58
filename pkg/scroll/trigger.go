// Package scroll turns sentinel visibility into debounced load requests.
package scroll

import (
	"sync"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMargin is how close (in pixels) the sentinel must come to the
	// viewport to count as visible.
	DefaultMargin = 200

	// DefaultDebounce coalesces bursts of visibility events.
	DefaultDebounce = 300 * time.Millisecond
)

var triggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_scroll_triggers_total",
	Help: "Debounce expiries by result (emitted, suppressed)",
}, []string{"result"})

// Config holds trigger configuration. Zero values select the defaults.
type Config struct {
	Margin   float64
	Debounce time.Duration
	Clock    clock.Clock
	Logger   *zerolog.Logger
}

// Trigger emits a load request when the sentinel has stayed visible for the
// debounce interval and the guard allows loading. It never emits while the
// guard is false.
type Trigger struct {
	guard    func() bool
	emit     func()
	debounce time.Duration
	clock    clock.Clock
	logger   zerolog.Logger
	stop     func()

	mu         sync.Mutex
	visible    bool
	timer      clock.Timer
	generation uint64
	closed     bool
}

// NewTrigger registers with obs. guard is typically the pagination
// controller's ShouldFetchMore and emit its Trigger.
func NewTrigger(obs Observer, guard func() bool, emit func(), cfg Config) *Trigger {
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultMargin
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	logger := log.With().Str("component", "scroll").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	t := &Trigger{
		guard:    guard,
		emit:     emit,
		debounce: cfg.Debounce,
		clock:    cfg.Clock,
		logger:   logger,
	}
	t.stop = obs.Observe(cfg.Margin, t.onEntry)
	return t
}

func (t *Trigger) onEntry(e Entry) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.visible = e.Visible
	if !e.Visible {
		t.disarmLocked()
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if t.guard() {
		t.arm()
	}
}

// Recheck re-arms the debounce when the sentinel is still visible. Observers
// only report changes, so a sentinel that never left the viewport needs this
// after each page lands.
func (t *Trigger) Recheck() {
	t.mu.Lock()
	visible := t.visible && !t.closed
	t.mu.Unlock()

	if visible && t.guard() {
		t.arm()
	}
}

// Visible reports the last known sentinel visibility.
func (t *Trigger) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Close deregisters from the observer and stops the pending timer. It is
// idempotent.
func (t *Trigger) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.disarmLocked()
	t.mu.Unlock()

	t.stop()
}

func (t *Trigger) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.disarmLocked()
	gen := t.generation
	t.timer = t.clock.AfterFunc(t.debounce, func() { t.fire(gen) })
}

func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	visible := t.visible
	t.mu.Unlock()

	if !visible || !t.guard() {
		triggersTotal.WithLabelValues("suppressed").Inc()
		return
	}

	triggersTotal.WithLabelValues("emitted").Inc()
	t.logger.Debug().Msg("Sentinel visible, requesting next page")
	t.emit()
}

// disarmLocked must be called with t.mu held.
func (t *Trigger) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}
