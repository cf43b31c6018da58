package pagination

import (
	"sync"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/clock"
)

// DefaultRecoveryDelay is the pause between a failed fetch and automatic
// recovery.
const DefaultRecoveryDelay = 5 * time.Second

// RecoveryPolicy arms at most one delayed recovery at a time. Scheduling
// again or cancelling supersedes the armed recovery, and a superseded
// callback never runs even if its timer had already fired.
type RecoveryPolicy struct {
	delay time.Duration
	clock clock.Clock

	mu         sync.Mutex
	timer      clock.Timer
	generation uint64
}

// NewRecoveryPolicy returns a policy with the given delay. A non-positive
// delay falls back to DefaultRecoveryDelay.
func NewRecoveryPolicy(delay time.Duration, clk clock.Clock) *RecoveryPolicy {
	if delay <= 0 {
		delay = DefaultRecoveryDelay
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &RecoveryPolicy{delay: delay, clock: clk}
}

// Delay returns the recovery delay.
func (p *RecoveryPolicy) Delay() time.Duration {
	return p.delay
}

// Schedule arms fn to run once after the delay, superseding any armed
// recovery.
func (p *RecoveryPolicy) Schedule(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	gen := p.generation
	p.timer = p.clock.AfterFunc(p.delay, func() {
		p.mu.Lock()
		if gen != p.generation {
			p.mu.Unlock()
			return
		}
		p.generation++
		p.timer = nil
		p.mu.Unlock()

		fn()
	})
}

// Cancel disarms the pending recovery. It reports whether one was armed.
func (p *RecoveryPolicy) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	armed := p.timer != nil
	p.stopLocked()
	return armed
}

// Pending reports whether a recovery is armed.
func (p *RecoveryPolicy) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

func (p *RecoveryPolicy) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.generation++
}
