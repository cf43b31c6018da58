package pagination

import (
	"testing"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/clock"
)

func TestRecoveryPolicy_RunsAfterDelay(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	p := NewRecoveryPolicy(5*time.Second, clk)

	runs := 0
	p.Schedule(func() { runs++ })

	if !p.Pending() {
		t.Fatal("expected a pending recovery")
	}

	clk.Advance(4999 * time.Millisecond)
	if runs != 0 {
		t.Errorf("recovery ran early: runs = %d", runs)
	}

	clk.Advance(time.Millisecond)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if p.Pending() {
		t.Error("recovery still pending after it ran")
	}
}

func TestRecoveryPolicy_ScheduleSupersedes(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	p := NewRecoveryPolicy(5*time.Second, clk)

	var got []string
	p.Schedule(func() { got = append(got, "first") })
	clk.Advance(3 * time.Second)
	p.Schedule(func() { got = append(got, "second") })

	clk.Advance(3 * time.Second)
	if len(got) != 0 {
		t.Fatalf("superseded recovery ran: %v", got)
	}

	clk.Advance(2 * time.Second)
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("got %v, want [second]", got)
	}
}

func TestRecoveryPolicy_Cancel(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	p := NewRecoveryPolicy(time.Second, clk)

	if p.Cancel() {
		t.Error("Cancel() = true with nothing armed")
	}

	ran := false
	p.Schedule(func() { ran = true })
	if !p.Cancel() {
		t.Error("Cancel() = false with a recovery armed")
	}

	clk.Advance(time.Minute)
	if ran {
		t.Error("cancelled recovery ran")
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clk.Pending())
	}
}

// A callback whose timer already fired but has not yet taken the policy lock
// must observe the cancellation.
func TestRecoveryPolicy_CancelAfterFire(t *testing.T) {
	var fire func()
	clk := &capturingClock{capture: func(f func()) { fire = f }}
	p := NewRecoveryPolicy(time.Second, clk)

	ran := false
	p.Schedule(func() { ran = true })
	p.Cancel()
	fire()

	if ran {
		t.Error("callback body ran after Cancel")
	}
}

func TestRecoveryPolicy_Defaults(t *testing.T) {
	p := NewRecoveryPolicy(0, nil)
	if p.Delay() != DefaultRecoveryDelay {
		t.Errorf("Delay() = %v, want %v", p.Delay(), DefaultRecoveryDelay)
	}
}

type capturingClock struct {
	capture func(func())
}

func (c *capturingClock) Now() time.Time { return time.Time{} }

func (c *capturingClock) AfterFunc(_ time.Duration, f func()) clock.Timer {
	c.capture(f)
	return stopper{}
}

type stopper struct{}

func (stopper) Stop() bool { return true }
