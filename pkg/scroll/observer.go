package scroll

import (
	"slices"
	"sync"
)

// Entry is one visibility change of the sentinel at the end of the list.
type Entry struct {
	// Visible is true when the sentinel is within the observer's margin of
	// the viewport.
	Visible bool

	// Distance is the sentinel's distance below the viewport edge in pixels,
	// when the source reports one. Zero or negative means on screen.
	Distance float64
}

// Observer watches the sentinel and reports visibility changes. The returned
// stop function deregisters fn and is safe to call more than once.
type Observer interface {
	Observe(margin float64, fn func(Entry)) (stop func())
}

// ManualObserver is an Observer driven by explicit reports, for front ends
// that push viewport events (the HTTP surface) and for tests.
type ManualObserver struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription // registration order
	last   Entry
}

type subscription struct {
	id     int
	margin float64
	fn     func(Entry)
}

// NewManualObserver returns an observer with no subscribers.
func NewManualObserver() *ManualObserver {
	return &ManualObserver{}
}

// Observe implements Observer. No entry is delivered until the next report.
func (o *ManualObserver) Observe(margin float64, fn func(Entry)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs = append(o.subs, subscription{id: id, margin: margin, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			o.subs = slices.DeleteFunc(o.subs, func(s subscription) bool { return s.id == id })
			o.mu.Unlock()
		})
	}
}

// Emit delivers a visibility change to every subscriber in registration
// order.
func (o *ManualObserver) Emit(visible bool) {
	o.deliver(func(subscription) Entry {
		return Entry{Visible: visible}
	})
}

// Report delivers the sentinel's distance below the viewport. Each
// subscriber sees it as visible when the distance is within its margin.
func (o *ManualObserver) Report(distance float64) {
	o.deliver(func(s subscription) Entry {
		return Entry{Visible: distance <= s.margin, Distance: distance}
	})
}

// Last returns the most recently delivered entry as judged against the
// oldest subscriber's margin, or DefaultMargin when there is none.
func (o *ManualObserver) Last() Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Subscribers returns the number of registered callbacks.
func (o *ManualObserver) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

func (o *ManualObserver) deliver(entryFor func(subscription) Entry) {
	o.mu.Lock()
	subs := slices.Clone(o.subs)
	if len(subs) > 0 {
		o.last = entryFor(subs[0])
	} else {
		o.last = entryFor(subscription{margin: DefaultMargin})
	}
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(entryFor(s))
	}
}
