package shelf

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by the time package.
var RealClock Clock = realClock{}

// Debouncer coalesces rapid Trigger calls: fn runs once with the last value,
// after no new value arrived for the quiet interval. A new value cancels
// the pending one.
type Debouncer struct {
	clock Clock
	delay time.Duration
	fn    func(string)

	mu    sync.Mutex
	timer Timer
	seq   uint64
}

// NewDebouncer returns a Debouncer that calls fn with the last triggered
// value once delay has passed without another Trigger.
func NewDebouncer(clock Clock, delay time.Duration, fn func(string)) *Debouncer {
	if clock == nil {
		clock = RealClock
	}
	return &Debouncer{clock: clock, delay: delay, fn: fn}
}

// Trigger restarts the quiet interval with v as the pending value.
func (d *Debouncer) Trigger(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq, v) })
}

// fire drops callbacks superseded after their timer already started.
func (d *Debouncer) fire(seq uint64, v string) {
	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn(v)
}

// Stop cancels the pending value, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
