// Package payment implements the bounded payment status polling loop.
// This file defines the clock abstraction that makes the poll cadence
// injectable, so state transitions can be tested deterministically without
// wall-clock timers.
package payment

import "time"

// Clock abstracts time for the supervisor. The production implementation
// delegates to the time package; tests drive ticks by hand.
type Clock interface {
	Now() time.Time
	// After behaves like time.After: it returns a channel that delivers
	// once the duration has elapsed.
	After(d time.Duration) <-chan time.Time
}

// realClock is the wall-clock implementation used outside tests.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
