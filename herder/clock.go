package herder

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the scheduler/clock collaborator (spec.md §1, §5): every timer
// Herder arms (bump timer, trigger timer, deferred-accept timers) goes
// through this interface rather than the time package directly, so tests
// can advance a fake clock deterministically instead of sleeping.
type Clock = clock.Clock

// Timer is a single-shot, cancellable timer as returned by Clock.AfterFunc.
type Timer = *clock.Timer

// RealClock is the default Clock wired in production.
func RealClock() Clock {
	return clock.New()
}

// NewForTesting returns a clock.Mock starting at t, for deterministic timer
// tests (spec.md §8's boundary-behavior and end-to-end scenarios rely on
// controlling "now" precisely).
func NewForTesting(t time.Time) *clock.Mock {
	m := clock.NewMock()
	m.Set(t)
	return m
}
