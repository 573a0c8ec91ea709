package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first time a StepClock returns.
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic publish clock: every call to Now returns the
// previous time plus a fixed step.
//
// Unlike engine.WallClock, StepClock can be reset so the same scenario
// produces identical publish times on every run.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewStepClock creates a clock starting at start and advancing by step.
// A zero start means DefaultEpoch; a non-positive step means one second.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	if step <= 0 {
		step = time.Second
	}
	return &StepClock{start: start.UTC(), step: step}
}

// Now returns the next time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Last returns the most recent time handed out, or the zero time before the
// first call.
func (c *StepClock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == 0 {
		return time.Time{}
	}
	return c.start.Add(time.Duration(c.calls-1) * c.step)
}

// Reset rewinds the clock. The next call to Now returns the start time.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
