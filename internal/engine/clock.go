package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies publish and modification times.
// Implemented by WallClock (production) and testutil.StepClock (tests).
type Clock interface {
	Now() time.Time
}

// WallClock is a strictly increasing wall clock.
//
// Two publishes of the same version must never share a publish time: the
// publish time is what links a private version to the public revision it
// converged with. When the wall clock stalls or steps back, WallClock returns
// one nanosecond past the last value instead.
//
// Thread-safety: WallClock is safe for concurrent use (atomic operations).
type WallClock struct {
	last atomic.Int64
	now  func() time.Time
}

// NewWallClock creates a clock reading time.Now.
func NewWallClock() *WallClock {
	return &WallClock{now: time.Now}
}

// Now returns the current UTC time, or one nanosecond past the previous
// result when the wall clock has not moved forward.
func (c *WallClock) Now() time.Time {
	for {
		last := c.last.Load()
		next := c.now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return time.Unix(0, next).UTC()
		}
	}
}

// Last returns the most recent time handed out, or the zero time before the
// first call.
func (c *WallClock) Last() time.Time {
	last := c.last.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last).UTC()
}
