package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallClock_StartsEmpty(t *testing.T) {
	c := NewWallClock()
	assert.True(t, c.Last().IsZero(), "new clock has handed out nothing")
}

func TestWallClock_FollowsWallTime(t *testing.T) {
	c := NewWallClock()
	before := time.Now()
	now := c.Now()

	assert.False(t, now.Before(before))
	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, now, c.Last())
}

func TestWallClock_StrictlyIncreasingWhenWallClockStalls(t *testing.T) {
	frozen := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	c := &WallClock{now: func() time.Time { return frozen }}

	first := c.Now()
	second := c.Now()
	third := c.Now()

	assert.Equal(t, frozen, first)
	assert.Equal(t, frozen.Add(time.Nanosecond), second)
	assert.Equal(t, frozen.Add(2*time.Nanosecond), third)
}

func TestWallClock_WallClockSteppingBack(t *testing.T) {
	times := []time.Time{
		time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC),
	}
	i := 0
	c := &WallClock{now: func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}}

	first := c.Now()
	second := c.Now()
	assert.True(t, second.After(first), "clock never goes back")
}

func TestWallClock_ThreadSafe(t *testing.T) {
	frozen := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	c := &WallClock{now: func() time.Time { return frozen }}
	const goroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	results := make(chan time.Time, goroutines*callsPerGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results <- c.Now()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[time.Time]bool)
	for r := range results {
		assert.False(t, seen[r], "time %s handed out twice", r)
		seen[r] = true
	}
	assert.Len(t, seen, goroutines*callsPerGoroutine)
	assert.Equal(t, frozen.Add((goroutines*callsPerGoroutine-1)*time.Nanosecond), c.Last())
}
