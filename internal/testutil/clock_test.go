package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepClock_StartsAtEpoch(t *testing.T) {
	clock := NewStepClock(time.Time{}, 0)
	assert.True(t, clock.Last().IsZero())
	assert.Equal(t, DefaultEpoch, clock.Now())
	assert.Equal(t, DefaultEpoch, clock.Last())
}

func TestStepClock_AdvancesByStep(t *testing.T) {
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, time.Minute)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Minute), clock.Now())
	assert.Equal(t, start.Add(2*time.Minute), clock.Now())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(time.Time{}, time.Second)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.True(t, clock.Last().IsZero())
	assert.Equal(t, DefaultEpoch, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(time.Time{}, time.Millisecond)
	const goroutines = 20
	const calls = 50

	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				now := clock.Now()
				mu.Lock()
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls, "every call must return a distinct time")
	assert.Equal(t, DefaultEpoch.Add((goroutines*calls-1)*time.Millisecond), clock.Last())
}
