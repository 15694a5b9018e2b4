package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtBase(t *testing.T) {
	clock := NewDeterministicClock(time.Time{}, time.Second)
	assert.Equal(t, DefaultBase, clock.Current())
}

func TestDeterministicClock_NowAdvancesMonotonically(t *testing.T) {
	clock := NewDeterministicClock(DefaultBase, time.Second)

	// First call returns base+step
	assert.Equal(t, DefaultBase.Add(1*time.Second), clock.Now())
	assert.Equal(t, DefaultBase.Add(1*time.Second), clock.Current())

	// Subsequent calls advance
	assert.Equal(t, DefaultBase.Add(2*time.Second), clock.Now())
	assert.Equal(t, DefaultBase.Add(3*time.Second), clock.Now())
	assert.Equal(t, DefaultBase.Add(3*time.Second), clock.Current())
}

func TestDeterministicClock_ZeroStepIsConstant(t *testing.T) {
	clock := NewDeterministicClock(DefaultBase, 0)

	assert.Equal(t, DefaultBase, clock.Now())
	assert.Equal(t, DefaultBase, clock.Now())

	clock.Advance(time.Minute)
	assert.Equal(t, DefaultBase.Add(time.Minute), clock.Now())
}

func TestDeterministicClock_AdvanceAndSet(t *testing.T) {
	clock := NewDeterministicClock(DefaultBase, time.Second)

	clock.Advance(time.Hour)
	assert.Equal(t, DefaultBase.Add(time.Hour), clock.Current())

	// Negative advance is ignored
	clock.Advance(-time.Hour)
	assert.Equal(t, DefaultBase.Add(time.Hour), clock.Current())

	// Set can move backwards
	clock.Set(DefaultBase.Add(-time.Minute))
	assert.Equal(t, DefaultBase.Add(-time.Minute+time.Second), clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(DefaultBase, time.Second)

	// Advance clock
	clock.Now()
	clock.Now()
	clock.Advance(time.Hour)

	// Reset
	clock.Reset()
	assert.Equal(t, DefaultBase, clock.Current())

	// First call after reset returns base+step
	assert.Equal(t, DefaultBase.Add(time.Second), clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(DefaultBase, time.Nanosecond)
	const numGoroutines = 100
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]time.Time, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]time.Time, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = clock.Now()
			}
		}(i)
	}

	wg.Wait()

	// Collect all values
	allValues := make(map[time.Time]bool)
	for i := 0; i < numGoroutines; i++ {
		for j := 0; j < callsPerGoroutine; j++ {
			val := results[i][j]
			require.False(t, allValues[val], "duplicate instant %s", val)
			allValues[val] = true
		}
	}

	expectedTotal := numGoroutines * callsPerGoroutine
	assert.Len(t, allValues, expectedTotal)
	assert.Equal(t, DefaultBase.Add(time.Duration(expectedTotal)), clock.Current())
}

func TestDeterministicClock_Deterministic(t *testing.T) {
	// Run twice and verify same sequence
	clock1 := NewDeterministicClock(DefaultBase, time.Millisecond)
	clock2 := NewDeterministicClock(DefaultBase, time.Millisecond)

	for i := 0; i < 100; i++ {
		assert.Equal(t, clock1.Now(), clock2.Now())
	}
}
