package testutil

import (
	"sync"
	"time"
)

// DefaultBase is the first instant handed out by a zero-configured clock.
var DefaultBase = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe, resettable clock for tests.
//
// Each call to Now advances the clock by step and returns the new instant, so
// a scenario run twice against fresh clocks produces identical timestamps.
// Advance and Set move the clock explicitly between calls.
//
// Implements engine.Clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	now  time.Time
}

// NewDeterministicClock creates a clock at base ticking by step per Now call.
//
// A zero base defaults to DefaultBase. A zero step makes Now constant until
// Advance or Set is called.
func NewDeterministicClock(base time.Time, step time.Duration) *DeterministicClock {
	if base.IsZero() {
		base = DefaultBase
	}
	return &DeterministicClock{base: base, step: step, now: base}
}

// Now advances the clock by one step and returns the new instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Current returns the current instant without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored so the
// clock never runs backwards.
func (c *DeterministicClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Used by tests that need to stamp out-of-order
// events on purpose.
func (c *DeterministicClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Reset returns the clock to its base.
//
// Used for test reuse. After Reset(), the next call to Now() returns base+step.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.base
}
