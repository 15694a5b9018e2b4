package engine

import (
	"sync/atomic"
	"time"
)

// Clock stamps events and segments.
//
// Projections compare instants, so a clock used with a single projector must
// never go backwards. SystemClock is the production default; LogicalClock and
// testutil.DeterministicClock give reproducible instants.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// LogicalClock produces strictly increasing instants base+step, base+2*step, ...
//
// Thread-safety: safe for concurrent use (atomic operations). Each call to Now
// returns a unique instant.
type LogicalClock struct {
	base time.Time
	step time.Duration
	seq  atomic.Int64
}

// NewLogicalClock creates a clock whose first tick is base+step.
// A non-positive step defaults to one nanosecond.
func NewLogicalClock(base time.Time, step time.Duration) *LogicalClock {
	if step <= 0 {
		step = time.Nanosecond
	}
	return &LogicalClock{base: base, step: step}
}

// Now advances the clock and returns the new instant.
func (c *LogicalClock) Now() time.Time {
	return c.at(c.seq.Add(1))
}

// Current returns the last instant handed out without advancing.
// Before the first tick it returns base.
func (c *LogicalClock) Current() time.Time {
	return c.at(c.seq.Load())
}

func (c *LogicalClock) at(seq int64) time.Time {
	return c.base.Add(time.Duration(seq) * c.step)
}

// Stamp builds an event of the given kind stamped by the clock.
func Stamp[T Entity[T]](c Clock, kind Kind, payload T) Event[T] {
	return NewEvent(kind, c.Now(), payload)
}
