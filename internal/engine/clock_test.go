package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_UTC(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
}

func TestLogicalClock_StartsAtBase(t *testing.T) {
	c := NewLogicalClock(epoch, time.Second)
	assert.Equal(t, epoch, c.Current(), "new clock should report its base")
}

func TestLogicalClock_Now_Incrementing(t *testing.T) {
	c := NewLogicalClock(epoch, time.Second)

	// First call returns base+step (increments then returns)
	assert.Equal(t, at(1), c.Now())
	assert.Equal(t, at(2), c.Now())
	assert.Equal(t, at(3), c.Now())

	// Current should reflect increments
	assert.Equal(t, at(3), c.Current())
	assert.Equal(t, at(3), c.Current())
}

func TestLogicalClock_DefaultStep(t *testing.T) {
	c := NewLogicalClock(epoch, 0)
	assert.Equal(t, epoch.Add(time.Nanosecond), c.Now())
}

func TestLogicalClock_ThreadSafe(t *testing.T) {
	c := NewLogicalClock(epoch, time.Nanosecond)
	const goroutines = 100
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	stamps := make(chan time.Time, goroutines*callsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				stamps <- c.Now()
			}
		}()
	}

	wg.Wait()
	close(stamps)

	// Verify all instants are unique
	seen := make(map[time.Time]bool)
	for ts := range stamps {
		assert.False(t, seen[ts], "instant %s generated twice", ts)
		seen[ts] = true
	}

	expected := goroutines * callsPerGoroutine
	assert.Len(t, seen, expected, "should have %d unique instants", expected)
}

func TestLogicalClock_DrivesProjector(t *testing.T) {
	clock := NewLogicalClock(epoch, time.Second)
	p := New[item](WithClock(clock))

	first := Stamp(clock, KindCreate, item{ID: "a", Value: 1})
	assert.NoError(t, p.Push(first))
	p.MakeSnapshot()
	assert.NoError(t, p.Push(Stamp(clock, KindUpdate, item{ID: "a", Value: 2})))

	assert.Equal(t, at(1), p.Epoch())
	assert.Equal(t, 2, p.SegmentCount())

	got, err := p.ProjectAt(first.Timestamp())
	assert.NoError(t, err)
	assert.Equal(t, []item{{ID: "a", Value: 1}}, got)
}
