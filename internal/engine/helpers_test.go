package engine

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// item is the entity used throughout the engine tests. Tags is a slice so
// aliasing bugs show up as shared mutations.
type item struct {
	ID    string
	Value int
	Tags  []string
}

func (i item) Key() string { return i.ID }

func (i item) Clone() item {
	c := i
	c.Tags = slices.Clone(i.Tags)
	return c
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns epoch plus n seconds.
func at(n int) time.Time {
	return epoch.Add(time.Duration(n) * time.Second)
}

// manualClock returns whatever instant the test last set.
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

// newTestProjector returns a projector whose first segment starts at epoch and
// whose rollovers are stamped by the returned clock.
func newTestProjector(t *testing.T) (*Projector[item], *manualClock) {
	t.Helper()
	clock := &manualClock{now: epoch}
	return New[item](WithClock(clock)), clock
}

func push(t *testing.T, p *Projector[item], kind Kind, ts time.Time, it item) {
	t.Helper()
	require.NoError(t, p.Push(NewEvent(kind, ts, it)))
}

func project(t *testing.T, p *Projector[item], ts time.Time) []item {
	t.Helper()
	got, err := p.ProjectAt(ts)
	require.NoError(t, err)
	return got
}
