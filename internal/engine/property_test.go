package engine

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// decodeOps turns generated seeds into a valid create/update/delete history
// over a handful of keys, returning the events and the expected final state.
// Event i is stamped epoch+i seconds.
func decodeOps(seeds []int) ([]Event[item], map[string]int) {
	state := map[string]int{}
	events := make([]Event[item], 0, len(seeds))
	for i, n := range seeds {
		id := fmt.Sprintf("e%d", n%6)
		v := n / 6
		_, exists := state[id]

		var kind Kind
		switch {
		case !exists:
			kind = KindCreate
			state[id] = v
		case v%3 == 0:
			kind = KindDelete
			delete(state, id)
		default:
			kind = KindUpdate
			state[id] = v
		}
		events = append(events, NewEvent(kind, at(i), item{ID: id, Value: v}))
	}
	return events, state
}

func asMap(items []item) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ID] = it.Value
	}
	return out
}

func seedsGen() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 600))
}

func TestProperty_MatchesMapSimulation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("latest projection equals a map keyed by identity", prop.ForAll(
		func(seeds []int, every int) bool {
			events, want := decodeOps(seeds)
			clock := &manualClock{now: epoch}
			p := New[item](WithClock(clock))

			for i, ev := range events {
				if err := p.Push(ev); err != nil {
					return false
				}
				// Rollovers in between must not change the outcome.
				if (i+1)%every == 0 {
					clock.now = ev.Timestamp()
					p.MakeSnapshot()
				}
			}

			latest := p.LatestProjection()
			return len(latest) == len(want) &&
				reflect.DeepEqual(asMap(latest), want) &&
				p.Verify() == nil
		},
		seedsGen(),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

func TestProperty_LaggingClockRolloversRestore(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rollovers stamped behind the log still verify and restore", prop.ForAll(
		func(seeds []int, every int, lag int) bool {
			events, want := decodeOps(seeds)
			clock := &manualClock{now: epoch}
			p := New[item](WithClock(clock))

			for i, ev := range events {
				if err := p.Push(ev); err != nil {
					return false
				}
				if (i+1)%every == 0 {
					clock.now = ev.Timestamp().Add(-time.Duration(lag) * time.Second)
					p.MakeSnapshot()
				}
			}
			if p.Verify() != nil {
				return false
			}

			restored, err := Restore(p.Segments())
			if err != nil {
				return false
			}
			for _, ev := range events {
				got, err := restored.ProjectAt(ev.Timestamp())
				orig, origErr := p.ProjectAt(ev.Timestamp())
				if err != nil || origErr != nil || !reflect.DeepEqual(got, orig) {
					return false
				}
			}
			return reflect.DeepEqual(asMap(restored.LatestProjection()), want)
		},
		seedsGen(),
		gen.IntRange(1, 8),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}

func TestProperty_MergeInvertsRollover(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rollover then merge keeps events and projections", prop.ForAll(
		func(seeds []int, split int) bool {
			events, _ := decodeOps(seeds)
			if split > len(events) {
				split = len(events)
			}

			clock := &manualClock{now: epoch}
			p := New[item](WithClock(clock))
			for _, ev := range events[:split] {
				if err := p.Push(ev); err != nil {
					return false
				}
			}
			if split > 0 {
				clock.now = events[split-1].Timestamp()
			}
			p.MakeSnapshot()
			rollover := clock.now
			for _, ev := range events[split:] {
				if err := p.Push(ev); err != nil {
					return false
				}
			}

			probes := make([]time.Time, 0, len(events)+1)
			probes = append(probes, epoch)
			for _, ev := range events {
				probes = append(probes, ev.Timestamp())
			}
			before := make([][]item, len(probes))
			for i, ts := range probes {
				got, err := p.ProjectAt(ts)
				if err != nil {
					return false
				}
				before[i] = got
			}

			if err := p.MergeAt(rollover); err != nil {
				return false
			}
			if p.SegmentCount() != 1 {
				return false
			}
			if len(events) > 0 && !reflect.DeepEqual(p.EventsSince(epoch), events) {
				return false
			}
			for i, ts := range probes {
				got, err := p.ProjectAt(ts)
				if err != nil || !reflect.DeepEqual(got, before[i]) {
					return false
				}
			}
			return true
		},
		seedsGen(),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

func TestProperty_RejectsDisorder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("an event older than the latest is rejected without effect", prop.ForAll(
		func(seeds []int, back int) bool {
			events, _ := decodeOps(seeds)
			if len(events) == 0 {
				return true
			}
			p := New[item](WithClock(&manualClock{now: epoch}))
			for _, ev := range events {
				if err := p.Push(ev); err != nil {
					return false
				}
			}
			latest := p.LatestProjection()

			last := events[len(events)-1].Timestamp()
			stale := NewEvent(KindCreate, last.Add(-time.Duration(back)*time.Millisecond), item{ID: "fresh"})
			err := p.Push(stale)

			return IsOutOfOrder(err) && reflect.DeepEqual(latest, p.LatestProjection())
		},
		gen.SliceOfN(10, gen.IntRange(0, 600)),
		gen.IntRange(1, 5000),
	))

	properties.TestingRun(t)
}

func TestProperty_RejectedOperationsLeaveStateUnchanged(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("duplicate create and missing update/delete fail cleanly", prop.ForAll(
		func(seeds []int) bool {
			events, state := decodeOps(seeds)
			p := New[item](WithClock(&manualClock{now: epoch}))
			for _, ev := range events {
				if err := p.Push(ev); err != nil {
					return false
				}
			}
			latest := p.LatestProjection()
			next := at(len(events))

			for id := range state {
				if !IsDuplicateCreate(p.Push(NewEvent(KindCreate, next, item{ID: id}))) {
					return false
				}
			}
			if !IsMissingEntity(p.Push(NewEvent(KindUpdate, next, item{ID: "absent"}))) {
				return false
			}
			if !IsMissingEntity(p.Push(NewEvent(KindDelete, next, item{ID: "absent"}))) {
				return false
			}
			return reflect.DeepEqual(latest, p.LatestProjection())
		},
		seedsGen(),
	))

	properties.TestingRun(t)
}
