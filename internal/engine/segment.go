package engine

import (
	"fmt"
	"time"
)

// Segment is a bounded run of events plus the snapshot they continue from.
//
// The snapshot field is not frozen at the segment's start: it is mutated in
// place by every push, so it always holds the projection after the last event.
// Projecting an earlier instant therefore needs the starting snapshot supplied
// from outside, normally the previous segment's snapshot.
//
// INVARIANTS:
//   - every event timestamp >= start
//   - events are non-decreasing by timestamp (out-of-order pushes are rejected)
//   - snapshot == events applied in order to the state at start
type Segment[T Entity[T]] struct {
	start    time.Time
	snapshot []T
	events   []Event[T]
}

// SegmentData is the plain-data form of a segment, used for persistence.
type SegmentData[T Entity[T]] struct {
	Start    time.Time  `json:"start"`
	Snapshot []T        `json:"snapshot"`
	Events   []Event[T] `json:"events"`
}

// NewSegment creates an empty segment starting at the given instant.
func NewSegment[T Entity[T]](at time.Time) *Segment[T] {
	return NewSegmentFromSnapshot[T](at, nil, nil)
}

// NewSegmentFromSnapshot creates a segment starting at the given instant,
// seeded with a snapshot and event list. The segment takes ownership of both
// slices; callers pass copies when they keep using the originals.
func NewSegmentFromSnapshot[T Entity[T]](at time.Time, snapshot []T, events []Event[T]) *Segment[T] {
	if snapshot == nil {
		snapshot = []T{}
	}
	if events == nil {
		events = []Event[T]{}
	}
	return &Segment[T]{start: at, snapshot: snapshot, events: events}
}

// StartTime returns the earliest instant the segment accepts events for.
func (s *Segment[T]) StartTime() time.Time {
	return s.start
}

// Snapshot returns a copy of the current projected state.
func (s *Segment[T]) Snapshot() []T {
	return cloneAll(s.snapshot)
}

// Events returns a deep copy of the segment's event list.
func (s *Segment[T]) Events() []Event[T] {
	return cloneEvents(s.events)
}

// Len returns the number of events in the segment.
func (s *Segment[T]) Len() int {
	return len(s.events)
}

// LastEventTime returns the timestamp of the newest event, or the segment's
// start when it holds no events.
func (s *Segment[T]) LastEventTime() time.Time {
	if len(s.events) == 0 {
		return s.start
	}
	return s.events[len(s.events)-1].Timestamp()
}

// Data returns a deep copy of the segment as plain data.
func (s *Segment[T]) Data() SegmentData[T] {
	return SegmentData[T]{
		Start:    s.start,
		Snapshot: cloneAll(s.snapshot),
		Events:   cloneEvents(s.events),
	}
}

// ProjectOnto replays the segment's events up to and including at onto the
// given starting snapshot and returns the result.
//
// Returns a SEGMENT_NOT_FOUND error when at precedes the segment; the caller
// must consult an earlier segment. A replay failure means the segment no longer
// agrees with its starting snapshot and is reported as CORRUPT_SEGMENT.
func (s *Segment[T]) ProjectOnto(at time.Time, starting []T) ([]T, error) {
	if at.Before(s.start) {
		return nil, newSegmentNotFoundError(at)
	}

	projection := starting
	if projection == nil {
		projection = []T{}
	}

	for i, ev := range s.events {
		// Events are sorted, so the first one after at ends the prefix.
		if ev.Timestamp().After(at) {
			break
		}
		var err error
		projection, err = Apply(projection, ev)
		if err != nil {
			return nil, newCorruptError(fmt.Sprintf("replay of event %d failed", i), err)
		}
	}

	return projection, nil
}

// Push validates an event's ordering, applies it to the snapshot and appends it.
//
// A rejected push leaves both the snapshot and the event list unchanged.
func (s *Segment[T]) Push(ev Event[T]) error {
	ts := ev.Timestamp()
	if ts.Before(s.start) {
		return newOutOfOrderError("cannot accept an event predating the segment", ts)
	}
	if n := len(s.events); n > 0 && ts.Before(s.events[n-1].Timestamp()) {
		return newOutOfOrderError("cannot accept an event predating the latest logged event", ts)
	}

	next, err := Apply(s.snapshot, ev)
	if err != nil {
		return err
	}

	s.snapshot = next
	s.events = append(s.events, ev.clone())
	return nil
}

// Apply is the state transition rule shared by live pushes and replay.
//
// The entity is located by key. Create appends a clone of the payload, Update
// replaces the entry in place and Delete removes it; the order of all other
// entries is preserved. Validation happens before the slice is touched, so on
// error the input is returned unmodified alongside the error.
func Apply[T Entity[T]](snapshot []T, ev Event[T]) ([]T, error) {
	payload := ev.Payload()
	key := payload.Key()
	pos := indexOf(snapshot, key)

	switch ev.Kind() {
	case KindCreate:
		if pos >= 0 {
			return snapshot, &Error{Code: ErrCodeDuplicateCreate, Message: "entity already exists", Key: key, At: ev.Timestamp()}
		}
		return append(snapshot, payload.Clone()), nil

	case KindUpdate:
		if pos < 0 {
			return snapshot, &Error{Code: ErrCodeMissingEntity, Message: "entity does not exist", Key: key, At: ev.Timestamp()}
		}
		snapshot[pos] = payload.Clone()
		return snapshot, nil

	case KindDelete:
		if pos < 0 {
			return snapshot, &Error{Code: ErrCodeMissingEntity, Message: "entity does not exist", Key: key, At: ev.Timestamp()}
		}
		return append(snapshot[:pos], snapshot[pos+1:]...), nil

	default:
		return snapshot, fmt.Errorf("apply: unknown event kind %s", ev.Kind())
	}
}

// Merge folds a chronologically preceding segment into this one.
//
// The predecessor's events are prepended and the start moves back to the
// predecessor's start. The snapshot stays: it already reflects the final state,
// and merging only joins history. Fails with SEGMENT_OVERLAP when this segment
// starts before the predecessor's latest event.
func (s *Segment[T]) Merge(pred *Segment[T]) error {
	if err := s.checkMerge(pred); err != nil {
		return err
	}

	events := make([]Event[T], 0, len(pred.events)+len(s.events))
	events = append(events, pred.events...)
	events = append(events, s.events...)

	s.events = events
	s.start = pred.start
	return nil
}

func cloneEvents[T Entity[T]](in []Event[T]) []Event[T] {
	out := make([]Event[T], len(in))
	for i, ev := range in {
		out[i] = ev.clone()
	}
	return out
}

func (s *Segment[T]) checkMerge(pred *Segment[T]) error {
	if pred == nil {
		return &Error{Code: ErrCodeNoPrecedingSegment, Message: "no segment to merge"}
	}
	last := pred.LastEventTime()
	if s.start.Before(last) {
		return &Error{
			Code:    ErrCodeSegmentOverlap,
			Message: "cannot merge a segment that does not fully precede this one",
			At:      last,
		}
	}
	return nil
}
