package engine

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"time"
)

// Projector owns an ordered chain of segments and answers projections over it.
//
// Segment i is authoritative for [segments[i].start, segments[i+1].start); the
// last segment covers everything from its start onward and is the only one that
// receives pushes. Older segments are frozen snapshot boundaries: projecting an
// instant replays only the events of the segment covering it, starting from the
// previous segment's snapshot.
//
// Projector is not safe for concurrent use. Callers serialize all operations,
// see repository.Repository for a locked wrapper.
type Projector[T Entity[T]] struct {
	segments []*Segment[T]
	clock    Clock
	log      *slog.Logger
}

// Option configures a Projector.
type Option func(*options)

type options struct {
	clock Clock
	log   *slog.Logger
}

// WithClock sets the clock used to stamp new segments.
//
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger for rollover and merge diagnostics.
//
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o
}

// New creates a projector holding one empty segment stamped with the clock's now.
func New[T Entity[T]](opts ...Option) *Projector[T] {
	o := buildOptions(opts)
	return &Projector[T]{
		segments: []*Segment[T]{NewSegment[T](o.clock.Now())},
		clock:    o.clock,
		log:      o.log,
	}
}

// Restore rebuilds a projector from persisted segments.
//
// The chain is checked before it is accepted: segments must be ordered and
// non-overlapping, events sorted and inside their segment, and every snapshot
// must equal the replay of its events onto the previous snapshot. Any violation
// is reported as CORRUPT_SEGMENT.
func Restore[T Entity[T]](data []SegmentData[T], opts ...Option) (*Projector[T], error) {
	if len(data) == 0 {
		return nil, newCorruptError("no segments to restore", nil)
	}

	o := buildOptions(opts)
	p := &Projector[T]{
		segments: make([]*Segment[T], 0, len(data)),
		clock:    o.clock,
		log:      o.log,
	}
	for _, d := range data {
		seg := NewSegmentFromSnapshot(d.Start, cloneAll(d.Snapshot), cloneEvents(d.Events))
		p.segments = append(p.segments, seg)
	}

	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// LatestProjection returns a copy of the current state.
func (p *Projector[T]) LatestProjection() []T {
	return p.last().Snapshot()
}

// ProjectAt reconstructs the state as of at, inclusive of events stamped at.
//
// Returns a SEGMENT_NOT_FOUND error when at predates the first segment.
func (p *Projector[T]) ProjectAt(at time.Time) ([]T, error) {
	pos, ok := p.segmentAt(at)
	if !ok {
		return nil, newSegmentNotFoundError(at)
	}
	return p.segments[pos].ProjectOnto(at, p.startingSnapshot(pos))
}

// Push appends an event to the newest segment.
func (p *Projector[T]) Push(ev Event[T]) error {
	return p.last().Push(ev)
}

// MakeSnapshot rolls over to a new segment seeded with the current state.
//
// The latest projection is unchanged; subsequent pushes land in the new
// segment and the previous one becomes a frozen boundary, so point-in-time
// queries never replay more than one segment's events.
//
// The new segment starts at the clock's now, or at the previous segment's
// latest event when the clock reads earlier, so segments never overlap.
func (p *Projector[T]) MakeSnapshot() {
	last := p.last()
	start := p.clock.Now()
	if latest := last.LastEventTime(); start.Before(latest) {
		start = latest
	}
	seg := NewSegmentFromSnapshot[T](start, last.Snapshot(), nil)
	p.segments = append(p.segments, seg)

	p.log.Debug("segment rollover",
		"segments", len(p.segments),
		"start", seg.StartTime(),
		"entities", len(seg.snapshot),
	)
}

// MergeAt merges the segment covering at with the segment before it.
//
// This undoes a rollover. Fails with SEGMENT_NOT_FOUND when at predates the
// store and NO_PRECEDING_SEGMENT when at falls in the first segment. The merge
// is validated before any segment is removed, so a failure leaves the chain
// untouched.
func (p *Projector[T]) MergeAt(at time.Time) error {
	pos, ok := p.segmentAt(at)
	if !ok {
		return newSegmentNotFoundError(at)
	}
	if pos == 0 {
		return &Error{
			Code:    ErrCodeNoPrecedingSegment,
			Message: "cannot find a preceding segment",
			At:      at,
		}
	}

	target, pred := p.segments[pos], p.segments[pos-1]
	if err := target.Merge(pred); err != nil {
		return err
	}
	p.segments = slices.Delete(p.segments, pos-1, pos)

	p.log.Debug("segments merged",
		"segments", len(p.segments),
		"start", target.StartTime(),
		"events", target.Len(),
	)
	return nil
}

// EventsSince returns the events from the last one stamped at or before at,
// followed by every event of all later segments, in order.
//
// The result is empty when at predates the store or when the covering segment
// has no event at or before at.
func (p *Projector[T]) EventsSince(at time.Time) []Event[T] {
	events := []Event[T]{}

	pos, ok := p.segmentAt(at)
	if !ok {
		return events
	}

	own := p.segments[pos].events
	from := -1
	for i := len(own) - 1; i >= 0; i-- {
		if !own[i].Timestamp().After(at) {
			from = i
			break
		}
	}
	if from < 0 {
		return events
	}

	for _, ev := range own[from:] {
		events = append(events, ev.clone())
	}
	for _, seg := range p.segments[pos+1:] {
		for _, ev := range seg.events {
			events = append(events, ev.clone())
		}
	}
	return events
}

// LastStart returns the start of the newest segment, the one receiving pushes.
func (p *Projector[T]) LastStart() time.Time {
	return p.last().StartTime()
}

// Segments returns a deep copy of every segment, oldest first.
func (p *Projector[T]) Segments() []SegmentData[T] {
	out := make([]SegmentData[T], len(p.segments))
	for i, seg := range p.segments {
		out[i] = seg.Data()
	}
	return out
}

// SegmentCount returns the number of segments.
func (p *Projector[T]) SegmentCount() int {
	return len(p.segments)
}

// Epoch returns the start of the first segment, the earliest projectable instant.
func (p *Projector[T]) Epoch() time.Time {
	return p.segments[0].StartTime()
}

// Verify re-derives every segment's snapshot from its predecessor and checks
// the ordering invariants of the chain. A healthy projector always verifies.
func (p *Projector[T]) Verify() error {
	for i, seg := range p.segments {
		if err := checkSegmentOrder(seg); err != nil {
			return newCorruptError(fmt.Sprintf("segment %d", i), err)
		}
		if i > 0 {
			prev := p.segments[i-1]
			if seg.start.Before(prev.start) {
				return newCorruptError(fmt.Sprintf("segment %d starts before segment %d", i, i-1), nil)
			}
			if seg.start.Before(prev.LastEventTime()) {
				return newCorruptError(fmt.Sprintf("segment %d overlaps the events of segment %d", i, i-1), nil)
			}
		}

		replayed, err := seg.ProjectOnto(seg.LastEventTime(), p.startingSnapshot(i))
		if err != nil {
			return newCorruptError(fmt.Sprintf("segment %d", i), err)
		}
		if !sameSnapshot(replayed, seg.snapshot) {
			return newCorruptError(fmt.Sprintf("segment %d snapshot differs from its replay", i), nil)
		}
	}
	return nil
}

// segmentAt returns the index of the rightmost segment starting at or before at.
func (p *Projector[T]) segmentAt(at time.Time) (int, bool) {
	n := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].start.After(at)
	})
	if n == 0 {
		return 0, false
	}
	return n - 1, true
}

// startingSnapshot returns a copy of the snapshot preceding segment pos.
func (p *Projector[T]) startingSnapshot(pos int) []T {
	if pos == 0 {
		return []T{}
	}
	return p.segments[pos-1].Snapshot()
}

func (p *Projector[T]) last() *Segment[T] {
	return p.segments[len(p.segments)-1]
}

func checkSegmentOrder[T Entity[T]](seg *Segment[T]) error {
	prev := seg.start
	for i, ev := range seg.events {
		if ev.Timestamp().Before(prev) {
			return fmt.Errorf("event %d at %s is out of order", i, ev.Timestamp().Format(time.RFC3339Nano))
		}
		prev = ev.Timestamp()
	}
	return nil
}

// equaler is implemented by entities with a cheaper or looser notion of
// equality than reflect.DeepEqual.
type equaler[T any] interface {
	Equal(T) bool
}

func sameSnapshot[T Entity[T]](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if eq, ok := any(a[i]).(equaler[T]); ok {
			if !eq.Equal(b[i]) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
