package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/occ/internal/engine"
)

// ErrValidation marks an entity rejected by the configured Validator.
var ErrValidation = errors.New("validation failed")

// Validator checks an entity before it is created or updated.
type Validator[T any] interface {
	Validate(T) error
}

// Persister stores a projector's segments.
type Persister[T engine.Entity[T]] interface {
	SaveSegments(ctx context.Context, segments []engine.SegmentData[T]) error
}

// Loader reads stored segments. Nil segments mean nothing was stored yet.
type Loader[T engine.Entity[T]] interface {
	LoadSegments(ctx context.Context) ([]engine.SegmentData[T], error)
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	clock     engine.Clock
	log       *slog.Logger
	validator any
}

// WithClock sets the clock that stamps events and segments.
func WithClock(c engine.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger for the repository and its projector.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithValidator runs v before every Create and Update.
// The validator's type parameter must match the repository's entity type.
func WithValidator[T any](v Validator[T]) Option {
	return func(o *options) {
		o.validator = v
	}
}

// Repository wraps a Projector with locking, validation and logging.
//
// Thread-safety: all methods are safe for concurrent use.
type Repository[T engine.Entity[T]] struct {
	mu        sync.RWMutex
	projector *engine.Projector[T]
	clock     engine.Clock
	validator Validator[T]
	log       *slog.Logger
}

// New creates an empty repository.
func New[T engine.Entity[T]](opts ...Option) *Repository[T] {
	r, o := newRepository[T](opts)
	r.projector = engine.New[T](engineOptions(o)...)
	return r
}

// Load rebuilds a repository from stored segments. When the loader has
// nothing stored, the repository starts empty.
func Load[T engine.Entity[T]](ctx context.Context, l Loader[T], opts ...Option) (*Repository[T], error) {
	segments, err := l.LoadSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	r, o := newRepository[T](opts)
	if len(segments) == 0 {
		r.projector = engine.New[T](engineOptions(o)...)
		return r, nil
	}

	p, err := engine.Restore(segments, engineOptions(o)...)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	r.projector = p

	r.log.Debug("repository loaded",
		"segments", p.SegmentCount(),
		"entities", len(p.LatestProjection()),
	)
	return r, nil
}

func newRepository[T engine.Entity[T]](opts []Option) (*Repository[T], options) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = engine.SystemClock{}
	}
	if o.log == nil {
		o.log = slog.Default()
	}

	r := &Repository[T]{clock: o.clock, log: o.log}
	if o.validator != nil {
		v, ok := o.validator.(Validator[T])
		if !ok {
			panic(fmt.Sprintf("repository: validator %T does not accept the entity type", o.validator))
		}
		r.validator = v
	}
	return r, o
}

func engineOptions(o options) []engine.Option {
	return []engine.Option{engine.WithClock(o.clock), engine.WithLogger(o.log)}
}

// Create adds a new entity. Fails with DUPLICATE_CREATE if the key exists.
func (r *Repository[T]) Create(entity T) (engine.Event[T], error) {
	return r.mutate(engine.KindCreate, entity, true)
}

// Update replaces an existing entity. Fails with MISSING_ENTITY if the key is absent.
func (r *Repository[T]) Update(entity T) (engine.Event[T], error) {
	return r.mutate(engine.KindUpdate, entity, true)
}

// Delete removes an existing entity. Fails with MISSING_ENTITY if the key is absent.
func (r *Repository[T]) Delete(entity T) (engine.Event[T], error) {
	return r.mutate(engine.KindDelete, entity, false)
}

// DeleteKey removes the entity with the given key, recording its current value
// as the delete payload.
func (r *Repository[T]) DeleteKey(key string) (engine.Event[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := find(r.projector.LatestProjection(), key)
	if !ok {
		err := &engine.Error{Code: engine.ErrCodeMissingEntity, Message: "entity does not exist", Key: key}
		r.log.Warn("mutation rejected", "op", engine.KindDelete.String(), "key", key, "error", err)
		var zero engine.Event[T]
		return zero, err
	}
	return r.push(engine.KindDelete, current)
}

func (r *Repository[T]) mutate(kind engine.Kind, entity T, validate bool) (engine.Event[T], error) {
	var zero engine.Event[T]

	if validate && r.validator != nil {
		if err := r.validator.Validate(entity); err != nil {
			r.log.Warn("mutation rejected", "op", kind.String(), "key", entity.Key(), "error", err)
			return zero, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.push(kind, entity)
}

// push stamps and appends an event. Callers hold the write lock.
func (r *Repository[T]) push(kind engine.Kind, entity T) (engine.Event[T], error) {
	ev := engine.Stamp(r.clock, kind, entity.Clone())
	if err := r.projector.Push(ev); err != nil {
		r.log.Warn("mutation rejected",
			"op", kind.String(),
			"key", entity.Key(),
			"code", string(engine.CodeOf(err)),
			"error", err,
		)
		var zero engine.Event[T]
		return zero, err
	}

	r.log.Debug("entity "+pastTense(kind),
		"key", entity.Key(),
		"at", ev.Timestamp(),
	)
	return ev, nil
}

func pastTense(k engine.Kind) string {
	switch k {
	case engine.KindCreate:
		return "created"
	case engine.KindUpdate:
		return "updated"
	case engine.KindDelete:
		return "deleted"
	default:
		return k.String()
	}
}

// Projection returns the current state.
func (r *Repository[T]) Projection() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projector.LatestProjection()
}

// ProjectAt returns the state as of at, inclusive.
func (r *Repository[T]) ProjectAt(at time.Time) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projector.ProjectAt(at)
}

// Get returns the current entity with the given key.
func (r *Repository[T]) Get(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return find(r.projector.LatestProjection(), key)
}

// GetAt returns the entity with the given key as of at.
func (r *Repository[T]) GetAt(key string, at time.Time) (T, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projection, err := r.projector.ProjectAt(at)
	if err != nil {
		var zero T
		return zero, false, err
	}
	entity, ok := find(projection, key)
	return entity, ok, nil
}

// Snapshot rolls over to a new segment and returns its start time.
func (r *Repository[T]) Snapshot() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.projector.MakeSnapshot()
	return r.projector.LastStart()
}

// MergeAt merges the segment covering at into its predecessor.
func (r *Repository[T]) MergeAt(at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.projector.MergeAt(at); err != nil {
		r.log.Warn("merge rejected", "at", at, "code", string(engine.CodeOf(err)), "error", err)
		return err
	}
	return nil
}

// EventsSince returns the events from the last one at or before at onward.
func (r *Repository[T]) EventsSince(at time.Time) []engine.Event[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projector.EventsSince(at)
}

// Segments returns a deep copy of every segment, oldest first.
func (r *Repository[T]) Segments() []engine.SegmentData[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projector.Segments()
}

// SegmentCount returns the number of segments.
func (r *Repository[T]) SegmentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projector.SegmentCount()
}

// Epoch returns the earliest projectable instant.
func (r *Repository[T]) Epoch() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projector.Epoch()
}

// Verify replays every segment and checks it against its stored snapshot.
func (r *Repository[T]) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projector.Verify()
}

// Persist hands a copy of every segment to p.
func (r *Repository[T]) Persist(ctx context.Context, p Persister[T]) error {
	segments := r.Segments()
	if err := p.SaveSegments(ctx, segments); err != nil {
		return fmt.Errorf("persist repository: %w", err)
	}
	r.log.Debug("repository persisted", "segments", len(segments))
	return nil
}

func find[T engine.Entity[T]](entities []T, key string) (T, bool) {
	for _, e := range entities {
		if e.Key() == key {
			return e, true
		}
	}
	var zero T
	return zero, false
}
