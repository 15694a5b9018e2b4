package store

import (
	"context"
	"errors"

	"github.com/roach88/occ/internal/engine"
)

// Collection binds a store and a collection name for one entity type.
// It satisfies the repository's Persister and Loader interfaces.
type Collection[T engine.Entity[T]] struct {
	store *Store
	name  string
}

// NewCollection returns a handle on the named collection.
func NewCollection[T engine.Entity[T]](s *Store, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// SaveSegments replaces the stored collection with segments.
func (c *Collection[T]) SaveSegments(ctx context.Context, segments []engine.SegmentData[T]) error {
	return Save(ctx, c.store, c.name, segments)
}

// LoadSegments reads the stored collection. A collection that was never saved
// yields nil segments and no error, so callers start from an empty projector.
func (c *Collection[T]) LoadSegments(ctx context.Context) ([]engine.SegmentData[T], error) {
	segments, err := Load[T](ctx, c.store, c.name)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil, nil
	}
	return segments, err
}
