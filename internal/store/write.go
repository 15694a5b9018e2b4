package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/occ/internal/engine"
)

// Save replaces the named collection with the given segments in one
// transaction. Segments are stored in order; each gets a fresh UUIDv7 id.
//
// Snapshots and payloads are serialized to canonical JSON per RFC 8785 and
// stored with SHA-256 digests that Load verifies.
func Save[T engine.Entity[T]](ctx context.Context, s *Store, collection string, segments []engine.SegmentData[T]) error {
	if collection == "" {
		return fmt.Errorf("save: collection name is required")
	}
	if len(segments) == 0 {
		return fmt.Errorf("save %q: at least one segment is required", collection)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %q: begin: %w", collection, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collections (name, updated_ns) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET updated_ns = excluded.updated_ns
	`, collection, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("save %q: upsert collection: %w", collection, err)
	}

	if err := deleteSegments(ctx, tx, collection); err != nil {
		return fmt.Errorf("save %q: %w", collection, err)
	}

	insertSegment, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (id, collection, position, start_ns, snapshot, snapshot_digest)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save %q: prepare segments: %w", collection, err)
	}
	defer insertSegment.Close()

	insertEvent, err := tx.PrepareContext(ctx, `
		INSERT INTO events (segment_id, position, ts_ns, kind, payload, digest)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save %q: prepare events: %w", collection, err)
	}
	defer insertEvent.Close()

	for i, seg := range segments {
		snapshot, digest, err := encodeSnapshot(seg.Snapshot)
		if err != nil {
			return fmt.Errorf("save %q: segment %d: %w", collection, i, err)
		}

		id := uuid.Must(uuid.NewV7()).String()
		if _, err := insertSegment.ExecContext(ctx, id, collection, i, seg.Start.UnixNano(), snapshot, digest); err != nil {
			return fmt.Errorf("save %q: insert segment %d: %w", collection, i, err)
		}

		for j, ev := range seg.Events {
			payload, evDigest, err := encodeEvent(ev)
			if err != nil {
				return fmt.Errorf("save %q: segment %d event %d: %w", collection, i, j, err)
			}
			if _, err := insertEvent.ExecContext(ctx, id, j, ev.Timestamp().UnixNano(), ev.Kind().String(), payload, evDigest); err != nil {
				return fmt.Errorf("save %q: insert segment %d event %d: %w", collection, i, j, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %q: commit: %w", collection, err)
	}
	return nil
}

// DeleteCollection removes a collection and all of its segments and events.
// Returns ErrCollectionNotFound if the collection does not exist.
func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %q: begin: %w", collection, err)
	}
	defer tx.Rollback()

	if err := deleteSegments(ctx, tx, collection); err != nil {
		return fmt.Errorf("delete %q: %w", collection, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, collection)
	if err != nil {
		return fmt.Errorf("delete %q: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %q: %w", collection, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %q: %w", collection, ErrCollectionNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete %q: commit: %w", collection, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// deleteSegments removes a collection's events and segments explicitly,
// without relying on foreign key cascades.
func deleteSegments(ctx context.Context, db execer, collection string) error {
	if _, err := db.ExecContext(ctx, `
		DELETE FROM events
		WHERE segment_id IN (SELECT id FROM segments WHERE collection = ?)
	`, collection); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM segments WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	return nil
}
