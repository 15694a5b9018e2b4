package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/occ/internal/engine"
)

// CollectionInfo summarizes a stored collection.
type CollectionInfo struct {
	Name      string    `json:"name"`
	Segments  int       `json:"segments"`
	Events    int       `json:"events"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Load reads a collection's segments back, oldest first.
//
// Every snapshot and event digest is recomputed and compared; a mismatch is
// reported as an engine CORRUPT_SEGMENT error. Returns ErrCollectionNotFound
// if the collection was never saved.
func Load[T engine.Entity[T]](ctx context.Context, s *Store, collection string) ([]engine.SegmentData[T], error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM collections WHERE name = ?`, collection).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %q: %w", collection, ErrCollectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", collection, err)
	}

	segments, index, err := loadSegments[T](ctx, s, collection)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", collection, err)
	}
	if err := loadEvents(ctx, s, collection, segments, index); err != nil {
		return nil, fmt.Errorf("load %q: %w", collection, err)
	}
	return segments, nil
}

// loadSegments reads segment rows ordered by position and returns them with
// an index from segment id to slice position.
func loadSegments[T engine.Entity[T]](ctx context.Context, s *Store, collection string) ([]engine.SegmentData[T], map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_ns, snapshot, snapshot_digest
		FROM segments
		WHERE collection = ?
		ORDER BY position ASC
	`, collection)
	if err != nil {
		return nil, nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	segments := []engine.SegmentData[T]{}
	index := map[string]int{}
	for rows.Next() {
		var (
			id, snapshotText, digest string
			startNs                  int64
		)
		if err := rows.Scan(&id, &startNs, &snapshotText, &digest); err != nil {
			return nil, nil, fmt.Errorf("scan segment: %w", err)
		}

		snapshot, err := decodeSnapshot[T](snapshotText, digest)
		if err != nil {
			return nil, nil, fmt.Errorf("segment %d: %w", len(segments), err)
		}

		index[id] = len(segments)
		segments = append(segments, engine.SegmentData[T]{
			Start:    time.Unix(0, startNs).UTC(),
			Snapshot: snapshot,
			Events:   []engine.Event[T]{},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, index, nil
}

// loadEvents reads every event of the collection in one query, after the
// segment rows are closed: the store holds a single connection.
func loadEvents[T engine.Entity[T]](ctx context.Context, s *Store, collection string, segments []engine.SegmentData[T], index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.segment_id, e.ts_ns, e.kind, e.payload, e.digest
		FROM events e
		JOIN segments s ON s.id = e.segment_id
		WHERE s.collection = ?
		ORDER BY s.position ASC, e.position ASC
	`, collection)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			segmentID, kind, payload, digest string
			tsNs                             int64
		)
		if err := rows.Scan(&segmentID, &tsNs, &kind, &payload, &digest); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}

		pos, ok := index[segmentID]
		if !ok {
			return corrupt(fmt.Sprintf("event references unknown segment %s", segmentID), nil)
		}

		ev, err := decodeEvent[T](tsNs, kind, payload, digest)
		if err != nil {
			return fmt.Errorf("segment %d event %d: %w", pos, len(segments[pos].Events), err)
		}
		segments[pos].Events = append(segments[pos].Events, ev)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	return nil
}

// ListCollections returns every stored collection ordered by name.
//
// Returns an empty slice (not nil) if the store holds no collections.
func (s *Store) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.updated_ns,
		       (SELECT COUNT(*) FROM segments s WHERE s.collection = c.name),
		       (SELECT COUNT(*) FROM events e JOIN segments s ON s.id = e.segment_id WHERE s.collection = c.name)
		FROM collections c
		ORDER BY c.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	infos := []CollectionInfo{}
	for rows.Next() {
		var (
			info      CollectionInfo
			updatedNs int64
		)
		if err := rows.Scan(&info.Name, &updatedNs, &info.Segments, &info.Events); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		info.UpdatedAt = time.Unix(0, updatedNs).UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return infos, nil
}
