package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/occ/internal/engine"
	"github.com/roach88/occ/internal/ir"
)

// encodeEntity converts an entity to canonical JSON TEXT for storage.
// The entity's JSON form must be float-free; see ir.ParseValue.
// Also returns the parsed value for digest computation.
func encodeEntity(v any) (string, ir.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("marshal entity: %w", err)
	}
	val, err := ir.ParseValue(raw)
	if err != nil {
		return "", nil, fmt.Errorf("marshal entity: %w", err)
	}
	canonical, err := ir.MarshalCanonical(val)
	if err != nil {
		return "", nil, fmt.Errorf("marshal entity: %w", err)
	}
	return string(canonical), val, nil
}

// encodeSnapshot converts a snapshot to canonical JSON TEXT and its digest.
func encodeSnapshot[T engine.Entity[T]](snapshot []T) (string, string, error) {
	if snapshot == nil {
		snapshot = []T{}
	}
	text, val, err := encodeEntity(snapshot)
	if err != nil {
		return "", "", fmt.Errorf("encode snapshot: %w", err)
	}
	arr, ok := val.(ir.Array)
	if !ok {
		return "", "", fmt.Errorf("encode snapshot: expected array, got %T", val)
	}
	digest, err := ir.SnapshotDigest(arr)
	if err != nil {
		return "", "", fmt.Errorf("encode snapshot: %w", err)
	}
	return text, digest, nil
}

// encodeEvent converts an event's payload to canonical JSON TEXT and computes
// the event digest.
func encodeEvent[T engine.Entity[T]](ev engine.Event[T]) (string, string, error) {
	text, val, err := encodeEntity(ev.Payload())
	if err != nil {
		return "", "", fmt.Errorf("encode event: %w", err)
	}
	digest, err := ir.EventDigest(ev.Kind().String(), ev.Timestamp(), val)
	if err != nil {
		return "", "", fmt.Errorf("encode event: %w", err)
	}
	return text, digest, nil
}

// decodeSnapshot parses stored snapshot TEXT after checking its digest.
func decodeSnapshot[T engine.Entity[T]](text, digest string) ([]T, error) {
	val, err := ir.ParseValue([]byte(text))
	if err != nil {
		return nil, corrupt("snapshot is not valid JSON", err)
	}
	arr, ok := val.(ir.Array)
	if !ok {
		return nil, corrupt("snapshot is not a JSON array", nil)
	}
	got, err := ir.SnapshotDigest(arr)
	if err != nil {
		return nil, corrupt("snapshot digest", err)
	}
	if got != digest {
		return nil, corrupt(fmt.Sprintf("snapshot digest mismatch: stored %s, computed %s", short(digest), short(got)), nil)
	}

	snapshot := []T{}
	if err := json.Unmarshal([]byte(text), &snapshot); err != nil {
		return nil, corrupt("decode snapshot", err)
	}
	return snapshot, nil
}

// decodeEvent rebuilds an event from its stored columns after checking its digest.
func decodeEvent[T engine.Entity[T]](tsNs int64, kindText, payload, digest string) (engine.Event[T], error) {
	var zero engine.Event[T]

	kind, err := engine.ParseKind(kindText)
	if err != nil {
		return zero, corrupt("event kind", err)
	}
	at := time.Unix(0, tsNs).UTC()

	val, err := ir.ParseValue([]byte(payload))
	if err != nil {
		return zero, corrupt("event payload is not valid JSON", err)
	}
	got, err := ir.EventDigest(kindText, at, val)
	if err != nil {
		return zero, corrupt("event digest", err)
	}
	if got != digest {
		return zero, corrupt(fmt.Sprintf("event digest mismatch: stored %s, computed %s", short(digest), short(got)), nil)
	}

	var entity T
	if err := json.Unmarshal([]byte(payload), &entity); err != nil {
		return zero, corrupt("decode event payload", err)
	}
	return engine.NewEvent(kind, at, entity), nil
}

func corrupt(msg string, cause error) error {
	return &engine.Error{Code: engine.ErrCodeCorruptSegment, Message: msg, Err: cause}
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
