// Package engine implements the segmented snapshot/projection core of occ.
//
// Every mutation of an entity collection is an immutable, timestamped Event
// (create, update or delete). A Projector keeps the events in a chain of
// Segments; each segment holds the events of one time range plus the
// snapshot those events produce. Point-in-time projection replays only the
// events of the segment covering the requested instant, starting from the
// previous segment's snapshot.
//
// ARCHITECTURE:
//
// Segment chain:
// Segment i is authoritative for [start_i, start_i+1). Only the newest
// segment receives events. MakeSnapshot rolls over to a new segment seeded
// with the current state; MergeAt folds a segment back into its predecessor.
//
// Identity:
// Entities are located by Entity.Key, never by full-value equality, and are
// deep-copied with Entity.Clone whenever they cross a segment or API
// boundary.
//
// CRITICAL PATTERNS:
//
// Ordering:
// A segment rejects events older than its start or its latest event.
// Equal timestamps are accepted and replayed in push order.
//
// Inclusive boundary:
// ProjectAt(t) selects the rightmost segment starting at or before t and
// replays events stamped at or before t.
//
// Single writer:
// The engine starts no goroutines and does no I/O. Callers serialize access;
// repository.Repository wraps a Projector with a lock.
package engine
