// Package store provides SQLite-backed durable storage for segmented entity
// collections.
//
// A collection is the persisted form of one engine.Projector:
//   - collections: one row per named collection
//   - segments: ordered by position, each with its snapshot and digest
//   - events: ordered by position within their segment, each with a digest
//
// # Critical Patterns
//
// Whole-collection writes:
//   - Save replaces a collection inside one transaction
//   - a reader never observes a half-written chain
//
// Content digests:
//   - snapshots and payloads are stored as RFC 8785 canonical JSON
//   - digests are SHA-256 with domain separation (internal/ir/hash.go)
//   - Load recomputes every digest and reports mismatches as CORRUPT_SEGMENT
//
// Deterministic order:
//   - all reads use ORDER BY position, never timestamps, so equal
//     timestamps come back in push order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
