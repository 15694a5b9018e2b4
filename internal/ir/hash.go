package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainEvent    = "occ/event/v1"
	DomainSnapshot = "occ/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventDigest computes the content digest of a stored event.
// The store recomputes it on load to detect tampered or truncated rows.
func EventDigest(kind string, at time.Time, payload Value) (string, error) {
	obj := Object{
		"kind":    String(kind),
		"ts":      Int(at.UnixNano()),
		"payload": payload,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// SnapshotDigest computes the content digest of a snapshot. Entity order is
// significant: projections preserve insertion order.
func SnapshotDigest(snapshot Array) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}
