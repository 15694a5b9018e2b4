package ir

import "github.com/google/uuid"

// IDGenerator supplies ids for records created without one.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 record ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time, which keeps listings readable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Format: "0190b9a4-5e2c-7c3b-9a51-2f0d4c6e8b10" (36 characters)
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewRecordID returns a fresh UUIDv7 id value.
func NewRecordID() Value {
	return String(UUIDv7Generator{}.Generate())
}
