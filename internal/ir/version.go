package ir

// Version constants for the record format and the tool.
const (
	// FormatVersion is the record and digest format version.
	FormatVersion = "1"

	// Version is the occ release version.
	Version = "0.1.0"
)
