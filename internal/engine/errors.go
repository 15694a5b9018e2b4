package engine

import (
	"errors"
	"fmt"
	"time"
)

// Error represents a rejected engine operation.
//
// Every failure returned by Segment and Projector is an *Error. Callers match
// on the code with errors.Is against the sentinels below or with the IsXxx
// helpers, which also see through wrapping.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key is the entity key involved, if any.
	Key string

	// At is the timestamp involved, if any.
	At time.Time

	// Err is the underlying cause (set for CORRUPT_SEGMENT).
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeOutOfOrderEvent indicates an event predating the segment or its latest event.
	ErrCodeOutOfOrderEvent ErrorCode = "OUT_OF_ORDER_EVENT"

	// ErrCodeDuplicateCreate indicates a create for a key already present.
	ErrCodeDuplicateCreate ErrorCode = "DUPLICATE_CREATE"

	// ErrCodeMissingEntity indicates an update or delete of an absent key.
	ErrCodeMissingEntity ErrorCode = "MISSING_ENTITY"

	// ErrCodeNoPrecedingSegment indicates a merge requested on the first segment.
	ErrCodeNoPrecedingSegment ErrorCode = "NO_PRECEDING_SEGMENT"

	// ErrCodeSegmentNotFound indicates a timestamp before the store's epoch.
	ErrCodeSegmentNotFound ErrorCode = "SEGMENT_NOT_FOUND"

	// ErrCodeSegmentOverlap indicates a merge with a predecessor that does not fully precede.
	ErrCodeSegmentOverlap ErrorCode = "SEGMENT_OVERLAP"

	// ErrCodeCorruptSegment indicates stored history that no longer replays.
	ErrCodeCorruptSegment ErrorCode = "CORRUPT_SEGMENT"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrOutOfOrderEvent    = &Error{Code: ErrCodeOutOfOrderEvent}
	ErrDuplicateCreate    = &Error{Code: ErrCodeDuplicateCreate}
	ErrMissingEntity      = &Error{Code: ErrCodeMissingEntity}
	ErrNoPrecedingSegment = &Error{Code: ErrCodeNoPrecedingSegment}
	ErrSegmentNotFound    = &Error{Code: ErrCodeSegmentNotFound}
	ErrSegmentOverlap     = &Error{Code: ErrCodeSegmentOverlap}
	ErrCorruptSegment     = &Error{Code: ErrCodeCorruptSegment}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key=%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsOutOfOrder returns true if the error is an out-of-order push.
func IsOutOfOrder(err error) bool {
	return CodeOf(err) == ErrCodeOutOfOrderEvent
}

// IsDuplicateCreate returns true if the error is a create of an existing key.
func IsDuplicateCreate(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateCreate
}

// IsMissingEntity returns true if the error is an update or delete of an absent key.
func IsMissingEntity(err error) bool {
	return CodeOf(err) == ErrCodeMissingEntity
}

// IsSegmentNotFound returns true if the timestamp predates the store.
func IsSegmentNotFound(err error) bool {
	return CodeOf(err) == ErrCodeSegmentNotFound
}

// IsCorrupt returns true if stored history failed to replay.
func IsCorrupt(err error) bool {
	return CodeOf(err) == ErrCodeCorruptSegment
}

func newOutOfOrderError(msg string, at time.Time) *Error {
	return &Error{Code: ErrCodeOutOfOrderEvent, Message: msg, At: at}
}

func newSegmentNotFoundError(at time.Time) *Error {
	return &Error{
		Code:    ErrCodeSegmentNotFound,
		Message: fmt.Sprintf("no segment covers %s", at.Format(time.RFC3339Nano)),
		At:      at,
	}
}

func newCorruptError(msg string, cause error) *Error {
	return &Error{Code: ErrCodeCorruptSegment, Message: msg, Err: cause}
}
