package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"code only", &Error{Code: ErrCodeSegmentOverlap}, "SEGMENT_OVERLAP"},
		{"with message", &Error{Code: ErrCodeMissingEntity, Message: "entity does not exist"}, "MISSING_ENTITY: entity does not exist"},
		{"with key", &Error{Code: ErrCodeDuplicateCreate, Message: "entity already exists", Key: "42"}, "DUPLICATE_CREATE: entity already exists (key=42)"},
		{"with cause", newCorruptError("segment 1", errors.New("boom")), "CORRUPT_SEGMENT: segment 1: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("repository: %w", &Error{Code: ErrCodeMissingEntity, Key: "a"})

	assert.ErrorIs(t, err, ErrMissingEntity)
	assert.NotErrorIs(t, err, ErrDuplicateCreate)
	assert.True(t, IsMissingEntity(err))
	assert.False(t, IsDuplicateCreate(err))
	assert.Equal(t, ErrCodeMissingEntity, CodeOf(err))
}

func TestCodeOf_NonEngineError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestSegmentNotFoundError_CarriesInstant(t *testing.T) {
	err := newSegmentNotFoundError(at(0))

	assert.Equal(t, at(0), err.At)
	assert.Contains(t, err.Error(), "2026-01-01T00:00:00Z")
	assert.True(t, IsSegmentNotFound(err))
}
