package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the operation an event records.
type Kind uint8

const (
	// KindCreate introduces an entity that must not exist yet.
	KindCreate Kind = iota + 1

	// KindUpdate replaces an existing entity with the payload.
	KindUpdate

	// KindDelete removes an existing entity. The payload is only used for its key.
	KindDelete
)

// String returns the lowercase name used in logs, JSON and the store.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind converts a name produced by Kind.String back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "create":
		return KindCreate, nil
	case "update":
		return KindUpdate, nil
	case "delete":
		return KindDelete, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(data []byte) error {
	parsed, err := ParseKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is an immutable record of a single create, update or delete.
//
// The payload is the entity after the operation. For deletes it is the last
// known value and only its key matters.
type Event[T Entity[T]] struct {
	timestamp time.Time
	kind      Kind
	payload   T
}

// NewEvent builds an event with an explicit timestamp.
// Used when restoring persisted logs and when stamping from an injected Clock.
func NewEvent[T Entity[T]](kind Kind, at time.Time, payload T) Event[T] {
	return Event[T]{timestamp: at, kind: kind, payload: payload}
}

// Create builds a create event stamped with the current time.
func Create[T Entity[T]](payload T) Event[T] {
	return NewEvent(KindCreate, SystemClock{}.Now(), payload)
}

// Update builds an update event stamped with the current time.
func Update[T Entity[T]](payload T) Event[T] {
	return NewEvent(KindUpdate, SystemClock{}.Now(), payload)
}

// Delete builds a delete event stamped with the current time.
func Delete[T Entity[T]](payload T) Event[T] {
	return NewEvent(KindDelete, SystemClock{}.Now(), payload)
}

// Timestamp returns the instant the event was recorded.
func (e Event[T]) Timestamp() time.Time { return e.timestamp }

// Kind returns the operation kind.
func (e Event[T]) Kind() Kind { return e.kind }

// Payload returns the carried entity.
func (e Event[T]) Payload() T { return e.payload }

// IntoPayload hands the payload over to the caller as an independent copy.
func (e Event[T]) IntoPayload() T { return e.payload.Clone() }

// Compare orders events by timestamp only. Equal timestamps compare as 0.
func (e Event[T]) Compare(other Event[T]) int {
	return e.timestamp.Compare(other.timestamp)
}

// Before reports whether e was recorded strictly before other.
func (e Event[T]) Before(other Event[T]) bool {
	return e.timestamp.Before(other.timestamp)
}

// clone returns an event whose payload does not alias e's.
func (e Event[T]) clone() Event[T] {
	return Event[T]{timestamp: e.timestamp, kind: e.kind, payload: e.payload.Clone()}
}

type eventJSON[T any] struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Payload   T         `json:"payload"`
}

// MarshalJSON implements json.Marshaler.
func (e Event[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON[T]{
		Timestamp: e.timestamp,
		Kind:      e.kind,
		Payload:   e.payload,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event[T]) UnmarshalJSON(data []byte) error {
	var raw eventJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if raw.Kind == 0 {
		return fmt.Errorf("unmarshal event: kind is required")
	}
	*e = Event[T]{timestamp: raw.Timestamp, kind: raw.Kind, payload: raw.Payload}
	return nil
}
