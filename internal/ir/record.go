package ir

import (
	"bytes"
	"fmt"
)

// IDField is the record field holding its identity.
const IDField = "id"

// Record is a schemaless JSON document identified by its "id" field.
//
// Record implements engine.Entity[Record]: Key is the canonical JSON of the
// id, so the string "7" and the integer 7 are different records.
type Record Object

// ParseRecord decodes a JSON object into a Record.
// The id is not required here; see CheckID.
func ParseRecord(data []byte) (Record, error) {
	v, err := ParseValue(data)
	if err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("parse record: expected JSON object, got %s", describe(v))
	}
	return Record(obj), nil
}

// RecordFromAny converts decoded YAML or JSON data into a Record.
func RecordFromAny(data map[string]any) (Record, error) {
	v, err := FromAny(data)
	if err != nil {
		return nil, err
	}
	return Record(v.(Object)), nil
}

// Key returns the canonical JSON of the id, or "" when the record has none.
func (r Record) Key() string {
	id, ok := r[IDField]
	if !ok {
		return ""
	}
	b, err := MarshalCanonical(id)
	if err != nil {
		return ""
	}
	return string(b)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(CloneValue(Object(r)).(Object))
}

// ID returns the record's id value.
func (r Record) ID() (Value, bool) {
	id, ok := r[IDField]
	return id, ok
}

// WithID returns a copy of the record with its id set.
func (r Record) WithID(id Value) Record {
	c := r.Clone()
	if c == nil {
		c = Record{}
	}
	c[IDField] = id
	return c
}

// CheckID verifies the record has a string or integer id.
func (r Record) CheckID() error {
	id, ok := r[IDField]
	if !ok {
		return fmt.Errorf("record has no %q field", IDField)
	}
	switch v := id.(type) {
	case String:
		if v == "" {
			return fmt.Errorf("record %q must not be empty", IDField)
		}
		return nil
	case Int:
		return nil
	default:
		return fmt.Errorf("record %q must be a string or integer, got %s", IDField, describe(id))
	}
}

// Equal reports whether both records have the same canonical JSON.
func (r Record) Equal(other Record) bool {
	a, errA := MarshalCanonical(Object(r))
	b, errB := MarshalCanonical(Object(other))
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// MarshalJSON writes the record as canonical JSON.
func (r Record) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(Object(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRecord(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseID interprets a command-line id argument. Decimal integers become Int,
// anything else a String. A JSON string literal forces a string id.
func ParseID(s string) Value {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if v, err := ParseValue([]byte(s)); err == nil {
			if str, ok := v.(String); ok {
				return str
			}
		}
	}
	if v, err := ParseValue([]byte(s)); err == nil {
		if n, ok := v.(Int); ok {
			return n
		}
	}
	return String(s)
}

// KeyOf returns the record key for an id value.
func KeyOf(id Value) string {
	return Record{IDField: id}.Key()
}
