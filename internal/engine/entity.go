package engine

// Entity is the constraint on values stored in a projector.
//
// Key identifies the logical entity across versions. Two values with the same
// key are the same entity even when other fields differ; updates and deletes
// find their target by key.
//
// Clone returns a deep copy. Snapshots are branched across segments by
// cloning, so a clone must share no mutable state with the original.
type Entity[T any] interface {
	Key() string
	Clone() T
}

// cloneAll deep-copies a slice of entities. A nil input yields an empty slice.
func cloneAll[T Entity[T]](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}

// indexOf returns the position of the entity with the given key, or -1.
func indexOf[T Entity[T]](snapshot []T, key string) int {
	for i, v := range snapshot {
		if v.Key() == key {
			return i
		}
	}
	return -1
}
