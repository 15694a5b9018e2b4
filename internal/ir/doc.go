// Package ir provides the record values stored by occ.
//
// This package contains value types, canonical JSON and digests only. All
// other internal packages may import ir; ir imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere: numbers are int64
//   - canonical JSON (RFC 8785) is the only form used for keys and digests
//   - a Record is identified by its "id" field, compared by canonical form
package ir
