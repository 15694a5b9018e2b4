// Package schema validates records against CUE definitions.
//
// A schema is one or more .cue files defining a closed definition, #Entity by
// default:
//
//	#Entity: {
//		id:    string | int
//		name:  string
//		stock: int & >=0
//	}
//
// A record is valid when it unifies with the definition and the result is
// concrete. Definitions are closed, so unknown fields are rejected.
package schema
