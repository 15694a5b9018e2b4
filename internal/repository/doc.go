// Package repository is the CRUD façade over an engine.Projector.
//
// A Repository stamps events with its clock, runs an optional Validator
// before creates and updates, and serializes access with a sync.RWMutex:
// mutations are exclusive, reads are shared and always return copies.
//
// Persistence is pluggable. Persist hands the projector's segments to a
// Persister and Load rebuilds a repository from a Loader; store.Collection
// implements both.
package repository
