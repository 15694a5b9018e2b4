// Package harness runs scripted histories against a repository and checks
// the result, for conformance tests and the `occ test` command.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: inventory_history
//	description: "What this scenario validates"
//	schema: inventory.cue          # optional, relative to the scenario
//	steps:
//	  - op: create
//	    record: { id: w1, stock: 3 }
//	    label: stocked
//	  - op: snapshot
//	    label: rollover
//	  - op: update
//	    record: { id: w1, stock: 1 }
//	  - op: create
//	    record: { id: w1, stock: 9 }
//	    expect_error: DUPLICATE_CREATE
//	  - op: merge
//	    at: rollover
//	assertions:
//	  - type: projection_at
//	    at: stocked
//	    expect: [{ id: w1, stock: 3 }]
//	  - type: segment_count
//	    count: 1
//
// Steps are create, update, delete (by id), snapshot, merge (at a label or a
// duration after the clock base), advance (move the clock) and mark (label
// the current instant). A label names the instant of its step.
//
// # Assertion Types
//
//   - projection_at: state as of an instant, in order
//   - latest: current state, in order
//   - events_since: kinds and/or count of EventsSince
//   - segment_count: number of segments
//   - get: one entity, now or as of an instant, or its absence
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock (testutil.DeterministicClock,
// one second per stamp from testutil.DefaultBase) and deterministic record ids
// (testutil.SequenceIDGenerator), so traces can be compared with golden files.
// Each step yields a trace event with its offset from the clock base and the
// segment count after it ran.
package harness
