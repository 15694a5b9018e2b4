package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted history run against a fresh repository.
// Steps mutate the repository on a deterministic clock; assertions then
// check projections, event ranges and segment counts.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional .cue file records are validated against.
	// Relative paths are resolved against the scenario file's directory.
	Schema string `yaml:"schema,omitempty"`

	// Definition selects the CUE definition; defaults to #Entity.
	Definition string `yaml:"definition,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after every step has run.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation against the repository.
type Step struct {
	// Op is one of create, update, delete, snapshot, merge, advance, mark.
	Op string `yaml:"op"`

	// Record is the entity for create and update. A create without an id
	// gets a deterministic one.
	Record map[string]any `yaml:"record,omitempty"`

	// ID names the entity for delete.
	ID any `yaml:"id,omitempty"`

	// At is the instant merge targets: a label or a duration after the
	// clock base.
	At string `yaml:"at,omitempty"`

	// Duration is how far advance moves the clock (e.g. "5s").
	Duration string `yaml:"duration,omitempty"`

	// Label names the instant of this step for later reference.
	Label string `yaml:"label,omitempty"`

	// ExpectError is the error code this step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpSnapshot = "snapshot"
	OpMerge    = "merge"
	OpAdvance  = "advance"
	OpMark     = "mark"
)

// Assertion validates the repository after the steps.
type Assertion struct {
	// Type specifies the assertion type:
	// - "projection_at": state as of At equals Expect
	// - "latest": current state equals Expect
	// - "events_since": EventsSince(At) has Kinds (and Count, if set)
	// - "segment_count": the repository holds Count segments
	// - "get": entity ID (as of At, if set) equals Expect, or is Absent
	Type string `yaml:"type"`

	// At is a label or a duration after the clock base.
	At string `yaml:"at,omitempty"`

	// ID names the entity (used by get).
	ID any `yaml:"id,omitempty"`

	// Expect is the expected state: a list of records for projection_at and
	// latest, a single record for get.
	Expect any `yaml:"expect,omitempty"`

	// Absent asserts that get finds nothing.
	Absent bool `yaml:"absent,omitempty"`

	// Kinds are the expected event kinds, in order (used by events_since).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of events or segments.
	Count *int `yaml:"count,omitempty"`

	// ExpectError is the error code the query must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion type constants.
const (
	AssertProjectionAt = "projection_at"
	AssertLatest       = "latest"
	AssertEventsSince  = "events_since"
	AssertSegmentCount = "segment_count"
	AssertGet          = "get"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A relative schema path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	labels := map[string]bool{}
	for i, step := range s.Steps {
		if err := validateStep(i, step, labels); err != nil {
			return err
		}
		if step.Label != "" {
			if labels[step.Label] {
				return fmt.Errorf("steps[%d]: duplicate label %q", i, step.Label)
			}
			labels[step.Label] = true
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, labels map[string]bool) error {
	switch step.Op {
	case OpCreate:
		if step.Record == nil {
			return fmt.Errorf("steps[%d]: record is required for create", index)
		}
	case OpUpdate:
		if step.Record == nil {
			return fmt.Errorf("steps[%d]: record is required for update", index)
		}
		if _, ok := step.Record["id"]; !ok {
			return fmt.Errorf("steps[%d]: record.id is required for update", index)
		}
	case OpDelete:
		if step.ID == nil {
			return fmt.Errorf("steps[%d]: id is required for delete", index)
		}
	case OpMerge:
		if step.At == "" {
			return fmt.Errorf("steps[%d]: at is required for merge", index)
		}
		if !labels[step.At] && !isDuration(step.At) {
			return fmt.Errorf("steps[%d]: at %q is neither an earlier label nor a duration", index, step.At)
		}
	case OpAdvance:
		if !isDuration(step.Duration) {
			return fmt.Errorf("steps[%d]: duration %q is invalid for advance", index, step.Duration)
		}
	case OpMark:
		if step.Label == "" {
			return fmt.Errorf("steps[%d]: label is required for mark", index)
		}
	case OpSnapshot:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertProjectionAt:
		if a.At == "" {
			return fmt.Errorf("assertions[%d]: at is required for projection_at", index)
		}
	case AssertLatest:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for latest", index)
		}
	case AssertEventsSince:
		if a.At == "" {
			return fmt.Errorf("assertions[%d]: at is required for events_since", index)
		}
		if a.Kinds == nil && a.Count == nil {
			return fmt.Errorf("assertions[%d]: kinds or count is required for events_since", index)
		}
	case AssertSegmentCount:
		if a.Count == nil || *a.Count < 1 {
			return fmt.Errorf("assertions[%d]: positive count is required for segment_count", index)
		}
	case AssertGet:
		if a.ID == nil {
			return fmt.Errorf("assertions[%d]: id is required for get", index)
		}
		if a.Expect == nil && !a.Absent && a.ExpectError == "" {
			return fmt.Errorf("assertions[%d]: expect, absent or expect_error is required for get", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
