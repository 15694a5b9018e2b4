package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/occ/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the harness state and
// returns one message per failure.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(h, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(h *Harness, a Assertion) error {
	switch a.Type {
	case AssertProjectionAt:
		return assertProjectionAt(h, a)
	case AssertLatest:
		return compareRecords(AssertLatest, a.Expect, h.repo.Projection())
	case AssertEventsSince:
		return assertEventsSince(h, a)
	case AssertSegmentCount:
		return assertSegmentCount(h, a)
	case AssertGet:
		return assertGet(h, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertProjectionAt compares the state as of At with Expect.
func assertProjectionAt(h *Harness, a Assertion) error {
	at, err := h.resolve(a.At)
	if err != nil {
		return err
	}
	got, err := h.repo.ProjectAt(at)
	if done, err := checkQueryError(AssertProjectionAt, a.ExpectError, err); done {
		return err
	}
	return compareRecords(AssertProjectionAt, a.Expect, got)
}

// assertEventsSince checks the kinds and count of EventsSince(At).
func assertEventsSince(h *Harness, a Assertion) error {
	at, err := h.resolve(a.At)
	if err != nil {
		return err
	}
	events := h.repo.EventsSince(at)

	if a.Count != nil && len(events) != *a.Count {
		return &AssertionError{
			Type:     AssertEventsSince,
			Expected: fmt.Sprintf("%d events since %s", *a.Count, a.At),
			Actual:   fmt.Sprintf("%d events", len(events)),
		}
	}
	if a.Kinds != nil {
		got := make([]string, len(events))
		for i, ev := range events {
			got[i] = ev.Kind().String()
		}
		if strings.Join(got, ",") != strings.Join(a.Kinds, ",") {
			return &AssertionError{
				Type:     AssertEventsSince,
				Expected: fmt.Sprintf("kinds %v", a.Kinds),
				Actual:   fmt.Sprintf("kinds %v", got),
			}
		}
	}
	return nil
}

func assertSegmentCount(h *Harness, a Assertion) error {
	if got := h.repo.SegmentCount(); got != *a.Count {
		return &AssertionError{
			Type:     AssertSegmentCount,
			Expected: fmt.Sprintf("%d segments", *a.Count),
			Actual:   fmt.Sprintf("%d segments", got),
		}
	}
	return nil
}

// assertGet looks one entity up, currently or as of At.
func assertGet(h *Harness, a Assertion) error {
	id, err := ir.FromAny(a.ID)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	key := ir.KeyOf(id)

	var (
		got ir.Record
		ok  bool
	)
	if a.At == "" {
		got, ok = h.repo.Get(key)
	} else {
		at, err := h.resolve(a.At)
		if err != nil {
			return err
		}
		var qerr error
		got, ok, qerr = h.repo.GetAt(key, at)
		if done, err := checkQueryError(AssertGet, a.ExpectError, qerr); done {
			return err
		}
	}

	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertGet,
				Expected: fmt.Sprintf("no entity with id %s", key),
				Actual:   describeRecord(got),
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertGet,
			Expected: fmt.Sprintf("entity with id %s", key),
			Actual:   "not found",
		}
	}

	want, err := ir.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	if !sameCanonical(want, ir.Object(got)) {
		return &AssertionError{
			Type:     AssertGet,
			Expected: describe(want),
			Actual:   describeRecord(got),
		}
	}
	return nil
}

// checkQueryError reconciles a query error with the expected code. It
// reports done when the assertion is settled by the error alone.
func checkQueryError(kind, expected string, err error) (bool, error) {
	code := errorCode(err)
	switch {
	case expected == "" && err != nil:
		return true, &AssertionError{Type: kind, Expected: "success", Actual: err.Error()}
	case expected != "" && code != expected:
		actual := code
		if actual == "" {
			actual = "success"
		}
		return true, &AssertionError{Type: kind, Expected: "error " + expected, Actual: actual}
	case expected != "":
		return true, nil
	}
	return false, nil
}

// compareRecords checks a projection against an expected YAML list, in order.
func compareRecords(kind string, expect any, got []ir.Record) error {
	if expect == nil {
		expect = []any{}
	}
	want, err := ir.FromAny(expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	if _, isList := want.(ir.Array); !isList {
		return fmt.Errorf("expect: %s requires a list of records", kind)
	}

	actual := make(ir.Array, len(got))
	for i, r := range got {
		actual[i] = ir.Object(r)
	}
	if !sameCanonical(want, actual) {
		return &AssertionError{
			Type:     kind,
			Expected: describe(want),
			Actual:   describe(actual),
		}
	}
	return nil
}

func sameCanonical(a, b ir.Value) bool {
	x, errA := ir.MarshalCanonical(a)
	y, errB := ir.MarshalCanonical(b)
	return errA == nil && errB == nil && bytes.Equal(x, y)
}

func describe(v ir.Value) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

func describeRecord(r ir.Record) string {
	return describe(ir.Object(r))
}
