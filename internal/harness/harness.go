package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/occ/internal/engine"
	"github.com/roach88/occ/internal/ir"
	"github.com/roach88/occ/internal/repository"
	"github.com/roach88/occ/internal/schema"
	"github.com/roach88/occ/internal/store"
	"github.com/roach88/occ/internal/testutil"
)

// ErrCodeValidation is the step error code for records rejected by the schema.
const ErrCodeValidation = "VALIDATION_FAILED"

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and id generator.
type Harness struct {
	repo   *repository.Repository[ir.Record]
	clock  *testutil.DeterministicClock
	ids    ir.IDGenerator
	labels map[string]time.Time
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh repository whose clock starts at
// testutil.DefaultBase and ticks one second per stamp, so traces are
// reproducible. After the steps the repository is saved to an in-memory
// store and loaded back; a mismatch fails the scenario.
//
// Run returns an error only when the scenario cannot be executed at all;
// unexpected step outcomes and failed assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewDeterministicClock(testutil.DefaultBase, time.Second)

	opts := []repository.Option{
		repository.WithClock(clock),
		repository.WithLogger(logger),
	}
	if scenario.Schema != "" {
		var schemaOpts []schema.Option
		if scenario.Definition != "" {
			schemaOpts = append(schemaOpts, schema.WithDefinition(scenario.Definition))
		}
		v, err := schema.Load(scenario.Schema, schemaOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		opts = append(opts, repository.WithValidator[ir.Record](v))
	}

	h := &Harness{
		repo:   repository.New[ir.Record](opts...),
		clock:  clock,
		ids:    testutil.NewSequenceIDGenerator("rec"),
		labels: map[string]time.Time{},
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}

	ctx := context.Background()
	if err := h.checkRoundTrip(ctx, scenario.Name, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step, records its trace event and checks its outcome
// against ExpectError. Only malformed steps return an error.
func (h *Harness) executeStep(i int, step Step, result *Result) error {
	var (
		id    ir.Value
		at    time.Time
		opErr error
		hasID bool
	)

	switch step.Op {
	case OpCreate, OpUpdate:
		rec, err := ir.RecordFromAny(step.Record)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		if _, ok := rec.ID(); !ok {
			rec = rec.WithID(ir.String(h.ids.Generate()))
		}
		if err := rec.CheckID(); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		id, hasID = rec.ID()

		var ev engine.Event[ir.Record]
		if step.Op == OpCreate {
			ev, opErr = h.repo.Create(rec)
		} else {
			ev, opErr = h.repo.Update(rec)
		}
		at = h.eventTime(ev, opErr)

	case OpDelete:
		v, err := ir.FromAny(step.ID)
		if err != nil {
			return fmt.Errorf("id: %w", err)
		}
		id, hasID = v, true

		var ev engine.Event[ir.Record]
		ev, opErr = h.repo.DeleteKey(ir.KeyOf(v))
		at = h.eventTime(ev, opErr)

	case OpSnapshot:
		at = h.repo.Snapshot()

	case OpMerge:
		target, err := h.resolve(step.At)
		if err != nil {
			return err
		}
		at = target
		opErr = h.repo.MergeAt(target)

	case OpAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		h.clock.Advance(d)
		at = h.clock.Current()

	case OpMark:
		at = h.clock.Current()

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Label != "" {
		h.labels[step.Label] = at
	}

	code := errorCode(opErr)
	ev := TraceEvent{
		Step:     i,
		Op:       step.Op,
		Offset:   offset(at),
		Segments: h.repo.SegmentCount(),
		Error:    code,
	}
	if hasID {
		ev.ID = ir.ToAny(id)
	}
	result.AddTrace(ev)

	switch {
	case step.ExpectError != "" && code != step.ExpectError:
		got := code
		if got == "" {
			got = "success"
		}
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s", i, step.Op, step.ExpectError, got))
	case step.ExpectError == "" && opErr != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Op, opErr))
	}

	h.logger.Info("step completed",
		"step", i,
		"op", step.Op,
		"offset", ev.Offset,
		"error", code,
	)
	return nil
}

// eventTime is the instant a mutation was stamped at. A rejected mutation
// still consumed a clock tick.
func (h *Harness) eventTime(ev engine.Event[ir.Record], err error) time.Time {
	if err != nil {
		return h.clock.Current()
	}
	return ev.Timestamp()
}

// checkRoundTrip saves the repository to an in-memory store, loads it back
// and compares the two.
func (h *Harness) checkRoundTrip(ctx context.Context, name string, result *Result) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	coll := store.NewCollection[ir.Record](st, name)
	if err := h.repo.Persist(ctx, coll); err != nil {
		result.AddError(fmt.Sprintf("round trip: %v", err))
		return nil
	}
	loaded, err := repository.Load[ir.Record](ctx, coll, repository.WithLogger(h.logger))
	if err != nil {
		result.AddError(fmt.Sprintf("round trip: %v", err))
		return nil
	}

	if loaded.SegmentCount() != h.repo.SegmentCount() {
		result.AddError(fmt.Sprintf("round trip: %d segments saved, %d loaded", h.repo.SegmentCount(), loaded.SegmentCount()))
	}
	if !sameRecords(h.repo.Projection(), loaded.Projection()) {
		result.AddError("round trip: latest projection changed")
	}
	return nil
}

// resolve turns a label or a duration after the clock base into an instant.
func (h *Harness) resolve(ref string) (time.Time, error) {
	if t, ok := h.labels[ref]; ok {
		return t, nil
	}
	if d, err := time.ParseDuration(ref); err == nil {
		return testutil.DefaultBase.Add(d), nil
	}
	return time.Time{}, fmt.Errorf("unknown label %q", ref)
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, repository.ErrValidation) {
		return ErrCodeValidation
	}
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func offset(t time.Time) string {
	return t.Sub(testutil.DefaultBase).String()
}

func isDuration(s string) bool {
	_, err := time.ParseDuration(s)
	return err == nil
}

func sameRecords(a, b []ir.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
