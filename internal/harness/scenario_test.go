package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesSchema(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "schema_validation.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "schema_validation", scenario.Name)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "inventory.cue"), scenario.Schema)
	assert.Len(t, scenario.Steps, 5)
	assert.Equal(t, "VALIDATION_FAILED", scenario.Steps[1].ExpectError)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	content := `
name: s
description: d
schema: nowhere.cue
steps:
  - op: snapshot
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: s
description: d
steps:
  - op: snapshot
assertion:
  - type: latest
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{op: snapshot}]",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: s\nsteps: [{op: snapshot}]",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: s\ndescription: d",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			yaml: "name: s\ndescription: d\nsteps: [{op: upsert}]",
			want: `unknown op "upsert"`,
		},
		{
			name: "missing op",
			yaml: "name: s\ndescription: d\nsteps: [{label: x}]",
			want: "op is required",
		},
		{
			name: "create without record",
			yaml: "name: s\ndescription: d\nsteps: [{op: create}]",
			want: "record is required for create",
		},
		{
			name: "update without id",
			yaml: "name: s\ndescription: d\nsteps: [{op: update, record: {v: 1}}]",
			want: "record.id is required for update",
		},
		{
			name: "delete without id",
			yaml: "name: s\ndescription: d\nsteps: [{op: delete}]",
			want: "id is required for delete",
		},
		{
			name: "merge on later label",
			yaml: "name: s\ndescription: d\nsteps: [{op: merge, at: x}, {op: snapshot, label: x}]",
			want: "neither an earlier label nor a duration",
		},
		{
			name: "bad advance",
			yaml: "name: s\ndescription: d\nsteps: [{op: advance, duration: soon}]",
			want: "invalid for advance",
		},
		{
			name: "mark without label",
			yaml: "name: s\ndescription: d\nsteps: [{op: mark}]",
			want: "label is required for mark",
		},
		{
			name: "duplicate label",
			yaml: "name: s\ndescription: d\nsteps: [{op: mark, label: x}, {op: snapshot, label: x}]",
			want: `duplicate label "x"`,
		},
		{
			name: "unknown assertion",
			yaml: "name: s\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: final_state}]",
			want: `unknown assertion type "final_state"`,
		},
		{
			name: "segment_count without count",
			yaml: "name: s\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: segment_count}]",
			want: "positive count is required",
		},
		{
			name: "events_since without expectation",
			yaml: "name: s\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: events_since, at: 0s}]",
			want: "kinds or count is required",
		},
		{
			name: "get without expectation",
			yaml: "name: s\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: get, id: a}]",
			want: "expect, absent or expect_error is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
