package schema

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occ/internal/ir"
)

const inventorySchema = `
#Entity: {
	id:    string | int
	name:  string & !=""
	stock: int & >=0
	tags?: [...string]
}
`

func mustCompile(t *testing.T, src string, opts ...Option) *Validator {
	t.Helper()
	v, err := Compile(src, "inventory.cue", opts...)
	require.NoError(t, err)
	return v
}

func record(t *testing.T, js string) ir.Record {
	t.Helper()
	r, err := ir.ParseRecord([]byte(js))
	require.NoError(t, err)
	return r
}

func TestValidate_AcceptsConformingRecords(t *testing.T) {
	v := mustCompile(t, inventorySchema)

	tests := []string{
		`{"id": "w-1", "name": "widget", "stock": 3}`,
		`{"id": 7, "name": "gadget", "stock": 0}`,
		`{"id": "w-2", "name": "gizmo", "stock": 1, "tags": ["a", "b"]}`,
	}
	for _, js := range tests {
		t.Run(js, func(t *testing.T) {
			assert.NoError(t, v.Validate(record(t, js)))
		})
	}
}

func TestValidate_RejectsViolations(t *testing.T) {
	v := mustCompile(t, inventorySchema)

	tests := []struct {
		name string
		json string
		path string
	}{
		{"negative stock", `{"id": "w-1", "name": "widget", "stock": -1}`, "stock"},
		{"wrong type", `{"id": "w-1", "name": 5, "stock": 1}`, "name"},
		{"empty name", `{"id": "w-1", "name": "", "stock": 1}`, "name"},
		{"unknown field", `{"id": "w-1", "name": "widget", "stock": 1, "color": "red"}`, "color"},
		{"bad tag", `{"id": "w-1", "name": "widget", "stock": 1, "tags": [1]}`, "tags"},
		{"bool id", `{"id": true, "name": "widget", "stock": 1}`, "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(record(t, tt.json))
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want *ValidationError, got %T", err)
			assert.True(t, strings.HasPrefix(ve.Path, tt.path), "path %q, want prefix %q", ve.Path, tt.path)
			assert.NotEmpty(t, ve.Message)
		})
	}
}

func TestValidate_RequiresConcreteFields(t *testing.T) {
	v := mustCompile(t, inventorySchema)

	err := v.Validate(record(t, `{"id": "w-1", "name": "widget"}`))
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "stock", ve.Path)
}

func TestCompile_CustomDefinition(t *testing.T) {
	v := mustCompile(t, `
		#Note: {
			id:   string
			text: string
		}
	`, WithDefinition("#Note"))

	assert.Equal(t, "#Note", v.Definition())
	assert.NoError(t, v.Validate(record(t, `{"id": "n1", "text": "hello"}`)))
	assert.Error(t, v.Validate(record(t, `{"id": "n1"}`)))
}

func TestCompile_EmptyDefinitionKeepsDefault(t *testing.T) {
	v := mustCompile(t, `
		#Entity: {id: string}
		name: string
	`, WithDefinition(""))

	assert.Equal(t, DefaultDefinition, v.Definition())
	assert.NoError(t, v.Validate(record(t, `{"id": "e1"}`)))
	assert.Error(t, v.Validate(record(t, `{"id": "e1", "name": "x"}`)), "closed #Entity rejects fields only the root allows")
}

func TestCompile_MissingDefinition(t *testing.T) {
	_, err := Compile(`#Other: {id: string}`, "other.cue")
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, DefaultDefinition, ve.Path)
	assert.Contains(t, err.Error(), "definition not found")
}

func TestCompile_SyntaxErrorHasPosition(t *testing.T) {
	_, err := Compile("#Entity: {\n\tid: string &\n}\n", "bad.cue")
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Pos.IsValid(), "syntax error should carry a position")
	assert.Equal(t, "bad.cue", ve.Pos.Filename())
	assert.Contains(t, err.Error(), "bad.cue:")
}

func TestLoad_File(t *testing.T) {
	v, err := Load(filepath.Join("testdata", "inventory.cue"))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(record(t, `{"id": "w-1", "name": "widget", "stock": 3}`)))
	assert.Error(t, v.Validate(record(t, `{"id": "w-1", "name": "widget", "stock": -3}`)))
}

func TestLoad_FileWithDefinition(t *testing.T) {
	v, err := Load(filepath.Join("testdata", "inventory.cue"), WithDefinition("#Note"))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(record(t, `{"id": "n1", "text": "x"}`)))
}

func TestLoad_DirectoryUnifiesFiles(t *testing.T) {
	v, err := Load(filepath.Join("testdata", "multi"))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(record(t, `{"id": "book-1", "kind": "book"}`)))
	assert.Error(t, v.Validate(record(t, `{"id": "Book1", "kind": "book"}`)), "id pattern comes from a sibling file")
	assert.Error(t, v.Validate(record(t, `{"id": "book-1", "kind": "song"}`)))
}

func TestLoad_BrokenFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "broken.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	assert.Error(t, err)
}

func TestValidationError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{"message only", &ValidationError{Message: "boom"}, "boom"},
		{"with path", &ValidationError{Path: "stock", Message: "invalid value"}, "stock: invalid value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
