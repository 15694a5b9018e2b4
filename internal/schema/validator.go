package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/occ/internal/ir"
)

// DefaultDefinition is the definition records are checked against unless
// WithDefinition names another.
const DefaultDefinition = "#Entity"

// ValidationError reports a record or schema problem with its CUE position.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Option configures a Validator.
type Option func(*options)

type options struct {
	definition string
}

// WithDefinition selects the definition records are unified with.
// An empty name keeps DefaultDefinition.
func WithDefinition(name string) Option {
	return func(o *options) {
		if name != "" {
			o.definition = name
		}
	}
}

// Validator checks records against a compiled CUE definition.
//
// A cue.Context is not safe for concurrent use, so Validate holds a lock.
type Validator struct {
	mu         sync.Mutex
	ctx        *cue.Context
	def        cue.Value
	definition string
}

// Load reads a schema from a .cue file or from every .cue file of a directory.
func Load(path string, opts ...Option) (*Validator, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !info.IsDir() {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("load schema %s: no CUE instances loaded", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, formatCUEError(inst.Err))
	}

	ctx := cuecontext.New()
	return build(ctx, ctx.BuildInstance(inst), opts)
}

// Compile builds a validator from CUE source; filename is used in positions.
func Compile(src, filename string, opts ...Option) (*Validator, error) {
	ctx := cuecontext.New()
	return build(ctx, ctx.CompileString(src, cue.Filename(filename)), opts)
}

func build(ctx *cue.Context, root cue.Value, opts []Option) (*Validator, error) {
	o := options{definition: DefaultDefinition}
	for _, opt := range opts {
		opt(&o)
	}

	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := root.LookupPath(cue.ParsePath(o.definition))
	if !def.Exists() {
		return nil, &ValidationError{
			Path:    o.definition,
			Message: "definition not found",
			Pos:     root.Pos(),
		}
	}
	if err := def.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return &Validator{ctx: ctx, def: def, definition: o.definition}, nil
}

// Definition returns the name of the definition records are checked against.
func (v *Validator) Definition() string {
	return v.definition
}

// Validate unifies the record with the definition and requires every field
// to be concrete. The first violation is returned as a *ValidationError.
func (v *Validator) Validate(r ir.Record) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.Encode(ir.ToAny(ir.Object(r)))
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	unified := v.def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError extracts path and position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	format, args := first.Msg()
	ve := &ValidationError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}
