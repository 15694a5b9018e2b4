package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/occ/internal/ir"
	"github.com/roach88/occ/internal/schema"
)

// ValidationResult reports the schema check of one record argument.
type ValidationResult struct {
	Index int    `json:"index"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <json>...",
		Short: "Check records against the CUE schema",
		Long: `Check JSON records against the schema given by --schema without
writing anything.

Exit codes:
  0 - All records valid
  1 - One or more records rejected
  2 - Command error (no schema, schema does not compile, malformed JSON)

Examples:
  occ validate --schema inventory.cue '{"id": "w1", "qty": 3}'
  occ validate --schema ./schema --definition '#Item' '{"id": 1}' '{"id": 2}'`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return NewExitError(ExitCommandError, "validate requires at least one record")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Schema == "" {
				return NewExitError(ExitCommandError, "validate requires --schema")
			}
			v, err := schema.Load(rootOpts.Schema, schema.WithDefinition(rootOpts.Definition))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load schema", err)
			}

			records := make([]ir.Record, len(args))
			for i, arg := range args {
				if records[i], err = parseRecordArg(arg); err != nil {
					return err
				}
			}

			out := rootOpts.formatter(cmd)
			results := make([]ValidationResult, len(records))
			failed := 0
			for i, rec := range records {
				results[i] = ValidationResult{Index: i, Valid: true}
				if err := v.Validate(rec); err != nil {
					results[i] = ValidationResult{Index: i, Error: err.Error()}
					failed++
				}
			}

			if out.JSON() {
				if failed > 0 {
					if err := out.Error(ErrCodeValidation, fmt.Sprintf("%d of %d records invalid", failed, len(results)), results); err != nil {
						return err
					}
				} else if err := out.Success(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Valid {
						fmt.Fprintf(out.Writer, "✓ record %d\n", r.Index)
					} else {
						fmt.Fprintf(out.Writer, "✗ record %d: %s\n", r.Index, r.Error)
					}
				}
			}

			if failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d records invalid", failed, len(results)))
			}
			return nil
		},
	}
}
