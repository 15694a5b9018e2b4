package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/occ/internal/engine"
	"github.com/roach88/occ/internal/ir"
)

// MutationResult is the JSON payload for create, update and delete.
type MutationResult struct {
	Collection string    `json:"collection"`
	Event      EventView `json:"event"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <json>",
		Short: "Create an entity",
		Long: `Create an entity from a JSON object.

A record without an "id" field gets a generated UUID. A given id must be
a non-empty string or an integer. Creating an id that already exists
fails with DUPLICATE_CREATE.

Exit codes:
  0 - Entity created
  1 - Rejected (duplicate id, schema validation failure)
  2 - Command error (malformed JSON, invalid id, unreadable database)

Examples:
  occ create '{"id": "w1", "name": "widget", "qty": 3}'
  occ create '{"name": "gadget"}' --format json`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecordArg(args[0])
			if err != nil {
				return err
			}
			if _, ok := rec.ID(); !ok {
				rec = rec.WithID(ir.NewRecordID())
			}
			if err := checkRecordID(rec); err != nil {
				return err
			}
			return runMutation(cmd.Context(), rootOpts, cmd, engine.KindCreate, func(s *session) (EventView, error) {
				return s.repo.Create(rec)
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <json>",
		Short: "Replace an entity",
		Long: `Replace the entity whose id matches the given JSON object.

The record must carry an "id" that is a non-empty string or an integer.
Updating an id that does not exist fails with MISSING_ENTITY.

Exit codes:
  0 - Entity replaced
  1 - Rejected (missing entity, schema validation failure)
  2 - Command error (malformed JSON, missing or invalid id)

Examples:
  occ update '{"id": "w1", "name": "widget", "qty": 5}'`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecordArg(args[0])
			if err != nil {
				return err
			}
			if err := checkRecordID(rec); err != nil {
				return err
			}
			return runMutation(cmd.Context(), rootOpts, cmd, engine.KindUpdate, func(s *session) (EventView, error) {
				return s.repo.Update(rec)
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity",
		Long: `Delete the entity with the given id.

Decimal integers are integer ids; quote the id as a JSON string to force
a string id.

Examples:
  occ delete w1
  occ delete 42
  occ delete '"42"'`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ir.KeyOf(ir.ParseID(args[0]))
			return runMutation(cmd.Context(), rootOpts, cmd, engine.KindDelete, func(s *session) (EventView, error) {
				return s.repo.DeleteKey(key)
			})
		},
	}
}

func parseRecordArg(arg string) (ir.Record, error) {
	rec, err := ir.ParseRecord([]byte(arg))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid record", err)
	}
	return rec, nil
}

// checkRecordID rejects a record whose id cannot key an entity.
func checkRecordID(rec ir.Record) error {
	if err := rec.CheckID(); err != nil {
		return WrapExitError(ExitCommandError, "invalid record", err)
	}
	return nil
}

// runMutation applies one mutation and saves the collection on success.
func runMutation(ctx context.Context, opts *RootOptions, cmd *cobra.Command, kind engine.Kind, apply func(*session) (EventView, error)) error {
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ev, err := apply(s)
	if err != nil {
		return s.out.Fail(ExitFailure, fmt.Sprintf("%s rejected", kind), err)
	}
	if err := s.save(ctx); err != nil {
		return err
	}

	if s.out.JSON() {
		return s.out.Success(MutationResult{Collection: opts.Collection, Event: ev})
	}
	fmt.Fprintf(s.out.Writer, "%s %s at %s\n", pastTense(kind), describeID(ev.Payload()), formatInstant(ev.Timestamp()))
	return nil
}

func pastTense(k engine.Kind) string {
	switch k {
	case engine.KindCreate:
		return "created"
	case engine.KindUpdate:
		return "updated"
	default:
		return "deleted"
	}
}
