package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/occ/internal/config"
	"github.com/roach88/occ/internal/engine"
	"github.com/roach88/occ/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	DB         string
	Collection string
	Schema     string
	Definition string
	LogLevel   slog.Level

	// Clock stamps events; nil means the system clock.
	Clock engine.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{config.FormatText, config.FormatJSON}

// NewRootCommand creates the root command for the occ CLI.
// Flag defaults come from the OCC_* environment variables.
func NewRootCommand() *cobra.Command {
	cfg, err := config.Load()
	return newRootCommand(cfg, err, nil)
}

func newRootCommand(cfg config.Config, cfgErr error, clock engine.Clock) *cobra.Command {
	opts := &RootOptions{LogLevel: cfg.LogLevel, Clock: clock}

	cmd := &cobra.Command{
		Use:   "occ",
		Short: "occ - segmented, versioned entity store",
		Long: `A versioned entity store built on event sourcing.

Every create, update and delete is kept as a timestamped event. Any past
state can be projected; snapshots split history into segments so a
point-in-time query replays only one segment's events.`,
		Version:       fmt.Sprintf("%s (record format %s)", ir.Version, ir.FormatVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", cfgErr)
			}
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Collection == "" {
				return NewExitError(ExitCommandError, "collection name must not be empty")
			}
			if opts.Definition == "" {
				return NewExitError(ExitCommandError, "definition must not be empty")
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging on stderr)")
	flags.StringVar(&opts.Format, "format", cfg.Format, "output format (json|text)")
	flags.StringVar(&opts.DB, "db", cfg.DB, "path to SQLite database")
	flags.StringVar(&opts.Collection, "collection", cfg.Collection, "collection name")
	flags.StringVar(&opts.Schema, "schema", cfg.Schema, "CUE schema file or directory records must satisfy")
	flags.StringVar(&opts.Definition, "definition", cfg.Definition, "CUE definition records are checked against")

	// Add subcommands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewSegmentsCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// exactArgs is cobra.ExactArgs reporting a command error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// logger writes text logs to w: debug when verbose, else the configured level.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := o.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// formatter returns an OutputFormatter for cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  o.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: o.Verbose,
	}
}
