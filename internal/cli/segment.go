package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// SnapshotResult is the JSON payload for snapshot.
type SnapshotResult struct {
	Start    time.Time `json:"start"`
	Segments int       `json:"segments"`
}

// MergeResult is the JSON payload for merge.
type MergeResult struct {
	At       time.Time `json:"at"`
	Segments int       `json:"segments"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Start a new segment",
		Long: `Seal the current segment and start a new one seeded with the current
state. Later point-in-time queries replay only the covering segment's
events.

Examples:
  occ snapshot`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, rootOpts, cmd, func(s *session) error {
				start := s.repo.Snapshot()
				if err := s.save(ctx); err != nil {
					return err
				}
				result := SnapshotResult{Start: start, Segments: s.repo.SegmentCount()}
				if s.out.JSON() {
					return s.out.Success(result)
				}
				fmt.Fprintf(s.out.Writer, "segment %d started at %s\n", result.Segments-1, formatInstant(start))
				return nil
			})
		},
	}
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "merge --at <instant>",
		Short: "Merge a segment into its predecessor",
		Long: `Fold the segment covering --at into the segment before it. History is
kept; only the snapshot boundary between the two segments disappears.

Exit codes:
  0 - Segments merged
  1 - No segment covers --at, or it is the first segment
  2 - Command error

Examples:
  occ merge --at 2026-01-01T12:00:00Z`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if at == "" {
				return NewExitError(ExitCommandError, "merge requires --at")
			}
			t, err := parseInstant("at", at)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withSession(ctx, rootOpts, cmd, func(s *session) error {
				if err := s.repo.MergeAt(t); err != nil {
					return s.out.Fail(ExitFailure, "merge rejected", err)
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				result := MergeResult{At: t, Segments: s.repo.SegmentCount()}
				if s.out.JSON() {
					return s.out.Success(result)
				}
				fmt.Fprintf(s.out.Writer, "merged segment at %s; %d segment(s) remain\n", formatInstant(t), result.Segments)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 instant inside the segment to merge (required)")
	return cmd
}

func withSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, fn func(*session) error) error {
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
