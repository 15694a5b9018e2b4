package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/occ/internal/ir"
)

// ListResult is the JSON payload for list.
type ListResult struct {
	Collection string      `json:"collection"`
	At         *time.Time  `json:"at,omitempty"`
	Entities   []ir.Record `json:"entities"`
}

// SegmentView summarizes one segment.
type SegmentView struct {
	Index    int       `json:"index"`
	Start    time.Time `json:"start"`
	Events   int       `json:"events"`
	Entities int       `json:"entities"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities, now or at a past instant",
		Long: `List the entities of the collection.

With --at, the collection is projected as it was at that instant
(inclusive). Instants before the first segment fail with
SEGMENT_NOT_FOUND.

Examples:
  occ list
  occ list --at 2026-01-01T12:00:00Z --format json`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result := ListResult{Collection: rootOpts.Collection}
			if at == "" {
				result.Entities = s.repo.Projection()
			} else {
				t, err := parseInstant("at", at)
				if err != nil {
					return err
				}
				result.At = &t
				if result.Entities, err = s.repo.ProjectAt(t); err != nil {
					return s.out.Fail(ExitFailure, "projection failed", err)
				}
			}

			if s.out.JSON() {
				return s.out.Success(result)
			}
			if len(result.Entities) == 0 {
				fmt.Fprintln(s.out.Writer, "No entities.")
				return nil
			}
			for _, e := range result.Entities {
				if err := writeRecord(s.out, e); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "project the collection at this RFC 3339 instant")
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one entity",
		Long: `Show the entity with the given id, now or at --at.

Exit codes:
  0 - Entity found
  1 - No such entity, or no segment covers --at
  2 - Command error

Examples:
  occ get w1
  occ get 42 --at 2026-01-01T12:00:00Z`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			key := ir.KeyOf(ir.ParseID(args[0]))
			var (
				rec ir.Record
				ok  bool
			)
			if at == "" {
				rec, ok = s.repo.Get(key)
			} else {
				t, err := parseInstant("at", at)
				if err != nil {
					return err
				}
				if rec, ok, err = s.repo.GetAt(key, t); err != nil {
					return s.out.Fail(ExitFailure, "projection failed", err)
				}
			}
			if !ok {
				return s.out.Fail(ExitFailure, fmt.Sprintf("entity %s", args[0]), errNotFound)
			}

			if s.out.JSON() {
				return s.out.Success(rec)
			}
			return writeRecord(s.out, rec)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "look the entity up at this RFC 3339 instant")
	return cmd
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the event log",
		Long: `Show the collection's events in push order.

With --since, only events of the segment covering that instant and of
later segments are shown, starting from the last event at or before it.

Examples:
  occ events
  occ events --since 2026-01-01T12:00:00Z --format json`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var events []EventView
			if since == "" {
				for _, seg := range s.repo.Segments() {
					events = append(events, seg.Events...)
				}
			} else {
				t, err := parseInstant("since", since)
				if err != nil {
					return err
				}
				events = s.repo.EventsSince(t)
			}
			if events == nil {
				events = []EventView{}
			}

			if s.out.JSON() {
				return s.out.Success(events)
			}
			if len(events) == 0 {
				fmt.Fprintln(s.out.Writer, "No events.")
				return nil
			}
			for _, ev := range events {
				payload, err := ir.MarshalCanonical(ir.Object(ev.Payload()))
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out.Writer, "%s %-6s %s\n", formatInstant(ev.Timestamp()), ev.Kind(), payload)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "show events from this RFC 3339 instant on")
	return cmd
}

// NewSegmentsCommand creates the segments command.
func NewSegmentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "segments",
		Short: "Show the segment chain",
		Long: `Show every segment of the collection: its start instant, how many
events it holds and how many entities its snapshot contains.

Examples:
  occ segments --format json`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			views := segmentViews(s)
			if s.out.JSON() {
				return s.out.Success(views)
			}
			for _, v := range views {
				fmt.Fprintf(s.out.Writer, "#%d start=%s events=%d entities=%d\n", v.Index, formatInstant(v.Start), v.Events, v.Entities)
			}
			return nil
		},
	}
}

func segmentViews(s *session) []SegmentView {
	data := s.repo.Segments()
	views := make([]SegmentView, len(data))
	for i, seg := range data {
		views[i] = SegmentView{Index: i, Start: seg.Start, Events: len(seg.Events), Entities: len(seg.Snapshot)}
	}
	return views
}

func writeRecord(out *OutputFormatter, r ir.Record) error {
	b, err := ir.MarshalCanonical(ir.Object(r))
	if err != nil {
		return err
	}
	fmt.Fprintf(out.Writer, "%s\n", b)
	return nil
}
