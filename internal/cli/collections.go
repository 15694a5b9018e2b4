package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/occ/internal/store"
)

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List stored collections",
		Long: `List every collection saved in the database with its segment and event
counts.

Examples:
  occ collections --db inventory.db`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(rootOpts.DB)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			infos, err := st.ListCollections(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list collections", err)
			}

			out := rootOpts.formatter(cmd)
			if out.JSON() {
				return out.Success(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(out.Writer, "No collections.")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out.Writer, "%s segments=%d events=%d updated=%s\n", info.Name, info.Segments, info.Events, formatInstant(info.UpdatedAt))
			}
			return nil
		},
	}
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete the collection and its history",
		Long: `Delete the collection named by --collection, with every segment and
event. Dropping a collection that was never saved fails.

Examples:
  occ drop --collection scratch`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(rootOpts.DB)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			out := rootOpts.formatter(cmd)
			if err := st.DeleteCollection(cmd.Context(), rootOpts.Collection); err != nil {
				if errors.Is(err, store.ErrCollectionNotFound) {
					return out.Fail(ExitFailure, fmt.Sprintf("collection %q", rootOpts.Collection), errNotFound)
				}
				return WrapExitError(ExitCommandError, "failed to drop collection", err)
			}

			if out.JSON() {
				return out.Success(map[string]string{"dropped": rootOpts.Collection})
			}
			fmt.Fprintf(out.Writer, "dropped %s\n", rootOpts.Collection)
			return nil
		},
	}
}
