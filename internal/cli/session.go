package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/occ/internal/engine"
	"github.com/roach88/occ/internal/ir"
	"github.com/roach88/occ/internal/repository"
	"github.com/roach88/occ/internal/schema"
	"github.com/roach88/occ/internal/store"
)

var errNotFound = errors.New("not found")

// session is one command's view of a collection: the open store, the
// collection handle and the repository loaded from it.
type session struct {
	store *store.Store
	coll  *store.Collection[ir.Record]
	repo  *repository.Repository[ir.Record]
	out   *OutputFormatter
}

// openSession opens the database and loads the configured collection.
// Callers must Close the session.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	logger := opts.logger(cmd.ErrOrStderr())
	repoOpts := []repository.Option{repository.WithLogger(logger)}
	if opts.Clock != nil {
		repoOpts = append(repoOpts, repository.WithClock(opts.Clock))
	}

	if opts.Schema != "" {
		v, err := schema.Load(opts.Schema, schema.WithDefinition(opts.Definition))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
		}
		repoOpts = append(repoOpts, repository.WithValidator[ir.Record](v))
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	coll := store.NewCollection[ir.Record](st, opts.Collection)
	repo, err := repository.Load[ir.Record](ctx, coll, repoOpts...)
	if err != nil {
		st.Close()
		out := opts.formatter(cmd)
		return nil, out.Fail(ExitFailure, fmt.Sprintf("failed to load collection %q", opts.Collection), err)
	}

	logger.Debug("collection loaded",
		"collection", opts.Collection,
		"segments", repo.SegmentCount(),
		"entities", len(repo.Projection()),
	)

	return &session{store: st, coll: coll, repo: repo, out: opts.formatter(cmd)}, nil
}

// save writes the repository back to its collection.
func (s *session) save(ctx context.Context) error {
	if err := s.repo.Persist(ctx, s.coll); err != nil {
		return WrapExitError(ExitCommandError, "failed to save collection", err)
	}
	return nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// parseInstant reads an RFC 3339 timestamp flag.
func parseInstant(flag, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --%s %q: expected RFC 3339 timestamp", flag, value))
	}
	return t.UTC(), nil
}

// formatInstant renders a timestamp the way parseInstant reads it.
func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// describeID renders a record id for text output.
func describeID(r ir.Record) string {
	id, ok := r.ID()
	if !ok {
		return "<none>"
	}
	if s, ok := id.(ir.String); ok {
		return string(s)
	}
	return fmt.Sprint(ir.ToAny(id))
}

// EventView is the JSON form of a stored event.
type EventView = engine.Event[ir.Record]
