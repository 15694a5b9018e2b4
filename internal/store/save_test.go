package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occ/internal/engine"
	"github.com/roach88/occ/internal/ir"
	"github.com/roach88/occ/internal/testutil"
)

func rec(id string, v int64) ir.Record {
	return ir.Record{"id": ir.String(id), "v": ir.Int(v)}
}

// buildProjector pushes a short history across two segments:
// create a, create b | update a, delete b.
func buildProjector(t *testing.T) (*engine.Projector[ir.Record], *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock(testutil.DefaultBase, time.Second)
	p := engine.New[ir.Record](engine.WithClock(clock))

	require.NoError(t, p.Push(engine.Stamp(clock, engine.KindCreate, rec("a", 1))))
	require.NoError(t, p.Push(engine.Stamp(clock, engine.KindCreate, rec("b", 2))))
	p.MakeSnapshot()
	require.NoError(t, p.Push(engine.Stamp(clock, engine.KindUpdate, rec("a", 10))))
	require.NoError(t, p.Push(engine.Stamp(clock, engine.KindDelete, rec("b", 2))))
	return p, clock
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p, _ := buildProjector(t)

	require.NoError(t, Save(ctx, s, "items", p.Segments()))

	loaded, err := Load[ir.Record](ctx, s, "items")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	restored, err := engine.Restore(loaded)
	require.NoError(t, err)

	assert.Equal(t, p.SegmentCount(), restored.SegmentCount())
	assert.True(t, p.Epoch().Equal(restored.Epoch()))
	assert.Equal(t, p.LatestProjection(), restored.LatestProjection())

	for _, ev := range p.EventsSince(p.Epoch()) {
		want, err := p.ProjectAt(ev.Timestamp())
		require.NoError(t, err)
		got, err := restored.ProjectAt(ev.Timestamp())
		require.NoError(t, err)
		assert.Equal(t, want, got, "projection at %s", ev.Timestamp())
	}
}

func TestSaveLoad_PreservesEventOrderAndKinds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p, _ := buildProjector(t)

	require.NoError(t, Save(ctx, s, "items", p.Segments()))
	loaded, err := Load[ir.Record](ctx, s, "items")
	require.NoError(t, err)

	var kinds []engine.Kind
	for _, seg := range loaded {
		for _, ev := range seg.Events {
			kinds = append(kinds, ev.Kind())
			assert.Equal(t, time.UTC, ev.Timestamp().Location())
		}
	}
	assert.Equal(t, []engine.Kind{engine.KindCreate, engine.KindCreate, engine.KindUpdate, engine.KindDelete}, kinds)
}

func TestSave_ReplacesPreviousContent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p, clock := buildProjector(t)

	require.NoError(t, Save(ctx, s, "items", p.Segments()))
	require.NoError(t, p.MergeAt(clock.Current()))
	require.NoError(t, Save(ctx, s, "items", p.Segments()))

	loaded, err := Load[ir.Record](ctx, s, "items")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Len(t, loaded[0].Events, 4)
}

func TestSave_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := Save[ir.Record](ctx, s, "", []engine.SegmentData[ir.Record]{{}})
	assert.ErrorContains(t, err, "collection name is required")

	err = Save[ir.Record](ctx, s, "items", nil)
	assert.ErrorContains(t, err, "at least one segment")
}

func TestSave_RejectsFloatPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	segments := []engine.SegmentData[floatEntity]{{
		Start:    testutil.DefaultBase,
		Snapshot: []floatEntity{{ID: "x", Ratio: 0.5}},
	}}

	err := Save(ctx, s, "floats", segments)
	assert.ErrorContains(t, err, "floats are not allowed")

	_, err = Load[floatEntity](ctx, s, "floats")
	assert.ErrorIs(t, err, ErrCollectionNotFound, "failed save must not leave a collection behind")
}

type floatEntity struct {
	ID    string  `json:"id"`
	Ratio float64 `json:"ratio"`
}

func (f floatEntity) Key() string        { return f.ID }
func (f floatEntity) Clone() floatEntity { return f }

func TestLoad_CollectionNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := Load[ir.Record](context.Background(), s, "missing")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestLoad_DetectsTampering(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"event payload", `UPDATE events SET payload = '{"id":"a","v":99}' WHERE position = 0`},
		{"event timestamp", `UPDATE events SET ts_ns = ts_ns + 1 WHERE position = 1`},
		{"event kind", `UPDATE events SET kind = 'update' WHERE kind = 'delete'`},
		{"snapshot", `UPDATE segments SET snapshot = '[]' WHERE position = 1`},
		{"snapshot digest", `UPDATE segments SET snapshot_digest = 'deadbeef' WHERE position = 0`},
		{"invalid json", `UPDATE segments SET snapshot = '[' WHERE position = 0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			ctx := context.Background()
			p, _ := buildProjector(t)
			require.NoError(t, Save(ctx, s, "items", p.Segments()))

			mustExec(t, s.db, tt.query)

			_, err := Load[ir.Record](ctx, s, "items")
			require.Error(t, err)
			assert.True(t, engine.IsCorrupt(err), "want CORRUPT_SEGMENT, got %v", err)
		})
	}
}

func TestListCollections(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	infos, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)

	p, _ := buildProjector(t)
	require.NoError(t, Save(ctx, s, "zeta", p.Segments()))
	require.NoError(t, Save(ctx, s, "Alpha", p.Segments()[:1]))

	infos, err = s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Binary collation sorts upper case first.
	assert.Equal(t, "Alpha", infos[0].Name)
	assert.Equal(t, 1, infos[0].Segments)
	assert.Equal(t, 2, infos[0].Events)

	assert.Equal(t, "zeta", infos[1].Name)
	assert.Equal(t, 2, infos[1].Segments)
	assert.Equal(t, 4, infos[1].Events)
	assert.False(t, infos[1].UpdatedAt.IsZero())
}

func TestDeleteCollection(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p, _ := buildProjector(t)
	require.NoError(t, Save(ctx, s, "items", p.Segments()))

	require.NoError(t, s.DeleteCollection(ctx, "items"))

	_, err := Load[ir.Record](ctx, s, "items")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Zero(t, n, "events should be removed with their collection")

	err = s.DeleteCollection(ctx, "items")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestSave_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	p, _ := buildProjector(t)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, Save(ctx, s, "items", p.Segments()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := Load[ir.Record](ctx, s, "items")
	require.NoError(t, err)
	restored, err := engine.Restore(loaded)
	require.NoError(t, err)
	assert.Equal(t, []ir.Record{rec("a", 10)}, restored.LatestProjection())
}
