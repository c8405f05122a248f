package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/engine"
	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/plan"
	"github.com/roach88/quadmatch/internal/queryir"
	"github.com/roach88/quadmatch/internal/rows"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	_, err := s.AddQuads(context.Background(), []ir.Quad{
		triple("a", "p1", ir.NewLiteral("o1")),
		triple("b", "p1", ir.NewLiteral("o1")),
		triple("a", "p2", ex("x")),
		triple("a", "p2", ex("y")),
		triple("loop", "self", ex("loop")),
		inGraph("g1", "a", "p1", ir.NewLiteral("o1")),
		inGraph("g2", "c", "p1", ir.NewLiteral("o1")),
	})
	require.NoError(t, err)
	return s
}

func TestSnapshot_GraphScan(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	l := snap.Graph(ir.DefaultGraph).AccessRows(context.Background(),
		ir.MustParseTriple("?s", "<http://example.org/p1>", `"o1"`))
	assert.Equal(t, []ir.Var{"s"}, l.Schema())

	got := collectSolutions(t, l)
	assert.Equal(t, []ir.Solution{{"s": ex("a")}, {"s": ex("b")}}, got, "insertion order, default graph only")
}

func TestSnapshot_NamedGraphScan(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	got := collectSolutions(t, snap.Graph(ex("g2")).AccessRows(context.Background(),
		ir.MustParseTriple("?s", "?p", "?o")))
	assert.Equal(t, []ir.Solution{{"s": ex("c"), "p": ex("p1"), "o": ir.NewLiteral("o1")}}, got)
}

func TestSnapshot_GeneratedDefaultGraphName(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))
	p := ir.MustParseTriple("?s", "<http://example.org/p2>", "?o")

	explicit := collectSolutions(t, snap.Graph(ir.DefaultGraph).AccessRows(context.Background(), p))
	generated := collectSolutions(t, snap.Graph(ir.DefaultGraphGenerated).AccessRows(context.Background(), p))
	assert.Len(t, explicit, 2)
	assert.Equal(t, explicit, generated)
}

func TestSnapshot_RepeatedVariable(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	got := collectSolutions(t, snap.Graph(ir.DefaultGraph).AccessRows(context.Background(),
		ir.MustParseTriple("?x", "?p", "?x")))
	assert.Equal(t, []ir.Solution{{"x": ex("loop"), "p": ex("self")}}, got)
}

func TestSnapshot_AllBoundPattern(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	got := collectSolutions(t, snap.Graph(ir.DefaultGraph).AccessRows(context.Background(),
		ir.MustParseTriple("<http://example.org/a>", "<http://example.org/p2>", "<http://example.org/x>")))
	require.Len(t, got, 1)
	assert.Empty(t, got[0])
}

func TestSnapshot_QuadsExcludeDefaultGraph(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	p := ir.MustParseTriple("?s", "<http://example.org/p1>", `"o1"`).InGraph(ir.SlotForVar("g"))
	got := collectSolutions(t, snap.Quads().AccessRows(context.Background(), p))
	assert.Equal(t, []ir.Solution{
		{"g": ex("g1"), "s": ex("a")},
		{"g": ex("g2"), "s": ex("c")},
	}, got)
}

func TestSnapshot_ArityMismatchFails(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	_, err := rows.Collect(context.Background(), snap.Quads().AccessRows(context.Background(),
		ir.MustParseTriple("?s", "?p", "?o")))
	assert.Error(t, err)
}

func TestSnapshot_GraphNames(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	names, err := snap.GraphNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ir.Term{ex("g1"), ex("g2")}, names)
}

func TestSnapshot_GraphNamesEmptyStore(t *testing.T) {
	snap := openTestSnapshot(t, createTestStore(t))

	names, err := snap.GraphNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSnapshot_UnionGraphThroughEngine(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))
	e, err := engine.New(snap, engine.DefaultConfig(),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	op := queryir.QuadPattern{
		Graph:    ir.SlotForTerm(ir.UnionGraph),
		Patterns: ir.BasicPattern{ir.MustParseTriple("?s", "<http://example.org/p1>", `"o1"`)},
	}
	want := []ir.Solution{{"s": ex("a")}, {"s": ex("c")}}

	it, err := e.Execute(context.Background(), op, nil)
	require.NoError(t, err)
	got, err := engine.CollectSolutions(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got, "named graphs only, default graph excluded")

	it, err = e.ExecuteNested(context.Background(), op, nil)
	require.NoError(t, err)
	got, err = engine.CollectSolutions(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)
}

func TestSnapshot_ClosedFails(t *testing.T) {
	s := seedStore(t)
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	l := snap.Graph(ir.DefaultGraph).AccessRows(context.Background(), ir.MustParseTriple("?s", "?p", "?o"))
	require.NoError(t, snap.Close())
	require.NoError(t, snap.Close())

	_, err = rows.Collect(context.Background(), l)
	assert.ErrorIs(t, err, ErrSnapshotClosed)

	_, err = snap.GraphNames(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotClosed)
}

func TestSnapshot_CloseMidScan(t *testing.T) {
	snap, err := seedStore(t).Snapshot(context.Background())
	require.NoError(t, err)

	it := snap.Graph(ir.DefaultGraph).AccessRows(context.Background(), ir.MustParseTriple("?s", "?p", "?o")).
		Iterator(context.Background())
	defer it.Close()
	require.True(t, it.Next())

	require.NoError(t, snap.Close())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrSnapshotClosed)
}

func TestSnapshot_ConsistentView(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	snap := openTestSnapshot(t, s)

	// The read view is fixed by the first read in the transaction.
	_, err := snap.GraphNames(ctx)
	require.NoError(t, err)

	_, err = s.AddQuads(ctx, []ir.Quad{triple("late", "p1", ir.NewLiteral("o1"))})
	require.NoError(t, err)

	got := collectSolutions(t, snap.Graph(ir.DefaultGraph).AccessRows(ctx,
		ir.MustParseTriple("?s", "<http://example.org/p1>", `"o1"`)))
	assert.Len(t, got, 2, "write after the snapshot is not visible")
}

func TestSnapshot_PlanOverStore(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))
	bp := ir.BasicPattern{
		ir.MustParseTriple("?s", "<http://example.org/p1>", `"o1"`),
		ir.MustParseTriple("?s", "<http://example.org/p2>", "?o2"),
	}

	out, err := plan.Build(bp, snap.Graph(ir.DefaultGraph)).Execute(context.Background(), nil)
	require.NoError(t, err)
	got := collectSolutions(t, out)
	assert.ElementsMatch(t, []ir.Solution{
		{"s": ex("a"), "o2": ex("x")},
		{"s": ex("a"), "o2": ex("y")},
	}, got)

	reference, err := snap.SolveBGP(context.Background(), ir.DefaultGraph, bp)
	require.NoError(t, err)
	assert.ElementsMatch(t, reference, got)
}

func TestSnapshot_SolveBGPEmpty(t *testing.T) {
	snap := openTestSnapshot(t, seedStore(t))

	got, err := snap.SolveBGP(context.Background(), ir.DefaultGraph, nil)
	require.NoError(t, err)
	assert.Equal(t, []ir.Solution{{}}, got)
}
