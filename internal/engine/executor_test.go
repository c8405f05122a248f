package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/queryir"
	"github.com/roach88/quadmatch/internal/testutil"
)

func ex(name string) ir.Term {
	return ir.NewIRI("http://example.org/" + name)
}

func tp(s, p, o string) ir.Pattern {
	return ir.MustParseTriple(s, p, o)
}

func quad(g, s, p string, o ir.Term) ir.Quad {
	q := ir.Quad{Subject: ex(s), Predicate: ex(p), Object: o}
	if g != "" {
		q.Graph = ex(g)
	}
	return q
}

// sampleDataset holds:
//
//	default: a p1 "o1", b p1 "o1", a p2 x, a p2 y, b p3 z, c p2 x
//	g1:      a p1 "o1", d p2 x
//	g2:      a p1 "o1", e p2 y
func sampleDataset() *testutil.MemoryDataset {
	o1 := ir.NewLiteral("o1")
	return testutil.NewMemoryDataset(
		quad("", "a", "p1", o1),
		quad("", "b", "p1", o1),
		quad("", "a", "p2", ex("x")),
		quad("", "a", "p2", ex("y")),
		quad("", "b", "p3", ex("z")),
		quad("", "c", "p2", ex("x")),
		quad("g1", "a", "p1", o1),
		quad("g1", "d", "p2", ex("x")),
		quad("g2", "a", "p1", o1),
		quad("g2", "e", "p2", ex("y")),
	)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, ds Dataset, cfg Config, opts ...Option) *Executor {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithIDGenerator(NewFixedGenerator("exec-1"))}, opts...)
	e, err := New(ds, cfg, opts...)
	require.NoError(t, err)
	return e
}

func solutions(t *testing.T, it QueryIter, err error) []ir.Solution {
	t.Helper()
	require.NoError(t, err)
	sols, err := CollectSolutions(it)
	require.NoError(t, err)
	return sols
}

func TestChooseStrategy(t *testing.T) {
	tests := []struct {
		slot ir.Slot
		want Strategy
	}{
		{ir.SlotForTerm(ir.DefaultGraph), RowEngine},
		{ir.SlotForTerm(ir.DefaultGraphGenerated), RowEngine},
		{ir.SlotForTerm(ex("g1")), RowEngine},
		{ir.SlotForVar("g"), NestedFallback},
		{ir.SlotForTerm(ir.UnionGraph), NestedFallback},
	}
	for _, tt := range tests {
		t.Run(tt.slot.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseStrategy(ir.ResolveGraph(tt.slot)))
		})
	}
	assert.Equal(t, RowEngine, ChooseStrategy(ir.DefaultGraphRef))
	assert.Equal(t, "rows", RowEngine.String())
	assert.Equal(t, "nested", NestedFallback.String())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unknown strategy", Config{Strategy: "fast", Reorder: "fixed"}, "unknown strategy"},
		{"unknown reorder", Config{Strategy: "auto", Reorder: "random"}, "unknown reorder policy"},
		{"negative limit", Config{Strategy: "auto", Reorder: "none", MaxBuildRows: -1}, "max_build_rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestNew_DecidesRowAccessOnce(t *testing.T) {
	ds := sampleDataset()

	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)

	assert.True(t, newTestExecutor(t, ds, DefaultConfig()).RowsEnabled())

	nested := DefaultConfig()
	nested.Strategy = StrategyNested
	assert.False(t, newTestExecutor(t, ds, nested).RowsEnabled())

	assert.False(t, newTestExecutor(t, ds.WithoutRowAccess(), DefaultConfig()).RowsEnabled(),
		"a dataset without row access is evaluated nested only")
}

func TestExecute_ConcreteScenario(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.BGP{Patterns: ir.BasicPattern{
		tp("?s", "<http://example.org/p1>", `"o1"`),
		tp("?s", "<http://example.org/p2>", "?o2"),
	}}
	want := []ir.Solution{
		{"s": ex("a"), "o2": ex("x")},
		{"s": ex("a"), "o2": ex("y")},
	}

	it, err := e.Execute(context.Background(), op, nil)
	assert.ElementsMatch(t, want, solutions(t, it, err))

	it, err = e.ExecuteNested(context.Background(), op, nil)
	assert.ElementsMatch(t, want, solutions(t, it, err))
}

func TestExecute_EmptyBGPOnIdentity(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	for _, run := range []func(context.Context, queryir.Op, QueryIter) (QueryIter, error){e.Execute, e.ExecuteNested} {
		it, err := run(context.Background(), queryir.BGP{}, Identity())
		assert.Equal(t, []ir.Solution{{}}, solutions(t, it, err))
	}
}

func TestExecute_RowsAgreeWithNested(t *testing.T) {
	ds := sampleDataset()
	bps := []ir.BasicPattern{
		{tp("?s", "?p", "?o")},
		{tp("?s", "<http://example.org/p2>", "?o"), tp("?s", "<http://example.org/p1>", "?v")},
		{tp("?a", "<http://example.org/p1>", `"o1"`), tp("?b", "<http://example.org/p3>", "?c")},
		{tp("?s", "<http://example.org/p2>", "?o"), tp("?t", "<http://example.org/p2>", "?o")},
		{tp("?s", "?p", "?s")},
		{tp("<http://example.org/a>", "?p", "?o"), tp("?o2", "?p", "?o")},
	}
	for _, policy := range []string{"fixed", "none"} {
		cfg := DefaultConfig()
		cfg.Reorder = policy
		e := newTestExecutor(t, ds, cfg)
		for _, bp := range bps {
			t.Run(policy+" "+bp.String(), func(t *testing.T) {
				op := queryir.BGP{Patterns: bp}
				rowsIt, err := e.ExecuteRows(context.Background(), op, nil)
				got := solutions(t, rowsIt, err)
				nestedIt, err := e.ExecuteNested(context.Background(), op, nil)
				want := solutions(t, nestedIt, err)
				assert.ElementsMatch(t, want, got)
			})
		}
	}
}

func TestExecute_CrossProductSize(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.BGP{Patterns: ir.BasicPattern{
		tp("?a", "<http://example.org/p1>", `"o1"`),
		tp("?b", "<http://example.org/p2>", "?c"),
	}}
	it, err := e.ExecuteRows(context.Background(), op, nil)
	assert.Len(t, solutions(t, it, err), 2*3)
}

func TestExecute_SeededInputWithPartialBindings(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p2>", "?o")}}
	input := func() QueryIter {
		return NewIter([]ir.Var{"s", "o"}, []*Binding{
			NewBinding(ir.Solution{"s": ex("a")}),
			NewBinding(ir.Solution{"o": ex("x")}),
			nil,
		})
	}

	rowsIt, err := e.ExecuteRows(context.Background(), op, input())
	got := solutions(t, rowsIt, err)
	nestedIt, err := e.ExecuteNested(context.Background(), op, input())
	want := solutions(t, nestedIt, err)

	assert.Len(t, want, 2+2+3)
	assert.ElementsMatch(t, want, got)
}

func TestExecute_NotImplementedGuard(t *testing.T) {
	ds := sampleDataset()
	e := newTestExecutor(t, ds, DefaultConfig())
	op := queryir.QuadPattern{
		Graph:    ir.SlotForVar("g"),
		Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", `"o1"`)},
	}
	want := []ir.Solution{
		{"g": ex("g1"), "s": ex("a")},
		{"g": ex("g2"), "s": ex("a")},
	}

	input := NewIter(nil, []*Binding{nil})
	_, err := e.ExecuteRows(context.Background(), op, input)
	require.Error(t, err)
	assert.True(t, IsNotImplemented(err))
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Zero(t, ds.Scans.Current(), "declined before touching storage")

	it, err := e.Execute(context.Background(), op, nil)
	assert.ElementsMatch(t, want, solutions(t, it, err), "dispatcher reruns on the nested evaluator")

	it, err = e.ExecuteNested(context.Background(), op, nil)
	assert.ElementsMatch(t, want, solutions(t, it, err))
}

func TestExecute_StrictRowsStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyRows
	e := newTestExecutor(t, sampleDataset(), cfg)

	_, err := e.Execute(context.Background(), queryir.QuadPattern{
		Graph:    ir.SlotForTerm(ir.UnionGraph),
		Patterns: ir.BasicPattern{tp("?s", "?p", "?o")},
	}, nil)
	assert.True(t, IsNotImplemented(err))

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeNotImplemented, ee.Code)
	assert.Equal(t, "exec-1", ee.ExecID)
}

func TestExecute_UnionGraphSuppressesDuplicates(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.QuadPattern{
		Graph:    ir.SlotForTerm(ir.UnionGraph),
		Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", `"o1"`)},
	}
	it, err := e.Execute(context.Background(), op, nil)
	assert.Equal(t, []ir.Solution{{"s": ex("a")}}, solutions(t, it, err))

	op.Patterns = ir.BasicPattern{tp("?s", "<http://example.org/p2>", "?o")}
	it, err = e.Execute(context.Background(), op, nil)
	assert.ElementsMatch(t, []ir.Solution{
		{"s": ex("d"), "o": ex("x")},
		{"s": ex("e"), "o": ex("y")},
	}, solutions(t, it, err))
}

func TestExecute_NamedGraph(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.QuadPattern{
		Graph:    ir.SlotForTerm(ex("g1")),
		Patterns: ir.BasicPattern{tp("?s", "?p", "?o")},
	}
	rowsIt, err := e.ExecuteRows(context.Background(), op, nil)
	got := solutions(t, rowsIt, err)
	assert.Len(t, got, 2)

	nestedIt, err := e.ExecuteNested(context.Background(), op, nil)
	assert.ElementsMatch(t, solutions(t, nestedIt, err), got)
}

func TestExecute_Filter(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	sub := queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p2>", "?o")}}

	tests := []struct {
		name  string
		exprs []queryir.Expr
		want  []ir.Solution
	}{
		{
			name:  "not equals",
			exprs: []queryir.Expr{queryir.NotEquals{Var: "o", Value: ex("x")}},
			want:  []ir.Solution{{"s": ex("a"), "o": ex("y")}},
		},
		{
			name: "or",
			exprs: []queryir.Expr{queryir.Or{Exprs: []queryir.Expr{
				queryir.Equals{Var: "s", Value: ex("c")},
				queryir.Equals{Var: "o", Value: ex("y")},
			}}},
			want: []ir.Solution{{"s": ex("a"), "o": ex("y")}, {"s": ex("c"), "o": ex("x")}},
		},
		{
			name:  "unbound variable rejects",
			exprs: []queryir.Expr{queryir.Equals{Var: "missing", Value: ex("x")}},
			want:  nil,
		},
		{
			name:  "not bound",
			exprs: []queryir.Expr{queryir.Not{Expr: queryir.Bound{Var: "missing"}}},
			want: []ir.Solution{
				{"s": ex("a"), "o": ex("x")},
				{"s": ex("a"), "o": ex("y")},
				{"s": ex("c"), "o": ex("x")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := queryir.Filter{Exprs: tt.exprs, Sub: sub}
			it, err := e.Execute(context.Background(), op, nil)
			got := solutions(t, it, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.ElementsMatch(t, tt.want, got)

			it, err = e.ExecuteNested(context.Background(), op, nil)
			assert.ElementsMatch(t, tt.want, solutions(t, it, err))
		})
	}
}

func TestExecute_SequenceAcrossGraphs(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.Sequence{Ops: []queryir.Op{
		queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p2>", "?o")}},
		queryir.QuadPattern{
			Graph:    ir.SlotForVar("g"),
			Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", `"o1"`)},
		},
	}}
	want := []ir.Solution{
		{"s": ex("a"), "o": ex("x"), "g": ex("g1")},
		{"s": ex("a"), "o": ex("x"), "g": ex("g2")},
		{"s": ex("a"), "o": ex("y"), "g": ex("g1")},
		{"s": ex("a"), "o": ex("y"), "g": ex("g2")},
	}

	it, err := e.Execute(context.Background(), op, nil)
	assert.ElementsMatch(t, want, solutions(t, it, err))

	it, err = e.ExecuteNested(context.Background(), op, nil)
	assert.ElementsMatch(t, want, solutions(t, it, err))
}

func TestExecute_SequenceSeedsRowPlan(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.Sequence{Ops: []queryir.Op{
		queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", `"o1"`)}},
		queryir.QuadPattern{
			Graph:    ir.SlotForTerm(ex("g1")),
			Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", "?v")},
		},
	}}
	it, err := e.ExecuteRows(context.Background(), op, nil)
	assert.Equal(t, []ir.Solution{{"s": ex("a"), "v": ir.NewLiteral("o1")}}, solutions(t, it, err))
}

func TestExecute_StorageFailurePropagates(t *testing.T) {
	ds := sampleDataset()
	boom := errors.New("disk on fire")
	ds.FailScans(func(p ir.Pattern) bool {
		pred, _ := p.Predicate().Term()
		return pred == ex("p2")
	}, 1, boom)

	e := newTestExecutor(t, ds, DefaultConfig())
	op := queryir.BGP{Patterns: ir.BasicPattern{
		tp("?s", "<http://example.org/p1>", `"o1"`),
		tp("?s", "<http://example.org/p2>", "?o"),
	}}
	for _, run := range []func(context.Context, queryir.Op, QueryIter) (QueryIter, error){e.ExecuteRows, e.ExecuteNested} {
		it, err := run(context.Background(), op, nil)
		require.NoError(t, err)
		_, err = CollectSolutions(it)
		assert.ErrorIs(t, err, boom)
	}
}

func TestExecute_BuildLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBuildRows = 1
	cfg.Reorder = "none"
	e := newTestExecutor(t, sampleDataset(), cfg)

	op := queryir.BGP{Patterns: ir.BasicPattern{
		tp("?s", "<http://example.org/p2>", "?o"),
		tp("?s", "<http://example.org/p1>", `"o1"`),
	}}
	it, err := e.Execute(context.Background(), op, nil)
	require.NoError(t, err)
	_, err = CollectSolutions(it)
	assert.True(t, IsBuildLimit(err))
}

func TestExecute_InvalidOperator(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())

	_, err := e.Execute(context.Background(), queryir.Sequence{Ops: []queryir.Op{nil}}, nil)
	assert.True(t, IsInvalidOperator(err))
	assert.False(t, IsNotImplemented(err))
}

func TestExecute_Cancellation(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	op := queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "?p", "?o")}}

	for _, run := range []func(context.Context, queryir.Op, QueryIter) (QueryIter, error){e.ExecuteRows, e.ExecuteNested} {
		ctx, cancel := context.WithCancel(context.Background())
		it, err := run(ctx, op, nil)
		require.NoError(t, err)
		require.True(t, it.Next())
		cancel()
		for it.Next() {
		}
		assert.ErrorIs(t, it.Err(), context.Canceled)
		it.Close()
	}
}

func TestExecute_NestedOnlyDataset(t *testing.T) {
	ds := sampleDataset()
	e := newTestExecutor(t, ds.WithoutRowAccess(), DefaultConfig())
	op := queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", `"o1"`)}}

	it, err := e.Execute(context.Background(), op, nil)
	assert.ElementsMatch(t, []ir.Solution{{"s": ex("a")}, {"s": ex("b")}}, solutions(t, it, err))
}

func TestExecute_LogsFallbackWithExecID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := newTestExecutor(t, sampleDataset(), DefaultConfig(), WithLogger(logger))

	it, err := e.Execute(context.Background(), queryir.QuadPattern{
		Graph:    ir.SlotForVar("g"),
		Patterns: ir.BasicPattern{tp("?s", "?p", "?o")},
	}, nil)
	solutions(t, it, err)

	out := buf.String()
	assert.Contains(t, out, `"exec_id":"exec-1"`)
	assert.Contains(t, out, "row engine declined operator")
	assert.Contains(t, out, `"strategy":"nested"`)
}

type recordingMetrics struct {
	mu         sync.Mutex
	dispatched []string
	fallbacks  []string
	scanned    int
}

func (m *recordingMetrics) ScanRows(_ ir.Pattern, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanned += n
}

func (m *recordingMetrics) BuildRows(ir.Pattern, int) {}
func (m *recordingMetrics) JoinRows(ir.Pattern, int)  {}

func (m *recordingMetrics) Dispatched(strategy string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, strategy)
}

func (m *recordingMetrics) FellBack(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, reason)
}

func TestExecute_ReportsMetrics(t *testing.T) {
	m := &recordingMetrics{}
	e := newTestExecutor(t, sampleDataset(), DefaultConfig(), WithMetrics(m))

	op := queryir.Sequence{Ops: []queryir.Op{
		queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", `"o1"`)}},
		queryir.QuadPattern{Graph: ir.SlotForVar("g"), Patterns: ir.BasicPattern{tp("?s", "?p", "?o")}},
	}}
	it, err := e.Execute(context.Background(), op, nil)
	solutions(t, it, err)

	assert.ElementsMatch(t, []string{"rows", "nested"}, m.dispatched)
	assert.Equal(t, []string{"variable graph"}, m.fallbacks)
	assert.Equal(t, 2, m.scanned)
}
