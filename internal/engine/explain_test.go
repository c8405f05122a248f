package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/queryir"
)

func TestExplain_Sequence(t *testing.T) {
	ds := sampleDataset()
	e := newTestExecutor(t, ds, DefaultConfig())
	op := queryir.Sequence{Ops: []queryir.Op{
		queryir.Filter{
			Exprs: []queryir.Expr{queryir.Bound{Var: "s"}},
			Sub:   queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", `"o1"`)}},
		},
		queryir.QuadPattern{
			Graph:    ir.SlotForVar("g"),
			Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p2>", "?o")},
		},
		queryir.QuadPattern{
			Graph:    ir.SlotForTerm(ex("g1")),
			Patterns: ir.BasicPattern{tp("?s", "<http://example.org/p1>", "?v")},
		},
	}}

	leaves, err := e.Explain(op)
	require.NoError(t, err)
	require.Len(t, leaves, 3)

	assert.Equal(t, RowEngine, leaves[0].Strategy)
	assert.Equal(t, "default", leaves[0].Graph)
	require.NotNil(t, leaves[0].Plan)
	assert.Contains(t, leaves[0].Plan.String(), "1. Scan")

	assert.Equal(t, NestedFallback, leaves[1].Strategy)
	assert.Nil(t, leaves[1].Plan)

	assert.Equal(t, RowEngine, leaves[2].Strategy)
	require.NotNil(t, leaves[2].Plan)
	assert.Contains(t, leaves[2].Plan.String(), "1. HashJoin[seed]")

	// Explaining compiles plans without touching storage.
	assert.Equal(t, int64(0), ds.Scans.Current())

	text := FormatExplain(leaves)
	assert.Contains(t, text, "[1] graph default: rows\n    1. Scan")
	assert.Contains(t, text, "[2] graph variable ?g: nested")
	assert.Contains(t, text, "[3] graph named <http://example.org/g1>: rows\n    1. HashJoin[seed]")
}

func TestExplain_NestedStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyNested
	e := newTestExecutor(t, sampleDataset(), cfg)

	leaves, err := e.Explain(queryir.BGP{Patterns: ir.BasicPattern{tp("?s", "?p", "?o")}})
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, NestedFallback, leaves[0].Strategy)
	assert.Equal(t, "[1] graph default: nested", FormatExplain(leaves))
}

func TestExplain_InvalidOperator(t *testing.T) {
	e := newTestExecutor(t, sampleDataset(), DefaultConfig())
	_, err := e.Explain(queryir.Filter{Sub: queryir.BGP{}})
	require.Error(t, err)
	assert.True(t, IsInvalidOperator(err))
}
