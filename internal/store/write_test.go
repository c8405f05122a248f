package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/ir"
)

func TestAddQuads_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	quads := []ir.Quad{
		triple("a", "p", ex("b")),
		triple("a", "p", ex("b")),
		inGraph("g", "a", "p", ex("b")),
	}
	added, err := s.AddQuads(ctx, quads)
	require.NoError(t, err)
	assert.Equal(t, 2, added, "duplicate in the same batch ignored")

	added, err = s.AddQuads(ctx, quads)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAddQuads_GeneratedDefaultGraphIsDefault(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	q := triple("a", "p", ex("b"))
	_, err := s.AddQuads(ctx, []ir.Quad{q})
	require.NoError(t, err)

	q.Graph = ir.DefaultGraphGenerated
	added, err := s.AddQuads(ctx, []ir.Quad{q})
	require.NoError(t, err)
	assert.Equal(t, 0, added, "same quad under the other default graph name")
}

func TestAddQuads_InvalidAbortsBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AddQuads(ctx, []ir.Quad{
		triple("a", "p", ex("b")),
		{Subject: ir.NewLiteral("lit"), Predicate: ex("p"), Object: ex("b")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "literal subject")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "batch rolled back")
}

func TestDeleteQuads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AddQuads(ctx, []ir.Quad{triple("a", "p", ex("b")), triple("a", "p", ex("c"))})
	require.NoError(t, err)

	removed, err := s.DeleteQuads(ctx, []ir.Quad{triple("a", "p", ex("b")), triple("x", "p", ex("y"))})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLoads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.NextLoadSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	require.NoError(t, s.RecordLoad(ctx, LoadRecord{ID: "load-1", Source: "a.yaml", Added: 3, Seq: seq}))
	require.NoError(t, s.RecordLoad(ctx, LoadRecord{ID: "load-1", Source: "a.yaml", Added: 3, Seq: seq}))

	seq, err = s.NextLoadSeq(ctx)
	require.NoError(t, err)
	require.NoError(t, s.RecordLoad(ctx, LoadRecord{ID: "load-2", Source: "b.yaml", Added: 1, Seq: seq}))

	loads, err := s.ReadLoads(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, "load-1", loads[0].ID)
	assert.Equal(t, int64(2), loads[1].Seq)
}
