package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openTestSnapshot opens a snapshot closed at test cleanup.
func openTestSnapshot(t *testing.T, s *Store) *Snapshot {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { snap.Close() })
	return snap
}

func ex(name string) ir.Term {
	return ir.NewIRI("http://example.org/" + name)
}

// triple creates a default-graph quad.
func triple(s, p string, o ir.Term) ir.Quad {
	return ir.Quad{Subject: ex(s), Predicate: ex(p), Object: o}
}

// inGraph creates a quad in a named graph.
func inGraph(g, s, p string, o ir.Term) ir.Quad {
	return ir.Quad{Graph: ex(g), Subject: ex(s), Predicate: ex(p), Object: o}
}

func collectSolutions(t *testing.T, l *rows.List) []ir.Solution {
	t.Helper()
	got, err := rows.Collect(context.Background(), l)
	require.NoError(t, err)
	out := make([]ir.Solution, len(got))
	for i, r := range got {
		out[i] = r.Solution()
	}
	return out
}
