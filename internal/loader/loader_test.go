package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/store"
	"github.com/roach88/quadmatch/internal/testutil"
)

func counterLabels() *Relabeler {
	var c testutil.Counter
	return NewRelabelerFunc(func() string { return fmt.Sprintf("b%d", c.Next()) })
}

func TestParseQuads(t *testing.T) {
	quads, err := ParseQuads([][]string{
		{"<http://example.org/a>", "<http://example.org/p>", `"o"`},
		{"_:x", "<http://example.org/p>", "_:y", "<http://example.org/g1>"},
		{"_:x", "<http://example.org/q>", "<http://example.org/a>", "<urn:x-arq:DefaultGraphNode>"},
	}, counterLabels())
	require.NoError(t, err)
	require.Len(t, quads, 3)

	assert.Equal(t, ir.DefaultGraph, quads[0].Graph)
	assert.Equal(t, ir.NewLiteral("o"), quads[0].Object)

	assert.Equal(t, ir.NewIRI("http://example.org/g1"), quads[1].Graph)
	assert.Equal(t, ir.NewBlank("b1"), quads[1].Subject)
	assert.Equal(t, ir.NewBlank("b2"), quads[1].Object)

	// Same local label, same fresh label; generated default graph folded.
	assert.Equal(t, ir.NewBlank("b1"), quads[2].Subject)
	assert.Equal(t, ir.DefaultGraph, quads[2].Graph)
}

func TestParseQuadsErrors(t *testing.T) {
	tests := []struct {
		name string
		rec  []string
		want string
	}{
		{"too short", []string{"<http://example.org/a>", "<http://example.org/p>"}, "want 3 or 4 terms"},
		{"bad term", []string{"a", "<http://example.org/p>", "<http://example.org/o>"}, "unrecognized term"},
		{"literal subject", []string{`"a"`, "<http://example.org/p>", "<http://example.org/o>"}, "literal subject"},
		{"literal graph", []string{"<http://example.org/a>", "<http://example.org/p>", `"o"`, `"g"`}, "graph must be an IRI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuads([][]string{tt.rec}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "quads[0]")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRelabelerFreshPerLoad(t *testing.T) {
	rec := [][]string{{"_:x", "<http://example.org/p>", `"o"`}}

	first, err := ParseQuads(rec, NewRelabeler())
	require.NoError(t, err)
	second, err := ParseQuads(rec, NewRelabeler())
	require.NoError(t, err)

	assert.True(t, first[0].Subject.IsBlank())
	assert.NotEqual(t, "x", first[0].Subject.Value)
	assert.NotEqual(t, first[0].Subject, second[0].Subject)
}

func TestRelabelerKeepsOtherTerms(t *testing.T) {
	r := counterLabels()
	iri := ir.NewIRI("http://example.org/a")
	assert.Equal(t, iri, r.Term(iri))
	assert.Equal(t, 0, r.Len())

	r.Term(ir.NewBlank("x"))
	r.Term(ir.NewBlank("x"))
	assert.Equal(t, 1, r.Len())
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
quads:
  - ["<http://example.org/a>", "<http://example.org/p>", "\"o\""]
  - ["<http://example.org/a>", "<http://example.org/p>", "\"o\"", "<http://example.org/g>"]
`), 0o644))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Quads, 2)
	assert.Equal(t, `"o"`, f.Quads[0][2])
}

func TestReadFileUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quad: []\n"), 0o644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadIntoStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	rec := [][]string{
		{"_:x", "<http://example.org/p>", `"o"`},
		{"<http://example.org/a>", "<http://example.org/p>", `"o"`},
	}

	n, err := Load(ctx, st, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second load relabels _:x again, so only the IRI quad is a duplicate.
	n, err = Load(ctx, st, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

type failingSink struct{}

func (failingSink) AddQuads(context.Context, []ir.Quad) (int, error) {
	return 0, errors.New("disk full")
}

func TestLoadSinkError(t *testing.T) {
	_, err := Load(context.Background(), failingSink{}, [][]string{
		{"<http://example.org/a>", "<http://example.org/p>", `"o"`},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
