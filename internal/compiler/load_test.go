package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadQueries(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "people.cue", `package queries

query: names: {
	patterns: [["?s", "<http://example.org/name>", "?n"]]
}
`)
	writeCUE(t, dir, "graphs.cue", `package queries

query: inGraphs: {
	graph: "?g"
	patterns: [["?s", "<http://example.org/p>", "?o"]]
}
`)

	res, errs := LoadQueries(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 2, res.FileCount)
	assert.ElementsMatch(t, []string{"names", "inGraphs"}, res.Names())

	q, ok := res.Find("inGraphs")
	require.True(t, ok)
	assert.Equal(t, "inGraphs", q.Name)

	_, ok = res.Find("missing")
	assert.False(t, ok)
}

func TestLoadQueriesCollectAll(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "q.cue", `package queries

query: good: patterns: []
query: bad1: graph: "default"
query: bad2: {
	patterns: []
	filters: [{op: "nope"}]
}
`)

	res, errs := LoadQueries(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Equal(t, []string{"good"}, res.Names())

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeInvalidPattern, le.Code)
	require.ErrorAs(t, errs[1], &le)
	assert.Equal(t, ErrCodeInvalidFilter, le.Code)
}

func TestLoadQueriesFailFast(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "q.cue", `package queries

query: bad1: graph: "default"
query: bad2: graph: "default"
`)

	_, errs := LoadQueries(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadQueriesDirectoryErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", filepath.Join(dir, "nope"), ErrCodeNotFound},
		{"empty", dir, ErrCodeNoFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadQueries(tt.path, LoadModeCollectAll)
			require.Len(t, errs, 1)
			var le *LoadError
			require.ErrorAs(t, errs[0], &le)
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadQueriesNoQueries(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "x.cue", "package queries\n\nother: 1\n")

	_, errs := LoadQueries(dir, LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no queries found")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"patterns":            ErrCodeInvalidPattern,
		"patterns[2]":         ErrCodeInvalidPattern,
		"steps[1].graph":      ErrCodeInvalidGraph,
		"filters[0].exprs[1]": ErrCodeInvalidFilter,
		"steps[0].filters[0]": ErrCodeInvalidFilter,
		"select[0]":           ErrCodeInvalidSelect,
		"cue":                 ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}
