package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleData = `quads:
  - ["<http://ex/alice>", "<http://ex/knows>", "<http://ex/bob>"]
  - ["<http://ex/bob>", "<http://ex/name>", '"Bob"']
  - ["<http://ex/bob>", "<http://ex/knows>", "_:x"]
  - ["_:x", "<http://ex/name>", '"Carol"']
  - ["<http://ex/dave>", "<http://ex/name>", '"Dave"', "<http://ex/g1>"]
`

const peopleQueries = `package queries

query: knows: {
	patterns: [
		["?a", "<http://ex/knows>", "?b"],
		["?b", "<http://ex/name>", "?n"],
	]
	select: ["?n"]
}

query: named: {
	graph: "?g"
	patterns: [["?s", "<http://ex/name>", "?n"]]
}
`

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// queriesDir returns a directory holding the people queries.
func queriesDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "people.cue", peopleQueries)
	return dir
}

// loadedDB returns a SQLite store with the people data loaded.
func loadedDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := writeFile(t, dir, "people.yaml", peopleData)
	db := filepath.Join(dir, "people.db")
	_, _, err := execute(t, "load", "--db", db, data)
	require.NoError(t, err)
	return db
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "validate", queriesDir(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRoot_InvalidStrategy(t *testing.T) {
	_, _, err := execute(t, "--strategy", "bogus", "explain", queriesDir(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestRoot_NegativeMaxBuildRows(t *testing.T) {
	_, _, err := execute(t, "--max-build-rows", "-1", "explain", queriesDir(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_ConfigPrecedence(t *testing.T) {
	dir := queriesDir(t)

	t.Run("default", func(t *testing.T) {
		out, _, err := execute(t, "explain", dir, "--name", "knows")
		require.NoError(t, err)
		assert.Contains(t, out, "[1] graph default: rows")
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("QUADMATCH_STRATEGY", "nested")
		out, _, err := execute(t, "explain", dir, "--name", "knows")
		require.NoError(t, err)
		assert.Contains(t, out, "[1] graph default: nested")
	})

	t.Run("flag beats environment", func(t *testing.T) {
		t.Setenv("QUADMATCH_STRATEGY", "nested")
		out, _, err := execute(t, "--strategy", "rows", "explain", dir, "--name", "knows")
		require.NoError(t, err)
		assert.Contains(t, out, "[1] graph default: rows")
	})

	t.Run("config file", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "quadmatch.yaml", "strategy: nested\n")
		out, _, err := execute(t, "--config", cfg, "explain", dir, "--name", "knows")
		require.NoError(t, err)
		assert.Contains(t, out, "[1] graph default: nested")
	})

	t.Run("environment beats config file", func(t *testing.T) {
		t.Setenv("QUADMATCH_STRATEGY", "rows")
		cfg := writeFile(t, t.TempDir(), "quadmatch.yaml", "strategy: nested\n")
		out, _, err := execute(t, "--config", cfg, "explain", dir, "--name", "knows")
		require.NoError(t, err)
		assert.Contains(t, out, "[1] graph default: rows")
	})
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "explain", queriesDir(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "read config")
}

func TestRoot_Version(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "quadmatch version 0.1.0 (encoding v1)")
}
