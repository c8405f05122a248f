package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, _, err := execute(t, "validate", queriesDir(t))
	require.NoError(t, err)
	assert.Equal(t, "✓ All 2 queries valid\n", out)
}

func TestValidate_ValidJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", queriesDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"knows", "named"}, resp.Data.Queries)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `package queries

query: short: {
	patterns: [["?s", "<http://ex/p>"]]
}

query: unbound: {
	patterns: [["?s", "<http://ex/p>", "?o"]]
	select: ["?x"]
}
`)

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E110")
	assert.Contains(t, out, "E122")
}

func TestValidate_ErrorsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `package queries

query: unbound: {
	patterns: [["?s", "<http://ex/p>", "?o"]]
	select: ["?x"]
}
`)

	out, _, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E122", resp.Error.Code)
}

func TestValidate_MissingDirectory(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "nowhere"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidate_NoQueries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.cue", "package queries\n")

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no queries found")
}
