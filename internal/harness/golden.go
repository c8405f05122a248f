package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/quadmatch/internal/ir"
)

// ResultSnapshot captures the solutions of a scenario execution.
// Solutions use canonical JSON, so the snapshot does not depend on the
// order rows were produced in.
type ResultSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Queries      []QuerySnapshot `json:"queries"`
}

// QuerySnapshot is one query's entry in a ResultSnapshot.
type QuerySnapshot struct {
	Name           string          `json:"name"`
	NotImplemented bool            `json:"not_implemented"`
	Plan           string          `json:"plan,omitempty"`
	Solutions      json.RawMessage `json:"solutions"`
}

// Snapshot builds the snapshot of result.
func Snapshot(scenarioName string, result *Result) (*ResultSnapshot, error) {
	snap := &ResultSnapshot{ScenarioName: scenarioName, Queries: []QuerySnapshot{}}
	for _, q := range result.Queries {
		sols, err := ir.MarshalCanonicalSet(q.Solutions)
		if err != nil {
			return nil, err
		}
		snap.Queries = append(snap.Queries, QuerySnapshot{
			Name:           q.Name,
			NotImplemented: q.NotImplemented,
			Plan:           q.Plan,
			Solutions:      sols,
		})
	}
	return snap, nil
}

// Marshal renders the snapshot as indented JSON without HTML escaping, so
// IRIs stay readable in golden files.
func (s *ResultSnapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its solutions against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the solutions don't match the
// golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	// Run the scenario
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snap, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}

	// Compare with golden file using goldie
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
