package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by Scenario.Backend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named
	// after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the store: BackendSQLite (default) or BackendBadger.
	Backend string `yaml:"backend,omitempty"`

	// Data lists the quads to load, as [s, p, o] or [s, p, o, g] terms.
	Data [][]string `yaml:"data"`

	// Queries are run in order against the loaded data.
	Queries []QueryCase `yaml:"queries"`

	// ExecID is an optional fixed execution id for log lines.
	// If empty, defaults to "test-exec-default".
	ExecID string `yaml:"exec_id,omitempty"`
}

// QueryCase is one query and its expectations.
type QueryCase struct {
	Name string `yaml:"name"`

	// Graph, Patterns, Filters, Select and Steps have the meaning of the
	// same fields in a CUE query file.
	Graph    string           `yaml:"graph,omitempty"`
	Patterns [][]string       `yaml:"patterns"`
	Filters  []map[string]any `yaml:"filters,omitempty"`
	Select   []string         `yaml:"select,omitempty"`
	Steps    []StepCase       `yaml:"steps,omitempty"`

	// Expect is the exact solution multiset. Keys are variable names,
	// with or without the leading "?"; values are N-Triples terms.
	Expect []map[string]string `yaml:"expect,omitempty"`

	// ExpectCount is the expected number of solutions.
	ExpectCount *int `yaml:"expect_count,omitempty"`

	// ExpectNotImplemented asserts the row engine declines this query.
	ExpectNotImplemented bool `yaml:"expect_not_implemented,omitempty"`
}

// StepCase is one step of a multi-step query.
type StepCase struct {
	Graph    string           `yaml:"graph,omitempty"`
	Patterns [][]string       `yaml:"patterns"`
	Filters  []map[string]any `yaml:"filters,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate required fields
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the scenario files at path: path itself if it is
// a file, or every .yaml/.yml file under it, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Backend {
	case "", BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", s.Backend, BackendSQLite, BackendBadger)
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	for i, rec := range s.Data {
		if len(rec) != 3 && len(rec) != 4 {
			return fmt.Errorf("data[%d]: want 3 or 4 terms, got %d", i, len(rec))
		}
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
		if q.Patterns == nil && len(q.Steps) == 0 {
			return fmt.Errorf("queries[%d]: patterns is required (use [] for the empty pattern)", i)
		}
		if q.ExpectCount != nil && *q.ExpectCount < 0 {
			return fmt.Errorf("queries[%d]: expect_count must be non-negative", i)
		}
		if q.ExpectCount != nil && q.Expect != nil && *q.ExpectCount != len(q.Expect) {
			return fmt.Errorf("queries[%d]: expect_count %d disagrees with %d expected solutions",
				i, *q.ExpectCount, len(q.Expect))
		}
	}

	return nil
}
