package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/quadmatch/internal/compiler"
	"github.com/roach88/quadmatch/internal/engine"
	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/kvstore"
	"github.com/roach88/quadmatch/internal/loader"
	"github.com/roach88/quadmatch/internal/queryir"
	"github.com/roach88/quadmatch/internal/store"
	"github.com/roach88/quadmatch/internal/testutil"
)

// snapshot is the read view both stores hand out.
type snapshot interface {
	engine.Dataset
	Close() error
}

// bgpSolver is implemented by snapshots that can answer a whole Basic
// Pattern in one statement. Results are cross-checked against it.
type bgpSolver interface {
	SolveBGP(ctx context.Context, graph ir.Term, bp ir.BasicPattern) ([]ir.Solution, error)
}

// Harness is the test execution engine.
// It runs scenarios with fixed execution ids and blank node labels.
type Harness struct {
	snap   snapshot
	ids    *testutil.FixedIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh store in its own temporary directory.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create a fresh store for the scenario's backend
// 2. Load the data with deterministic blank node labels
// 3. Compile and run each query under every strategy
// 4. Check that the strategies agree and the expectations hold
// 5. Return result with pass/fail, per-query solutions, and errors
//
// An error is returned only when the scenario could not be run at all;
// query failures and mismatches are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "quadmatch-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	snap, closeStore, err := openBackend(ctx, scenario, dir)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	defer snap.Close()

	h := &Harness{
		snap:   snap,
		ids:    testutil.NewFixedIDGenerator(scenario.ExecID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	for _, qc := range scenario.Queries {
		qr, errs := h.runQuery(ctx, qc)
		result.Queries = append(result.Queries, qr)
		for _, msg := range errs {
			result.AddError(fmt.Sprintf("query %s: %s", qc.Name, msg))
		}
	}
	return result, nil
}

// openBackend creates the scenario's store under dir, loads the data and
// opens a snapshot. closeStore closes the store itself.
func openBackend(ctx context.Context, scenario *Scenario, dir string) (snapshot, func(), error) {
	var c testutil.Counter
	labels := loader.NewRelabelerFunc(func() string { return fmt.Sprintf("b%d", c.Next()) })

	switch scenario.Backend {
	case BackendBadger:
		st, err := kvstore.Open(filepath.Join(dir, "badger"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create badger store: %w", err)
		}
		if _, err := loader.LoadWith(ctx, st, scenario.Data, labels); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("failed to load data: %w", err)
		}
		snap, err := st.Snapshot(ctx)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		return snap, func() { st.Close() }, nil
	default:
		st, err := store.Open(filepath.Join(dir, "quads.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create sqlite store: %w", err)
		}
		if _, err := loader.LoadWith(ctx, st, scenario.Data, labels); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("failed to load data: %w", err)
		}
		snap, err := st.Snapshot(ctx)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		return snap, func() { st.Close() }, nil
	}
}

// runQuery compiles qc, runs it under the automatic, nested and row-only
// strategies and returns the automatic strategy's solutions with every
// problem found.
func (h *Harness) runQuery(ctx context.Context, qc QueryCase) (QueryResult, []string) {
	qr := QueryResult{Name: qc.Name, Solutions: []ir.Solution{}}

	q, err := CompileCase(qc)
	if err != nil {
		return qr, []string{err.Error()}
	}

	exec, err := engine.New(h.snap, engine.DefaultConfig(),
		engine.WithLogger(h.logger),
		engine.WithIDGenerator(h.ids),
	)
	if err != nil {
		return qr, []string{err.Error()}
	}

	var errs []string

	leaves, err := exec.Explain(q.Op)
	if err != nil {
		return qr, []string{err.Error()}
	}
	qr.Plan = engine.FormatExplain(leaves)

	auto, err := collect(exec.Execute(ctx, q.Op, nil))
	if err != nil {
		return qr, []string{fmt.Sprintf("auto: %v", err)}
	}
	qr.Solutions = project(auto, q.Select)

	nested, err := collect(exec.ExecuteNested(ctx, q.Op, nil))
	if err != nil {
		errs = append(errs, fmt.Sprintf("nested: %v", err))
	} else if err := assertSameSolutions("auto and nested strategies", nested, auto); err != nil {
		errs = append(errs, err.Error())
	}

	rowsOnly, err := collect(exec.ExecuteRows(ctx, q.Op, nil))
	switch {
	case engine.IsNotImplemented(err):
		qr.NotImplemented = true
	case err != nil:
		errs = append(errs, fmt.Sprintf("rows: %v", err))
	default:
		if err := assertSameSolutions("auto and rows strategies", rowsOnly, auto); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if ref, ok := h.reference(ctx, q.Op); ok {
		if err := assertSameSolutions("engine and SQL reference", ref, auto); err != nil {
			errs = append(errs, err.Error())
		}
	}

	errs = append(errs, checkExpectations(qc, qr)...)
	return qr, errs
}

// reference answers op with the snapshot's single-statement solver when
// op is one Basic Pattern over a concrete graph.
func (h *Harness) reference(ctx context.Context, op queryir.Op) ([]ir.Solution, bool) {
	solver, ok := h.snap.(bgpSolver)
	if !ok {
		return nil, false
	}
	var (
		graph ir.Term
		bp    ir.BasicPattern
	)
	switch o := op.(type) {
	case queryir.BGP:
		graph, bp = ir.DefaultGraph, o.Patterns
	case queryir.QuadPattern:
		ref := o.GraphRef()
		if ref.Kind != ir.GraphNamed {
			return nil, false
		}
		graph, bp = ref.Name, o.Patterns
	default:
		return nil, false
	}
	sols, err := solver.SolveBGP(ctx, graph, bp)
	if err != nil {
		return nil, false
	}
	return sols, true
}

// CompileCase compiles a query case with the CUE query compiler, so that
// scenario queries and query files accept exactly the same fields.
func CompileCase(qc QueryCase) (*compiler.Query, error) {
	body := caseBody(qc.Graph, qc.Patterns, qc.Filters)
	if len(qc.Select) > 0 {
		body["select"] = qc.Select
	}
	if len(qc.Steps) > 0 {
		if qc.Patterns == nil {
			delete(body, "patterns")
		}
		steps := make([]any, len(qc.Steps))
		for i, s := range qc.Steps {
			steps[i] = caseBody(s.Graph, s.Patterns, s.Filters)
		}
		body["steps"] = steps
	}

	v := cuecontext.New().Encode(body)
	q, err := compiler.CompileQuery(v)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	q.Name = qc.Name
	return q, nil
}

func caseBody(graph string, patterns [][]string, filters []map[string]any) map[string]any {
	if patterns == nil {
		patterns = [][]string{}
	}
	body := map[string]any{"patterns": patterns}
	if graph != "" {
		body["graph"] = graph
	}
	if len(filters) > 0 {
		body["filters"] = filters
	}
	return body
}

func collect(it engine.QueryIter, err error) ([]ir.Solution, error) {
	if err != nil {
		return nil, err
	}
	return engine.CollectSolutions(it)
}

// project keeps only the selected variables. An empty selection keeps
// every variable. Duplicates are preserved.
func project(sols []ir.Solution, sel []ir.Var) []ir.Solution {
	if len(sel) == 0 {
		return sols
	}
	out := make([]ir.Solution, len(sols))
	for i, sol := range sols {
		p := make(ir.Solution, len(sel))
		for _, v := range sel {
			if t, ok := sol[v]; ok {
				p[v] = t
			}
		}
		out[i] = p
	}
	return out
}

// parseExpected converts expect entries into solutions.
func parseExpected(expect []map[string]string) ([]ir.Solution, error) {
	out := make([]ir.Solution, len(expect))
	for i, entry := range expect {
		sol := make(ir.Solution, len(entry))
		for name, text := range entry {
			t, err := ir.ParseTerm(text)
			if err != nil {
				return nil, fmt.Errorf("expect[%d].%s: %w", i, name, err)
			}
			sol[ir.Var(strings.TrimPrefix(name, "?"))] = t
		}
		out[i] = sol
	}
	return out, nil
}
