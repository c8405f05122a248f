package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/quadmatch/internal/compiler"
	"github.com/roach88/quadmatch/internal/engine"
	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/metrics"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	DB       string
	Backend  string
	Name     string // run only this query
	Parallel int    // concurrent queries; each gets its own snapshot
	Metrics  bool   // print execution counters after the results
}

// QueryOutput is the JSON payload of the query command.
type QueryOutput struct {
	Results []SolutionTable `json:"results"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <queries-dir>",
		Short: "Run queries against a store",
		Long: `Compile the CUE queries in a directory and run them against a store.

Every query runs against its own read snapshot. With --parallel N, up to
N queries run at once; results are always printed in the order the queries are defined.

Examples:
  quadmatch query --db data.db ./queries
  quadmatch query --db data.db ./queries --name knows
  quadmatch query --db data.db ./queries --strategy nested --format json
  quadmatch query --db data.db ./queries --parallel 4 --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (SQLite file or Badger directory)")
	cmd.Flags().StringVar(&opts.Backend, "backend", BackendSQLite, "storage backend (sqlite|badger)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "run only the named query")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of queries to run concurrently")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print execution metrics (Prometheus text format)")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	queries, err := selectQueries(dir, opts.Name)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Running %d query(s) from %s", len(queries), dir)

	b, err := openBackend(opts.Backend, opts.DB, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer b.Close()

	r := &queryRunner{backend: b, cfg: opts.Config, logger: opts.Logger}
	tables, err := r.runAll(ctx, queries, opts.Parallel)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(QueryOutput{Results: tables}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for i, t := range tables {
			if i > 0 {
				fmt.Fprintln(w)
			}
			t.WriteText(w)
		}
	}

	if opts.Metrics {
		// Metrics follow the results on stderr so JSON output stays parseable.
		if err := metrics.WriteText(cmd.ErrOrStderr(), prometheus.DefaultGatherer, "quadmatch_"); err != nil {
			return WrapExitError(ExitFailure, "failed to write metrics", err)
		}
	}
	return nil
}

// selectQueries loads and validates the queries in dir, keeping only name
// when it is set.
func selectQueries(dir, name string) ([]compiler.Query, error) {
	result, loadErrors := compiler.LoadQueries(dir, compiler.LoadModeFailFast)
	if len(loadErrors) > 0 {
		var loadErr *compiler.LoadError
		if errors.As(loadErrors[0], &loadErr) && isCommandErrorCode(loadErr.Code) {
			return nil, WrapExitError(ExitCommandError, "failed to load queries", loadErr)
		}
		return nil, WrapExitError(ExitFailure, "failed to load queries", loadErrors[0])
	}
	if verrs := compiler.ValidateAll(result.Queries); len(verrs) > 0 {
		return nil, WrapExitError(ExitFailure, "invalid queries", verrs[0])
	}
	if name == "" {
		return result.Queries, nil
	}
	q, ok := result.Find(name)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("query not found: %s (have %v)", name, result.Names()))
	}
	return []compiler.Query{*q}, nil
}

// isCommandErrorCode reports whether a load error is about the command
// line (a bad path) rather than the queries themselves.
func isCommandErrorCode(code string) bool {
	return code == compiler.ErrCodeNotFound || code == compiler.ErrCodeNoFiles
}

// queryRunner executes compiled queries against one backend.
type queryRunner struct {
	backend backend
	cfg     engine.Config
	logger  *slog.Logger
}

// runAll runs queries with at most parallel of them in flight and returns
// their tables in input order. The first failure wins.
func (r *queryRunner) runAll(ctx context.Context, queries []compiler.Query, parallel int) ([]SolutionTable, error) {
	tables := make([]SolutionTable, len(queries))
	if parallel <= 1 {
		for i := range queries {
			t, err := r.run(ctx, &queries[i])
			if err != nil {
				return nil, err
			}
			tables[i] = t
		}
		return tables, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	pool, err := ants.NewPool(parallel, ants.WithPanicHandler(func(v any) {
		wg.Done()
		fail(fmt.Errorf("query panicked: %v", v))
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.ReleaseTimeout(5 * time.Second)

	for i := range queries {
		wg.Add(1)
		err := pool.Submit(func() {
			t, err := r.run(ctx, &queries[i])
			if err != nil {
				fail(err)
			} else {
				tables[i] = t
			}
			wg.Done()
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit query %s: %w", queries[i].Name, err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return tables, nil
}

// run executes one query on a fresh snapshot and drains its solutions.
func (r *queryRunner) run(ctx context.Context, q *compiler.Query) (SolutionTable, error) {
	snap, err := r.backend.Snapshot(ctx)
	if err != nil {
		return SolutionTable{}, fmt.Errorf("query %s: %w", q.Name, err)
	}
	defer snap.Close()

	ex, err := engine.New(snap, r.cfg,
		engine.WithLogger(r.logger.With("query", q.Name)),
		engine.WithMetrics(metrics.Observer{}),
		engine.WithIDGenerator(engine.UUIDv7Generator{}),
	)
	if err != nil {
		return SolutionTable{}, fmt.Errorf("query %s: %w", q.Name, err)
	}

	it, err := ex.Execute(ctx, q.Op, engine.Identity())
	if err != nil {
		return SolutionTable{}, fmt.Errorf("query %s: %w", q.Name, err)
	}
	vars := q.Select
	if len(vars) == 0 {
		vars = it.Vars()
	}
	sols, err := engine.CollectSolutions(it)
	if err != nil {
		return SolutionTable{}, fmt.Errorf("query %s: %w", q.Name, err)
	}
	return newSolutionTable(q.Name, vars, projectSolutions(sols, q.Select)), nil
}

// projectSolutions keeps only the selected variables. An empty selection
// keeps every variable; duplicates are preserved.
func projectSolutions(sols []ir.Solution, sel []ir.Var) []ir.Solution {
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
