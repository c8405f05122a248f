package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quadmatch/internal/engine"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	DB      string // optional; plans do not depend on data
	Backend string
	Name    string
}

// ExplainedQuery is the JSON form of one explained query.
type ExplainedQuery struct {
	Query  string          `json:"query"`
	Leaves []ExplainedLeaf `json:"leaves"`
}

// ExplainedLeaf is one pattern operator and how it would run.
type ExplainedLeaf struct {
	Graph    string   `json:"graph"`
	Strategy string   `json:"strategy"`
	Steps    []string `json:"steps,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <queries-dir>",
		Short: "Show how queries would be executed",
		Long: `Show, for every pattern operator of each query, which evaluator would
run it and the plan of scans and hash joins the row engine would compile.

No data is read. Without --db an empty in-memory store stands in, which
yields the same plans.

Examples:
  quadmatch explain ./queries
  quadmatch explain ./queries --name knows --reorder none`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (optional)")
	cmd.Flags().StringVar(&opts.Backend, "backend", BackendSQLite, "storage backend (sqlite|badger)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "explain only the named query")

	return cmd
}

func runExplain(ctx context.Context, opts *ExplainOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	queries, err := selectQueries(dir, opts.Name)
	if err != nil {
		return err
	}

	var b backend
	if opts.DB == "" {
		b, err = openMemoryBackend()
	} else {
		b, err = openBackend(opts.Backend, opts.DB, true)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer b.Close()

	snap, err := b.Snapshot(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open snapshot", err)
	}
	defer snap.Close()

	ex, err := engine.New(snap, opts.Config, engine.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	explained := make([]ExplainedQuery, 0, len(queries))
	texts := make([]string, 0, len(queries))
	for _, q := range queries {
		leaves, err := ex.Explain(q.Op)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("explain %s", q.Name), err)
		}
		explained = append(explained, newExplainedQuery(q.Name, leaves))
		texts = append(texts, fmt.Sprintf("# %s\n%s", q.Name, engine.FormatExplain(leaves)))
	}

	if opts.Format == "json" {
		return formatter.Success(explained)
	}
	return formatter.Success(strings.Join(texts, "\n\n"))
}

func newExplainedQuery(name string, leaves []engine.LeafPlan) ExplainedQuery {
	eq := ExplainedQuery{Query: name, Leaves: make([]ExplainedLeaf, len(leaves))}
	for i, lp := range leaves {
		leaf := ExplainedLeaf{Graph: lp.Graph, Strategy: lp.Strategy.String()}
		if lp.Plan != nil {
			leaf.Steps = strings.Split(lp.Plan.String(), "\n")
		}
		eq.Leaves[i] = leaf
	}
	return eq
}
