package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/plan"
	"github.com/roach88/quadmatch/internal/queryir"
	"github.com/roach88/quadmatch/internal/reorder"
	"github.com/roach88/quadmatch/internal/rows"
)

// Metrics receives execution counts. metrics.Observer implements it.
//
// Implementations must be safe for concurrent use.
type Metrics interface {
	plan.Observer

	// Dispatched reports one pattern operator finished by strategy.
	Dispatched(strategy string, elapsed time.Duration)

	// FellBack reports one operator handed to the nested evaluator.
	FellBack(reason string)
}

type nopMetrics struct{}

func (nopMetrics) ScanRows(ir.Pattern, int)         {}
func (nopMetrics) BuildRows(ir.Pattern, int)        {}
func (nopMetrics) JoinRows(ir.Pattern, int)         {}
func (nopMetrics) Dispatched(string, time.Duration) {}
func (nopMetrics) FellBack(string)                  {}

// Executor dispatches algebra operators between the row engine and the
// nested evaluator.
//
// Whether the row engine takes part at all is decided once, in New. When
// it does not (Strategy "nested", or a dataset without row access) every
// operator goes to the nested evaluator and the row engine is never
// consulted again.
//
// Thread-safety model:
//   - Execute, ExecuteRows, ExecuteNested: safe from any goroutine
//   - each returned QueryIter is owned by one goroutine
//
// The Executor keeps no state between Execute calls.
type Executor struct {
	ds          Dataset
	cfg         Config
	policy      reorder.Policy
	logger      *slog.Logger
	ids         IDGenerator
	metrics     Metrics
	rowsEnabled bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the execution id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Executor) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithMetrics installs a metrics sink for dispatch counts and plan row
// counts.
func WithMetrics(m Metrics) Option {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New creates an Executor over ds. The configuration is validated and
// copied; later changes by the caller have no effect.
func New(ds Dataset, cfg Config, opts ...Option) (*Executor, error) {
	if ds == nil {
		return nil, fmt.Errorf("engine: nil dataset")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := reorder.ByName(cfg.Reorder)
	if err != nil {
		return nil, err
	}

	e := &Executor{
		ds:      ds,
		cfg:     cfg,
		policy:  policy,
		logger:  slog.Default(),
		ids:     UUIDv7Generator{},
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rowsEnabled = cfg.Strategy != StrategyNested && rowAccess(ds)
	return e, nil
}

// RowsEnabled reports whether the row engine takes part in execution.
func (e *Executor) RowsEnabled() bool {
	return e.rowsEnabled
}

// mode selects how pattern operators are evaluated within one call.
type mode uint8

const (
	modeAuto   mode = iota // row engine, nested evaluator for declined operators
	modeRows               // row engine only
	modeNested             // nested evaluator only
)

func (m mode) String() string {
	switch m {
	case modeRows:
		return StrategyRows
	case modeNested:
		return StrategyNested
	default:
		return StrategyAuto
	}
}

// execution is the per-call state: an id for log correlation and the mode.
type execution struct {
	id   string
	mode mode
}

// Execute runs op with input as its incoming solutions. A nil input means
// the identity input (one empty binding).
//
// Pattern operators the row engine declines (variable or union graph) are
// rerun on the nested evaluator with the same, still unread, input. With
// Strategy "rows" they fail with ErrNotImplemented instead.
func (e *Executor) Execute(ctx context.Context, op queryir.Op, input QueryIter) (QueryIter, error) {
	m := modeNested
	if e.rowsEnabled {
		m = modeAuto
		if e.cfg.Strategy == StrategyRows {
			m = modeRows
		}
	}
	return e.start(ctx, op, input, m)
}

// ExecuteRows runs op on the row engine only. An operator it cannot run
// fails with an error for which IsNotImplemented is true, before input is
// read.
func (e *Executor) ExecuteRows(ctx context.Context, op queryir.Op, input QueryIter) (QueryIter, error) {
	return e.start(ctx, op, input, modeRows)
}

// ExecuteNested runs op on the nested evaluator only.
func (e *Executor) ExecuteNested(ctx context.Context, op queryir.Op, input QueryIter) (QueryIter, error) {
	return e.start(ctx, op, input, modeNested)
}

func (e *Executor) start(ctx context.Context, op queryir.Op, input QueryIter, m mode) (QueryIter, error) {
	x := &execution{id: e.ids.Generate(), mode: m}

	res := queryir.Validate(op)
	if !res.IsValid {
		return nil, newInvalidOperatorError(x.id, res.Errors)
	}
	if input == nil {
		input = Identity()
	}

	e.logger.Debug("executing operator",
		"exec_id", x.id,
		"mode", m.String(),
		"op", queryir.Format(op),
	)
	return e.run(ctx, x, op, input)
}

func (e *Executor) run(ctx context.Context, x *execution, op queryir.Op, input QueryIter) (QueryIter, error) {
	switch o := op.(type) {
	case queryir.BGP:
		return e.dispatch(ctx, x, ir.DefaultGraphRef, o.Patterns, input)
	case queryir.QuadPattern:
		return e.dispatch(ctx, x, o.GraphRef(), o.Patterns, input)
	case queryir.Filter:
		sub, err := e.run(ctx, x, o.Sub, input)
		if err != nil {
			return nil, err
		}
		exprs := o.Exprs
		return &filterIter{QueryIter: sub, holds: func(b *Binding) bool {
			return queryir.Holds(exprs, b)
		}}, nil
	case queryir.Sequence:
		cur := input
		for i, sub := range o.Ops {
			next, err := e.run(ctx, x, sub, cur)
			if err != nil {
				cur.Close()
				return nil, fmt.Errorf("sequence[%d]: %w", i, err)
			}
			cur = next
		}
		return cur, nil
	default:
		return nil, fmt.Errorf("engine: unsupported operator %T", op)
	}
}

// dispatch evaluates one pattern operator according to the mode.
func (e *Executor) dispatch(ctx context.Context, x *execution, ref ir.GraphRef, bp ir.BasicPattern, input QueryIter) (QueryIter, error) {
	start := time.Now()
	strategy := NestedFallback

	var (
		out QueryIter
		err error
	)
	if x.mode != modeNested {
		strategy = RowEngine
		out, err = e.rowsLeaf(ctx, x, ref, bp, input)
		if IsNotImplemented(err) && x.mode == modeAuto {
			e.logger.Info("row engine declined operator, using nested evaluator",
				"exec_id", x.id,
				"graph", ref.String(),
				"patterns", len(bp),
			)
			e.metrics.FellBack(ref.Kind.String() + " graph")
			strategy = NestedFallback
			out, err = e.nestedLeaf(ctx, ref, bp, input), nil
		}
	} else {
		out = e.nestedLeaf(ctx, ref, bp, input)
	}
	if err != nil {
		input.Close()
		return nil, err
	}

	label := strategy.String()
	return &doneIter{QueryIter: out, onDone: func(n int, err error) {
		input.Close()
		e.metrics.Dispatched(label, time.Since(start))
		e.logger.Debug("operator finished",
			"exec_id", x.id,
			"strategy", label,
			"graph", ref.String(),
			"rows", n,
			"error", err,
		)
	}}, nil
}

// rowsLeaf compiles bp into a physical plan over the resolved graph.
func (e *Executor) rowsLeaf(ctx context.Context, x *execution, ref ir.GraphRef, bp ir.BasicPattern, input QueryIter) (QueryIter, error) {
	if ChooseStrategy(ref) != RowEngine {
		return nil, newNotImplementedError(x.id, fmt.Sprintf("%s graph", ref.Kind))
	}
	var seed *rows.List
	seeded := !isIdentity(input)
	if seeded {
		seed = iterToList(input)
	}
	p := e.compile(ref, bp, seeded)

	level := slog.LevelDebug
	if e.cfg.LogPlans {
		level = slog.LevelInfo
	}
	e.logger.Log(ctx, level, "compiled plan",
		"exec_id", x.id,
		"graph", ref.String(),
		"policy", e.policy.Name(),
		"plan", p.String(),
	)

	out, err := p.Execute(ctx, seed)
	if err != nil {
		return nil, err
	}
	return newRowIter(ctx, out), nil
}

// compile reorders bp and builds its plan over the graph ref names. A
// seeded plan joins its first pattern with the incoming bindings.
func (e *Executor) compile(ref ir.GraphRef, bp ir.BasicPattern, seeded bool) *plan.Plan {
	name := ir.DefaultGraph
	if ref.Kind == ir.GraphNamed {
		name = ref.Name
	}
	acc := e.ds.Graph(name)
	ordered := e.policy.Reorder(bp)
	opts := []plan.Option{
		plan.WithMaxBuildRows(e.cfg.MaxBuildRows),
		plan.WithObserver(e.metrics),
	}
	if seeded {
		return plan.BuildSeeded(ordered, acc, opts...)
	}
	return plan.Build(ordered, acc, opts...)
}

// nestedLeaf evaluates bp one input binding at a time.
func (e *Executor) nestedLeaf(ctx context.Context, ref ir.GraphRef, bp ir.BasicPattern, input QueryIter) QueryIter {
	vars := bp.Vars()
	var scan scanFunc
	switch ref.Kind {
	case ir.GraphNamed:
		scan = graphScan(e.ds, ref.Name)
	case ir.GraphVariable:
		scan = quadScan(e.ds, ref.Var)
		if len(bp) > 0 {
			vars = append(vars, ref.Var)
		}
	case ir.GraphUnion:
		scan = unionScan(e.ds)
	default:
		scan = graphScan(e.ds, ir.DefaultGraph)
	}
	return newNestedIter(ctx, input, bp, scan, vars)
}
