package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/queryir"
)

// LeafPlan describes how one pattern operator of a tree would run.
type LeafPlan struct {
	// Graph is the resolved graph reference, e.g. "default", "?g".
	Graph string

	// Strategy is the evaluator the operator would be dispatched to.
	Strategy Strategy

	// Plan is the compiled plan, nil for the nested evaluator.
	Plan fmt.Stringer
}

// Explain reports, for every pattern operator of op in evaluation order,
// the strategy the executor would choose and the plan the row engine
// would compile. Nothing is read from storage.
//
// Operators after the first in a sequence are explained as seeded plans,
// as they are at run time.
func (e *Executor) Explain(op queryir.Op) ([]LeafPlan, error) {
	res := queryir.Validate(op)
	if !res.IsValid {
		return nil, newInvalidOperatorError("explain", res.Errors)
	}

	var leaves []LeafPlan
	seeded := false
	var walk func(op queryir.Op)
	leaf := func(ref ir.GraphRef, bp ir.BasicPattern) {
		lp := LeafPlan{Graph: ref.String(), Strategy: NestedFallback}
		if e.rowsEnabled && e.cfg.Strategy != StrategyNested && ChooseStrategy(ref) == RowEngine {
			lp.Strategy = RowEngine
			lp.Plan = e.compile(ref, bp, seeded)
		}
		leaves = append(leaves, lp)
		seeded = true
	}
	walk = func(op queryir.Op) {
		switch o := op.(type) {
		case queryir.BGP:
			leaf(ir.DefaultGraphRef, o.Patterns)
		case queryir.QuadPattern:
			leaf(o.GraphRef(), o.Patterns)
		case queryir.Filter:
			walk(o.Sub)
		case queryir.Sequence:
			for _, sub := range o.Ops {
				walk(sub)
			}
		}
	}
	walk(op)
	return leaves, nil
}

// FormatExplain renders the result of Explain, one block per operator:
//
//	[1] graph default: rows
//	    1. Scan (?s <p1> "o1")
//	    2. HashJoin[?s] (?s <p2> ?o2)
//	[2] graph variable ?g: nested
func FormatExplain(leaves []LeafPlan) string {
	var b strings.Builder
	for i, lp := range leaves {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] graph %s: %s", i+1, lp.Graph, lp.Strategy)
		if lp.Plan == nil {
			continue
		}
		for _, line := range strings.Split(lp.Plan.String(), "\n") {
			b.WriteString("\n    ")
			b.WriteString(line)
		}
	}
	return b.String()
}
