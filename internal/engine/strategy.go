package engine

import (
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
)

// Strategy names the evaluator that runs a pattern operator.
type Strategy uint8

const (
	// RowEngine compiles the operator into a physical plan of scans and
	// hash joins over row lists.
	RowEngine Strategy = iota

	// NestedFallback evaluates the operator one input binding at a time,
	// solving pattern by pattern.
	NestedFallback
)

// String returns the label used in logs and metrics.
func (s Strategy) String() string {
	switch s {
	case RowEngine:
		return "rows"
	case NestedFallback:
		return "nested"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ChooseStrategy maps a resolved graph reference to the evaluator that can
// run it. It is a pure function of the reference:
//
//	Default, Named   -> RowEngine
//	Variable, Union  -> NestedFallback
func ChooseStrategy(ref ir.GraphRef) Strategy {
	switch ref.Kind {
	case ir.GraphDefault, ir.GraphNamed:
		return RowEngine
	default:
		return NestedFallback
	}
}
