package queryir

import (
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
)

// ValidationResult contains the structural analysis of an operator tree.
type ValidationResult struct {
	// IsValid is false when the tree cannot be executed at all.
	IsValid bool

	// Errors lists the structural problems found. Empty when IsValid is true.
	Errors []string

	// Fallbacks lists the operators the row engine declines (variable or
	// union graph) and that will run on the nested evaluator instead. These
	// are informational, not errors.
	Fallbacks []string
}

// Validate checks an operator tree before execution.
//
// Structural rules:
//  1. No nil operators or expressions anywhere in the tree
//  2. BGP and QuadPattern contain triple patterns (arity 3) only
//  3. QuadPattern has a graph slot, and a constant graph is an IRI
//  4. Filter has at least one expression
//
// Validate is a pure function with no side effects.
func Validate(op Op) ValidationResult {
	v := &validator{
		errors: []string{},
	}
	v.validateOp(op, "")

	return ValidationResult{
		IsValid:   len(v.errors) == 0,
		Errors:    v.errors,
		Fallbacks: v.fallbacks,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	errors    []string
	fallbacks []string
}

func (v *validator) addError(path, format string, args ...any) {
	v.errors = append(v.errors, prefix(path)+fmt.Sprintf(format, args...))
}

func prefix(path string) string {
	if path == "" {
		return ""
	}
	return path + ": "
}

// validateOp recursively validates an operator node. path locates the node
// for messages, e.g. "sequence[1].filter".
func (v *validator) validateOp(op Op, path string) {
	switch o := op.(type) {
	case nil:
		v.addError(path, "nil operator")
	case BGP:
		v.validatePatterns(o.Patterns, join(path, "bgp"))
	case QuadPattern:
		p := join(path, "graph")
		v.validateGraph(o, p)
		v.validatePatterns(o.Patterns, p)
	case Filter:
		p := join(path, "filter")
		if len(o.Exprs) == 0 {
			v.addError(p, "filter without expressions")
		}
		for i, e := range o.Exprs {
			v.validateExpr(e, fmt.Sprintf("%s.expr[%d]", p, i))
		}
		v.validateOp(o.Sub, p)
	case Sequence:
		for i, sub := range o.Ops {
			v.validateOp(sub, fmt.Sprintf("%s[%d]", join(path, "sequence"), i))
		}
	default:
		v.addError(path, "unknown operator type %T", op)
	}
}

func (v *validator) validateGraph(q QuadPattern, path string) {
	if !q.Graph.Valid() {
		v.addError(path, "quad pattern without a graph")
		return
	}
	if t, ok := q.Graph.Term(); ok && !t.IsIRI() {
		v.addError(path, "graph %s is not an IRI", t)
		return
	}
	switch ref := q.GraphRef(); ref.Kind {
	case ir.GraphVariable, ir.GraphUnion:
		v.fallbacks = append(v.fallbacks, prefix(path)+ref.String())
	}
}

func (v *validator) validatePatterns(bp ir.BasicPattern, path string) {
	for i, p := range bp {
		if p.Arity() != 3 {
			v.addError(path, "pattern %d has arity %d, want 3", i, p.Arity())
		}
	}
}

// validateExpr recursively validates an expression node.
func (v *validator) validateExpr(e Expr, path string) {
	switch x := e.(type) {
	case nil:
		v.addError(path, "nil expression")
	case Equals:
		v.validateVar(x.Var, path)
		v.validateTerm(x.Value, path)
	case NotEquals:
		v.validateVar(x.Var, path)
		v.validateTerm(x.Value, path)
	case SameVar:
		v.validateVar(x.Left, path)
		v.validateVar(x.Right, path)
	case Bound:
		v.validateVar(x.Var, path)
	case Not:
		v.validateExpr(x.Expr, path+".not")
	case And:
		for i, sub := range x.Exprs {
			v.validateExpr(sub, fmt.Sprintf("%s.and[%d]", path, i))
		}
	case Or:
		for i, sub := range x.Exprs {
			v.validateExpr(sub, fmt.Sprintf("%s.or[%d]", path, i))
		}
	default:
		v.addError(path, "unknown expression type %T", e)
	}
}

func (v *validator) validateVar(name ir.Var, path string) {
	if name == "" {
		v.addError(path, "empty variable name")
	}
}

func (v *validator) validateTerm(t ir.Term, path string) {
	if t.IsZero() {
		v.addError(path, "missing constant term")
	}
}

func join(path, node string) string {
	if path == "" {
		return node
	}
	return path + "." + node
}
