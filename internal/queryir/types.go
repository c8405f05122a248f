package queryir

import "github.com/roach88/quadmatch/internal/ir"

// Op is an algebra operator the executor can evaluate.
//
// This is a sealed interface - only types in this package implement it.
// Every operator consumes a stream of input solutions and produces a stream
// of output solutions.
type Op interface {
	opNode() // Marker method - seals interface to this package
}

// Expr is a filter expression over one solution.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// BGP is a Basic Pattern of triple patterns matched against the default
// graph.
//
// Semantics:
//
//	{ ?s <p1> "o1" . ?s <p2> ?o2 }
//
// Every input solution is joined with all solutions of the patterns. An
// empty Patterns slice passes every input solution through unchanged.
type BGP struct {
	Patterns ir.BasicPattern // Triple patterns (arity 3)
}

func (BGP) opNode() {}

// QuadPattern is a Basic Pattern of triple patterns scoped to one graph
// reference.
//
// Semantics:
//
//	GRAPH <g> { ?s <p> ?o }
//	GRAPH ?g  { ?s <p> ?o }
//
// Graph resolves through ir.ResolveGraph: a variable slot ranges over the
// named graphs, ir.DefaultGraph selects the default graph and
// ir.UnionGraph the union of the named graphs.
type QuadPattern struct {
	Graph    ir.Slot         // Graph position (term or variable)
	Patterns ir.BasicPattern // Triple patterns (arity 3)
}

func (QuadPattern) opNode() {}

// GraphRef returns the resolved graph reference.
func (q QuadPattern) GraphRef() ir.GraphRef {
	return ir.ResolveGraph(q.Graph)
}

// Filter keeps the solutions of Sub for which every expression evaluates
// to true. An expression that raises an error rejects the solution.
type Filter struct {
	Exprs []Expr // All must be true
	Sub   Op     // Operator whose output is filtered
}

func (Filter) opNode() {}

// Sequence feeds the output of each operator into the next one as input.
// It is equivalent to joining the operators when each one only adds
// bindings.
type Sequence struct {
	Ops []Op
}

func (Sequence) opNode() {}

// Equals holds when Var is bound to Value.
//
// Semantics:
//
//	FILTER(?v = <value>)
//
// Term equality is exact: same kind, lexical form, datatype and language.
type Equals struct {
	Var   ir.Var
	Value ir.Term
}

func (Equals) exprNode() {}

// NotEquals holds when Var is bound to a term other than Value.
type NotEquals struct {
	Var   ir.Var
	Value ir.Term
}

func (NotEquals) exprNode() {}

// SameVar holds when Left and Right are bound to the same term.
type SameVar struct {
	Left  ir.Var
	Right ir.Var
}

func (SameVar) exprNode() {}

// Bound holds when Var has a value. It never raises an error.
type Bound struct {
	Var ir.Var
}

func (Bound) exprNode() {}

// Not negates Expr. An error in Expr stays an error.
type Not struct {
	Expr Expr
}

func (Not) exprNode() {}

// And holds when every expression holds. Empty And is true.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Or holds when any expression holds. Empty Or is false.
type Or struct {
	Exprs []Expr
}

func (Or) exprNode() {}
