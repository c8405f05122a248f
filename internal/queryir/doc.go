// Package queryir defines the algebra operators handed to the executor and
// the filter expressions evaluated over their solutions.
//
// ARCHITECTURE:
//
// The query IR sits between query sources (CUE query files, YAML scenarios,
// callers building operators directly) and the executor:
//
//	[CUE / YAML] -> [Query IR] -> [engine.Executor] -> row engine
//	                                                -> nested fallback
//
// OPERATORS:
//
//   - BGP{Patterns} - Basic Pattern over the default graph
//   - QuadPattern{Graph, Patterns} - Basic Pattern over a graph reference
//     (named, default, variable, or union)
//   - Filter{Exprs, Sub} - keep solutions of Sub for which every Expr holds
//   - Sequence{Ops} - each operator's output is the next one's input
//
// EXPRESSIONS:
//
//   - Equals, NotEquals - variable against a constant term
//   - SameVar - two variables bound to the same term
//   - Bound - variable has a value
//   - Not, And, Or - the usual connectives, with error-aware evaluation
//
// SEALED INTERFACES:
//
// Op and Expr are sealed interfaces using the marker method pattern. Only
// types in this package can implement them, so type switches in the
// executor and compiler are exhaustive.
//
// Filters are always evaluated after the join that produces their
// solutions; they are never pushed into storage access.
package queryir
