// Package engine dispatches algebra operators between the row engine and
// the nested evaluator.
//
// ARCHITECTURE:
//
// Row engine:
// A Basic Pattern over a default or named graph is reordered by the
// configured policy, compiled into a physical plan (one scan, then hash
// joins) and run over row lists. The incoming bindings become the seed of
// the plan; the identity input starts the plan from a scan.
//
// Nested evaluator:
// Solves the patterns one input binding at a time, substituting the
// binding into each pattern before scanning it. It handles every graph
// shape, including variable graphs (GRAPH ?g) and the union graph.
//
// Dispatch:
// The strategy for a pattern operator is a pure function of its graph
// reference (ChooseStrategy). The row engine declines variable and union
// graphs with ErrNotImplemented; Execute catches that and reruns the
// operator on the nested evaluator with the same, unread input. Filters and
// sequences are evaluated structurally around their pattern operators.
//
// CRITICAL PATTERNS:
//
// Both strategies produce the same multiset of solutions for every
// operator they both accept. Only ordering may differ.
//
// Configuration is passed explicitly to New. Whether the row engine is
// used at all is decided once, at construction.
package engine
