package ir

import "fmt"

// Quad is one stored statement. A zero Graph means the default graph.
type Quad struct {
	Graph     Term
	Subject   Term
	Predicate Term
	Object    Term
}

// Canonical returns q with every default graph name folded onto
// DefaultGraph.
func (q Quad) Canonical() Quad {
	if q.Graph.IsZero() || q.Graph.IsDefaultGraph() {
		q.Graph = DefaultGraph
	}
	return q
}

// Terms returns the four terms in g, s, p, o order.
func (q Quad) Terms() [4]Term {
	return [4]Term{q.Graph, q.Subject, q.Predicate, q.Object}
}

// Validate reports a quad that cannot be stored: a missing term, a literal
// in subject or predicate position, or a graph name that is not an IRI.
func (q Quad) Validate() error {
	switch {
	case q.Subject.IsZero() || q.Predicate.IsZero() || q.Object.IsZero():
		return fmt.Errorf("quad %s: missing term", q)
	case q.Subject.IsLiteral():
		return fmt.Errorf("quad %s: literal subject", q)
	case !q.Predicate.IsIRI():
		return fmt.Errorf("quad %s: predicate must be an IRI", q)
	case !q.Graph.IsZero() && !q.Graph.IsIRI():
		return fmt.Errorf("quad %s: graph must be an IRI", q)
	}
	return nil
}

// String returns "<g> <s> <p> <o>" in N-Quads order (graph last), with the
// graph omitted for the default graph.
func (q Quad) String() string {
	s := fmt.Sprintf("%s %s %s", termOrBlank(q.Subject), termOrBlank(q.Predicate), termOrBlank(q.Object))
	if q.Graph.IsZero() || q.Graph.IsDefaultGraph() {
		return s
	}
	return s + " " + q.Graph.String()
}

func termOrBlank(t Term) string {
	if t.IsZero() {
		return "_"
	}
	return t.String()
}
