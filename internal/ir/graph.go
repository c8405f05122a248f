package ir

import "fmt"

// GraphKind is the resolved shape of a graph reference.
type GraphKind uint8

const (
	// GraphDefault is the default (storage) graph.
	GraphDefault GraphKind = iota

	// GraphNamed is one specific named graph.
	GraphNamed

	// GraphVariable ranges over every named graph, binding a variable.
	GraphVariable

	// GraphUnion is the union of all named graphs with duplicates removed.
	GraphUnion
)

// String returns the kind name used in logs and metrics labels.
func (k GraphKind) String() string {
	switch k {
	case GraphDefault:
		return "default"
	case GraphNamed:
		return "named"
	case GraphVariable:
		return "variable"
	case GraphUnion:
		return "union"
	default:
		return fmt.Sprintf("graph(%d)", uint8(k))
	}
}

// GraphRef is a resolved graph identity. Name is set for GraphNamed, Var for
// GraphVariable; both are zero otherwise.
type GraphRef struct {
	Kind GraphKind
	Name Term
	Var  Var
}

// DefaultGraphRef is the reference used by operators without a graph slot.
var DefaultGraphRef = GraphRef{Kind: GraphDefault}

// ResolveGraph maps the graph slot of an operator to a GraphRef:
//
//	?g                                 -> GraphVariable
//	DefaultGraph, DefaultGraphGenerated -> GraphDefault
//	UnionGraph                          -> GraphUnion
//	any other term                      -> GraphNamed
func ResolveGraph(g Slot) GraphRef {
	if v, ok := g.Var(); ok {
		return GraphRef{Kind: GraphVariable, Var: v}
	}
	t, _ := g.Term()
	switch {
	case t.IsDefaultGraph():
		return GraphRef{Kind: GraphDefault}
	case t == UnionGraph:
		return GraphRef{Kind: GraphUnion}
	default:
		return GraphRef{Kind: GraphNamed, Name: t}
	}
}

// String returns a short description such as "named <http://ex/g>".
func (r GraphRef) String() string {
	switch r.Kind {
	case GraphNamed:
		return "named " + r.Name.String()
	case GraphVariable:
		return "variable " + r.Var.String()
	default:
		return r.Kind.String()
	}
}
