package engine

import (
	"context"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/plan"
)

// Dataset is the storage a query runs against. Both store.Snapshot and
// kvstore.Snapshot implement it.
type Dataset interface {
	// Graph returns the accessor for triple patterns in one graph.
	// ir.DefaultGraph selects the default graph.
	Graph(name ir.Term) plan.Accessor

	// Quads returns the accessor for quad patterns over the named graphs.
	// A variable graph position never matches the default graph.
	Quads() plan.Accessor

	// GraphNames lists the named graphs that hold at least one quad.
	GraphNames(ctx context.Context) ([]ir.Term, error)
}

// RowDataset is a Dataset whose accessors are cheap enough to be scanned
// unconstrained by the row engine. A Dataset without it is evaluated by
// the nested evaluator only.
type RowDataset interface {
	Dataset
	SupportsRowAccess() bool
}

func rowAccess(ds Dataset) bool {
	rd, ok := ds.(RowDataset)
	return ok && rd.SupportsRowAccess()
}
