package plan

import (
	"context"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// Accessor is the storage capability the row engine runs against.
//
// AccessRows returns every match of p as a lazy list whose rows bind
// exactly the variables of p. A variable repeated in several positions
// carries the same term in each; storage never returns rows where they
// disagree. Row order is unspecified.
//
// Failures surface through the list's Iterator.Err and are never
// swallowed. AccessRows may be called repeatedly and concurrently; each
// returned list is owned by one consumer.
type Accessor interface {
	AccessRows(ctx context.Context, p ir.Pattern) *rows.List
}

// AccessorFunc adapts an ordinary function to the Accessor interface.
type AccessorFunc func(ctx context.Context, p ir.Pattern) *rows.List

// AccessRows implements Accessor.
func (f AccessorFunc) AccessRows(ctx context.Context, p ir.Pattern) *rows.List {
	return f(ctx, p)
}
