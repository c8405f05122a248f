package rows

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/quadmatch/internal/ir"
)

// Row is one solution: an immutable mapping from variable to term.
//
// A variable appears at most once. Absence means "not bound", which is
// different from being bound to any particular term. Rows are created by
// Accessors and by join steps through a Builder and never change after
// Build; joins produce new rows.
//
// The zero Row is valid and binds nothing.
type Row struct {
	vars []ir.Var  // sorted
	vals []ir.Term // parallel to vars
}

// Get returns the term bound to v.
func (r Row) Get(v ir.Var) (ir.Term, bool) {
	i, ok := slices.BinarySearch(r.vars, v)
	if !ok {
		return ir.Term{}, false
	}
	return r.vals[i], true
}

// Contains reports whether v is bound.
func (r Row) Contains(v ir.Var) bool {
	_, ok := slices.BinarySearch(r.vars, v)
	return ok
}

// Vars returns the bound variables in sorted order. The caller must not
// modify the returned slice.
func (r Row) Vars() []ir.Var {
	return r.vars
}

// Size returns the number of bound variables.
func (r Row) Size() int {
	return len(r.vars)
}

// Equal reports whether both rows bind the same variables to the same terms.
func (r Row) Equal(other Row) bool {
	return slices.Equal(r.vars, other.vars) && slices.Equal(r.vals, other.vals)
}

// Solution copies the row into a plain ir.Solution.
func (r Row) Solution() ir.Solution {
	sol := make(ir.Solution, len(r.vars))
	for i, v := range r.vars {
		sol[v] = r.vals[i]
	}
	return sol
}

// String returns "{?a=<x> ?b="y"}" with variables in sorted order.
func (r Row) String() string {
	parts := make([]string, len(r.vars))
	for i, v := range r.vars {
		parts[i] = fmt.Sprintf("%s=%s", v, r.vals[i])
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// FromSolution builds a row from a plain solution.
func FromSolution(sol ir.Solution) Row {
	b := NewBuilder(len(sol))
	for v, t := range sol {
		b.Add(v, t)
	}
	return b.Build()
}

// Builder accumulates bindings before freezing them into a Row. The builder
// owns a temporary mutable map; the Row returned by Build shares nothing
// with it.
//
// A Builder is single-use: Build resets it to empty.
type Builder struct {
	m map[ir.Var]ir.Term
}

// NewBuilder returns a builder sized for about n bindings.
func NewBuilder(n int) *Builder {
	return &Builder{m: make(map[ir.Var]ir.Term, n)}
}

// Add binds v to t. Binding a variable twice to different terms panics with
// an ir.InvariantError; binding it twice to the same term is a no-op.
func (b *Builder) Add(v ir.Var, t ir.Term) *Builder {
	if v == "" {
		panic(&ir.InvariantError{Message: "row binding for empty variable name"})
	}
	if t.IsZero() {
		panic(&ir.InvariantError{Message: fmt.Sprintf("row binding %s to zero term", v)})
	}
	if existing, ok := b.m[v]; ok && existing != t {
		panic(&ir.InvariantError{
			Message: fmt.Sprintf("variable %s bound twice (%s, %s)", v, existing, t),
		})
	}
	b.m[v] = t
	return b
}

// AddRow adds every binding of r.
func (b *Builder) AddRow(r Row) *Builder {
	for i, v := range r.vars {
		b.Add(v, r.vals[i])
	}
	return b
}

// Has reports whether v has been added.
func (b *Builder) Has(v ir.Var) bool {
	_, ok := b.m[v]
	return ok
}

// Build freezes the accumulated bindings into a Row and resets the builder.
func (b *Builder) Build() Row {
	if len(b.m) == 0 {
		return Row{}
	}
	vars := make([]ir.Var, 0, len(b.m))
	for v := range b.m {
		vars = append(vars, v)
	}
	slices.Sort(vars)
	vals := make([]ir.Term, len(vars))
	for i, v := range vars {
		vals[i] = b.m[v]
	}
	clear(b.m)
	return Row{vars: vars, vals: vals}
}

// Merge returns the union of a and b. It returns false when a variable bound
// in both carries different terms.
func Merge(a, b Row) (Row, bool) {
	if a.Size() == 0 {
		return b, true
	}
	if b.Size() == 0 {
		return a, true
	}

	vars := make([]ir.Var, 0, len(a.vars)+len(b.vars))
	vals := make([]ir.Term, 0, len(a.vars)+len(b.vars))
	i, j := 0, 0
	for i < len(a.vars) || j < len(b.vars) {
		switch {
		case j >= len(b.vars) || (i < len(a.vars) && a.vars[i] < b.vars[j]):
			vars = append(vars, a.vars[i])
			vals = append(vals, a.vals[i])
			i++
		case i >= len(a.vars) || b.vars[j] < a.vars[i]:
			vars = append(vars, b.vars[j])
			vals = append(vals, b.vals[j])
			j++
		default:
			if a.vals[i] != b.vals[j] {
				return Row{}, false
			}
			vars = append(vars, a.vars[i])
			vals = append(vals, a.vals[i])
			i++
			j++
		}
	}
	return Row{vars: vars, vals: vals}, true
}
