package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// Binding is the solution type of the caller's pipeline: a chain of
// frames, each adding variables on top of its parent. Extending a binding
// never copies the parent.
//
// A nil *Binding is the empty root binding. Bindings are immutable.
type Binding struct {
	parent *Binding
	vars   []ir.Var
	terms  []ir.Term
	size   int
}

// NewBinding returns a root binding holding sol.
func NewBinding(sol ir.Solution) *Binding {
	return RowToBinding(rows.FromSolution(sol))
}

// Get returns the term bound to v anywhere in the chain.
func (b *Binding) Get(v ir.Var) (ir.Term, bool) {
	for f := b; f != nil; f = f.parent {
		for i, fv := range f.vars {
			if fv == v {
				return f.terms[i], true
			}
		}
	}
	return ir.Term{}, false
}

// Contains reports whether v is bound.
func (b *Binding) Contains(v ir.Var) bool {
	_, ok := b.Get(v)
	return ok
}

// Size returns the number of bound variables.
func (b *Binding) Size() int {
	if b == nil {
		return 0
	}
	return b.size
}

// Vars returns the bound variables in sorted order.
func (b *Binding) Vars() []ir.Var {
	out := make([]ir.Var, 0, b.Size())
	for f := b; f != nil; f = f.parent {
		out = append(out, f.vars...)
	}
	slices.Sort(out)
	return out
}

// Parent returns the binding this one extends, nil for a root.
func (b *Binding) Parent() *Binding {
	if b == nil {
		return nil
	}
	return b.parent
}

// Extend returns a child binding adding the variables of r that b does not
// already bind. A variable bound in both to different terms is an
// invariant violation and panics; callers merge only compatible rows.
func (b *Binding) Extend(r rows.Row) *Binding {
	child := &Binding{parent: b, size: b.Size()}
	for _, v := range r.Vars() {
		t, _ := r.Get(v)
		if old, ok := b.Get(v); ok {
			if old != t {
				panic(&ir.InvariantError{Message: fmt.Sprintf("extend binding: %s bound to %s and %s", v, old, t)})
			}
			continue
		}
		child.vars = append(child.vars, v)
		child.terms = append(child.terms, t)
		child.size++
	}
	if len(child.vars) == 0 {
		return b
	}
	return child
}

// Solution flattens the binding into an ir.Solution.
func (b *Binding) Solution() ir.Solution {
	sol := make(ir.Solution, b.Size())
	for f := b; f != nil; f = f.parent {
		for i, v := range f.vars {
			sol[v] = f.terms[i]
		}
	}
	return sol
}

// String returns "{?a=<x>, ?b="y"}" with variables sorted.
func (b *Binding) String() string {
	vars := b.Vars()
	parts := make([]string, len(vars))
	for i, v := range vars {
		t, _ := b.Get(v)
		parts[i] = fmt.Sprintf("%s=%s", v, t)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// RowToBinding converts a row into a root binding with the same mappings.
func RowToBinding(r rows.Row) *Binding {
	vars := r.Vars()
	b := &Binding{vars: vars, terms: make([]ir.Term, len(vars)), size: len(vars)}
	for i, v := range vars {
		b.terms[i], _ = r.Get(v)
	}
	return b
}

// BindingToRow flattens the chain into a row with the same mappings.
func BindingToRow(b *Binding) rows.Row {
	builder := rows.NewBuilder(b.Size())
	for f := b; f != nil; f = f.parent {
		for i, v := range f.vars {
			builder.Add(v, f.terms[i])
		}
	}
	return builder.Build()
}
