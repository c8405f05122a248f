// Package reorder decides the order in which the patterns of a Basic
// Pattern are joined.
//
// The only real policy is Fixed: a greedy heuristic that repeatedly picks
// the cheapest remaining pattern, where cost comes from a fixed table of
// bound/unbound shapes. Variables bound by patterns already placed count as
// bound for the ones still waiting, so connected patterns are preferred
// over ones that would need a cross product.
//
// There is no cost model and no statistics. A policy never drops or
// duplicates a pattern and never mutates its input.
package reorder

import (
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
)

// RDFType is the rdf:type predicate, which gets its own weight: "?x a <C>"
// typically matches far more than other predicate-object lookups.
var RDFType = ir.NewIRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")

// Policy reorders a Basic Pattern. The result is always a permutation of
// the input.
type Policy interface {
	Reorder(bp ir.BasicPattern) ir.BasicPattern
	Name() string
}

// ByName returns the policy for a configuration value: "fixed" or "none".
func ByName(name string) (Policy, error) {
	switch name {
	case "fixed", "":
		return Fixed(), nil
	case "none":
		return None(), nil
	default:
		return nil, fmt.Errorf("unknown reorder policy %q (want fixed or none)", name)
	}
}

// None returns the identity policy.
func None() Policy {
	return identity{}
}

type identity struct{}

func (identity) Reorder(bp ir.BasicPattern) ir.BasicPattern { return bp.Clone() }
func (identity) Name() string                               { return "none" }

// Fixed returns the fixed-weight greedy policy.
func Fixed() Policy {
	return fixed{}
}

type fixed struct{}

func (fixed) Name() string { return "fixed" }

// Reorder places patterns one at a time, always taking the lowest weight
// among those left. Ties go to the pattern that came first in the input, so
// the result is deterministic.
func (fixed) Reorder(bp ir.BasicPattern) ir.BasicPattern {
	if len(bp) < 2 {
		return bp.Clone()
	}

	remaining := bp.Clone()
	out := make(ir.BasicPattern, 0, len(bp))
	bound := make(map[ir.Var]bool)
	for len(remaining) > 0 {
		best, bestWeight := 0, Weight(remaining[0], bound)
		for i := 1; i < len(remaining); i++ {
			if w := Weight(remaining[i], bound); w < bestWeight {
				best, bestWeight = i, w
			}
		}
		chosen := remaining[best]
		out = append(out, chosen)
		for _, v := range chosen.Vars() {
			bound[v] = true
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

// Shape weights. Lower runs earlier.
const (
	weightSPO     = 1   // all bound
	weightSP      = 2   // subject and predicate bound
	weightSO      = 2   // subject and object bound
	weightPO      = 3   // predicate and object bound
	weightTypeO   = 5   // ?x rdf:type <C>
	weightS       = 10  // subject only
	weightO       = 20  // object only
	weightP       = 30  // predicate only
	weightNothing = 100 // all variables
)

// Weight returns the cost of p when the variables in bound already have
// values. The graph position of a quad pattern does not contribute.
func Weight(p ir.Pattern, bound map[ir.Var]bool) int {
	s := isBound(p.Subject(), bound)
	pr := isBound(p.Predicate(), bound)
	o := isBound(p.Object(), bound)

	switch {
	case s && pr && o:
		return weightSPO
	case s && pr:
		return weightSP
	case s && o:
		return weightSO
	case pr && o:
		if t, ok := p.Predicate().Term(); ok && t == RDFType {
			return weightTypeO
		}
		return weightPO
	case s:
		return weightS
	case o:
		return weightO
	case pr:
		return weightP
	default:
		return weightNothing
	}
}

func isBound(slot ir.Slot, bound map[ir.Var]bool) bool {
	v, ok := slot.Var()
	if !ok {
		return true
	}
	return bound[v]
}
