package ir

import (
	"fmt"
	"strings"
)

// Var is a named query variable. The name excludes the leading '?'.
type Var string

// String returns the variable in query syntax, e.g. "?s".
func (v Var) String() string {
	return "?" + string(v)
}

// slotTag records which half of the Slot sum type is active.
type slotTag uint8

const (
	slotInvalid slotTag = iota
	slotTerm
	slotVar
)

// Slot is one position of a pattern: either a bound Term or a Var.
//
// Slot is a sum type. Exactly one tag is active and it never changes after
// construction. The zero Slot has no tag; every accessor panics on it with
// an InvariantError.
type Slot struct {
	tag  slotTag
	term Term
	v    Var
}

// SlotForTerm returns a Slot holding a bound term.
func SlotForTerm(t Term) Slot {
	if t.IsZero() {
		panic(&InvariantError{Message: "slot for zero term"})
	}
	return Slot{tag: slotTerm, term: t}
}

// SlotForVar returns a Slot holding a variable.
func SlotForVar(v Var) Slot {
	if v == "" {
		panic(&InvariantError{Message: "slot for empty variable name"})
	}
	return Slot{tag: slotVar, v: v}
}

// ParseSlot reads "?name" as a variable and anything else as a term.
func ParseSlot(s string) (Slot, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "?") {
		name := s[1:]
		if name == "" {
			return Slot{}, fmt.Errorf("empty variable name")
		}
		return SlotForVar(Var(name)), nil
	}
	t, err := ParseTerm(s)
	if err != nil {
		return Slot{}, err
	}
	return SlotForTerm(t), nil
}

// MustParseSlot is like ParseSlot but panics on error.
func MustParseSlot(s string) Slot {
	slot, err := ParseSlot(s)
	if err != nil {
		panic(err)
	}
	return slot
}

// Valid reports whether the slot has an active tag.
func (s Slot) Valid() bool {
	return s.tag != slotInvalid
}

// IsVar reports whether the slot holds a variable.
func (s Slot) IsVar() bool {
	s.mustValid()
	return s.tag == slotVar
}

// Term returns the bound term and true, or the zero Term and false for a
// variable slot.
func (s Slot) Term() (Term, bool) {
	s.mustValid()
	return s.term, s.tag == slotTerm
}

// Var returns the variable and true, or "" and false for a term slot.
func (s Slot) Var() (Var, bool) {
	s.mustValid()
	return s.v, s.tag == slotVar
}

// String returns "?name" or the N-Triples form of the term.
func (s Slot) String() string {
	switch s.tag {
	case slotVar:
		return s.v.String()
	case slotTerm:
		return s.term.String()
	default:
		return "<invalid-slot>"
	}
}

// Resolve substitutes a bound value for a variable slot. Term slots and
// unbound variables are returned unchanged.
func (s Slot) Resolve(env Env) Slot {
	if v, ok := s.Var(); ok {
		if t, bound := env.Get(v); bound {
			return SlotForTerm(t)
		}
	}
	return s
}

func (s Slot) mustValid() {
	if s.tag == slotInvalid {
		panic(&InvariantError{Message: "slot has no active tag"})
	}
}

// Env is read access to variable bindings. Rows, engine bindings and plain
// Solutions all satisfy it.
type Env interface {
	Get(v Var) (Term, bool)
}
