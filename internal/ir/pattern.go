package ir

import "strings"

// Positions within a quad pattern. Triple patterns use PosS, PosP, PosO
// shifted down by one; use the Subject/Predicate/Object accessors instead
// of raw indexes where arity may vary.
const (
	PosG = 0
	PosS = 1
	PosP = 2
	PosO = 3
)

// Pattern is a fixed-arity tuple of slots: (s, p, o) for a triple pattern or
// (g, s, p, o) for a quad pattern.
//
// Pattern is comparable and immutable; every method returns a new value.
type Pattern struct {
	slots [4]Slot
	arity int
}

// NewTriple returns a triple pattern.
func NewTriple(s, p, o Slot) Pattern {
	for _, slot := range []Slot{s, p, o} {
		slot.mustValid()
	}
	return Pattern{slots: [4]Slot{s, p, o}, arity: 3}
}

// NewQuad returns a quad pattern.
func NewQuad(g, s, p, o Slot) Pattern {
	for _, slot := range []Slot{g, s, p, o} {
		slot.mustValid()
	}
	return Pattern{slots: [4]Slot{g, s, p, o}, arity: 4}
}

// ParseTriple builds a triple pattern from three slot strings.
func ParseTriple(s, p, o string) (Pattern, error) {
	slots, err := parseSlots(s, p, o)
	if err != nil {
		return Pattern{}, err
	}
	return NewTriple(slots[0], slots[1], slots[2]), nil
}

// MustParseTriple is like ParseTriple but panics on error.
func MustParseTriple(s, p, o string) Pattern {
	pat, err := ParseTriple(s, p, o)
	if err != nil {
		panic(err)
	}
	return pat
}

func parseSlots(texts ...string) ([]Slot, error) {
	slots := make([]Slot, len(texts))
	for i, text := range texts {
		slot, err := ParseSlot(text)
		if err != nil {
			return nil, err
		}
		slots[i] = slot
	}
	return slots, nil
}

// Arity returns 3 for triple patterns and 4 for quad patterns.
func (p Pattern) Arity() int {
	return p.arity
}

// At returns the slot at index i (0-based, within Arity).
func (p Pattern) At(i int) Slot {
	if i < 0 || i >= p.arity {
		panic(&ArityError{Op: "Pattern.At", Expected: p.arity, Actual: i + 1})
	}
	return p.slots[i]
}

// Slots returns a copy of the pattern's slots.
func (p Pattern) Slots() []Slot {
	out := make([]Slot, p.arity)
	copy(out, p.slots[:p.arity])
	return out
}

// Graph returns the graph slot of a quad pattern.
func (p Pattern) Graph() Slot {
	p.mustArity("Pattern.Graph", 4)
	return p.slots[0]
}

// Subject returns the subject slot.
func (p Pattern) Subject() Slot { return p.slots[p.offset()] }

// Predicate returns the predicate slot.
func (p Pattern) Predicate() Slot { return p.slots[p.offset()+1] }

// Object returns the object slot.
func (p Pattern) Object() Slot { return p.slots[p.offset()+2] }

func (p Pattern) offset() int {
	if p.arity == 4 {
		return 1
	}
	return 0
}

// Triple drops the graph slot of a quad pattern.
// Panics with ArityError when p is already a triple pattern.
func (p Pattern) Triple() Pattern {
	p.mustArity("Pattern.Triple", 4)
	return Pattern{slots: [4]Slot{p.slots[1], p.slots[2], p.slots[3]}, arity: 3}
}

// InGraph places a triple pattern in graph g.
// Panics with ArityError when p is already a quad pattern.
func (p Pattern) InGraph(g Slot) Pattern {
	p.mustArity("Pattern.InGraph", 3)
	g.mustValid()
	return Pattern{slots: [4]Slot{g, p.slots[0], p.slots[1], p.slots[2]}, arity: 4}
}

// Vars returns the distinct variables of the pattern in order of first
// occurrence.
func (p Pattern) Vars() []Var {
	var vars []Var
	for _, slot := range p.slots[:p.arity] {
		if v, ok := slot.Var(); ok && !containsVar(vars, v) {
			vars = append(vars, v)
		}
	}
	return vars
}

// BoundCount returns the number of term slots.
func (p Pattern) BoundCount() int {
	n := 0
	for _, slot := range p.slots[:p.arity] {
		if !slot.IsVar() {
			n++
		}
	}
	return n
}

// Substitute replaces every variable bound in env with its term.
func (p Pattern) Substitute(env Env) Pattern {
	out := p
	for i := 0; i < p.arity; i++ {
		out.slots[i] = p.slots[i].Resolve(env)
	}
	return out
}

// String returns the pattern in a Turtle-like form, e.g.
// "(?s <http://ex/p> "o")".
func (p Pattern) String() string {
	parts := make([]string, p.arity)
	for i, slot := range p.slots[:p.arity] {
		parts[i] = slot.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (p Pattern) mustArity(op string, want int) {
	if p.arity != want {
		panic(&ArityError{Op: op, Expected: want, Actual: p.arity})
	}
}

// BasicPattern is an ordered list of patterns matched jointly. Order is a
// join-order hint only; it never changes the set of solutions.
type BasicPattern []Pattern

// Vars returns the union of the patterns' variables in order of first
// occurrence.
func (bp BasicPattern) Vars() []Var {
	var vars []Var
	for _, p := range bp {
		for _, v := range p.Vars() {
			if !containsVar(vars, v) {
				vars = append(vars, v)
			}
		}
	}
	return vars
}

// Clone returns a copy that shares no backing array with bp.
func (bp BasicPattern) Clone() BasicPattern {
	if bp == nil {
		return nil
	}
	out := make(BasicPattern, len(bp))
	copy(out, bp)
	return out
}

// String returns the patterns joined by " . ".
func (bp BasicPattern) String() string {
	parts := make([]string, len(bp))
	for i, p := range bp {
		parts[i] = p.String()
	}
	return strings.Join(parts, " . ")
}

func containsVar(vars []Var, v Var) bool {
	for _, existing := range vars {
		if existing == v {
			return true
		}
	}
	return false
}
