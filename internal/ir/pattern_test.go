package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_Tags(t *testing.T) {
	term := SlotForTerm(NewIRI("http://example.org/a"))
	v := SlotForVar("x")

	assert.False(t, term.IsVar())
	assert.True(t, v.IsVar())

	got, ok := term.Term()
	assert.True(t, ok)
	assert.Equal(t, NewIRI("http://example.org/a"), got)

	_, ok = term.Var()
	assert.False(t, ok)

	name, ok := v.Var()
	assert.True(t, ok)
	assert.Equal(t, Var("x"), name)
}

func TestSlot_ZeroPanics(t *testing.T) {
	var zero Slot
	assert.False(t, zero.Valid())

	assertInvariantPanic(t, func() { zero.IsVar() })
	assertInvariantPanic(t, func() { SlotForTerm(Term{}) })
	assertInvariantPanic(t, func() { SlotForVar("") })
	assertInvariantPanic(t, func() { NewTriple(zero, SlotForVar("p"), SlotForVar("o")) })
}

func TestParseSlot(t *testing.T) {
	s, err := ParseSlot("?who")
	require.NoError(t, err)
	assert.True(t, s.IsVar())

	s, err = ParseSlot("<http://example.org/a>")
	require.NoError(t, err)
	assert.False(t, s.IsVar())

	_, err = ParseSlot("?")
	assert.Error(t, err)
}

func TestPattern_Vars(t *testing.T) {
	p := MustParseTriple("?s", "<http://example.org/p>", "?s")
	assert.Equal(t, []Var{"s"}, p.Vars(), "repeated variables are reported once")
	assert.Equal(t, 1, p.BoundCount())

	bp := BasicPattern{
		MustParseTriple("?s", "<http://example.org/p1>", "?o"),
		MustParseTriple("?o", "<http://example.org/p2>", "?z"),
	}
	assert.Equal(t, []Var{"s", "o", "z"}, bp.Vars())
}

func TestPattern_TripleAndQuad(t *testing.T) {
	triple := MustParseTriple("?s", "<http://example.org/p>", `"o"`)
	g := SlotForTerm(NewIRI("http://example.org/g"))

	quad := triple.InGraph(g)
	assert.Equal(t, 4, quad.Arity())
	assert.Equal(t, g, quad.Graph())
	assert.Equal(t, triple.Subject(), quad.Subject())
	assert.Equal(t, triple.Object(), quad.Object())
	assert.Equal(t, triple, quad.Triple())
}

func TestPattern_ArityViolationsPanic(t *testing.T) {
	triple := MustParseTriple("?s", "?p", "?o")
	quad := triple.InGraph(SlotForVar("g"))

	assertArityPanic(t, func() { triple.Triple() })
	assertArityPanic(t, func() { quad.InGraph(SlotForVar("h")) })
	assertArityPanic(t, func() { triple.Graph() })
	assertArityPanic(t, func() { triple.At(3) })
}

func TestPattern_Substitute(t *testing.T) {
	p := MustParseTriple("?s", "<http://example.org/p>", "?o")
	env := Solution{"s": NewIRI("http://example.org/s1")}

	got := p.Substitute(env)
	assert.Equal(t, MustParseTriple("<http://example.org/s1>", "<http://example.org/p>", "?o"), got)
	assert.Equal(t, MustParseTriple("?s", "<http://example.org/p>", "?o"), p, "original unchanged")
}

func TestResolveGraph(t *testing.T) {
	named := NewIRI("http://example.org/g")

	assert.Equal(t, GraphRef{Kind: GraphVariable, Var: "g"}, ResolveGraph(SlotForVar("g")))
	assert.Equal(t, GraphRef{Kind: GraphDefault}, ResolveGraph(SlotForTerm(DefaultGraph)))
	assert.Equal(t, GraphRef{Kind: GraphDefault}, ResolveGraph(SlotForTerm(DefaultGraphGenerated)))
	assert.Equal(t, GraphRef{Kind: GraphUnion}, ResolveGraph(SlotForTerm(UnionGraph)))
	assert.Equal(t, GraphRef{Kind: GraphNamed, Name: named}, ResolveGraph(SlotForTerm(named)))
}

func assertArityPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)
		var ae *ArityError
		assert.True(t, errors.As(err, &ae), "expected ArityError, got %v", err)
	}()
	fn()
}

func assertInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)
		var ie *InvariantError
		assert.True(t, errors.As(err, &ie), "expected InvariantError, got %v", err)
	}()
	fn()
}

func TestQuad_CanonicalAndValidate(t *testing.T) {
	s := NewIRI("http://example.org/s")
	p := NewIRI("http://example.org/p")
	o := NewLiteral("o")

	q := Quad{Subject: s, Predicate: p, Object: o}
	assert.Equal(t, DefaultGraph, q.Canonical().Graph)
	assert.Equal(t, DefaultGraph, Quad{Graph: DefaultGraphGenerated, Subject: s, Predicate: p, Object: o}.Canonical().Graph)
	assert.NoError(t, q.Validate())
	assert.Equal(t, `<http://example.org/s> <http://example.org/p> "o"`, q.String())

	named := Quad{Graph: NewIRI("http://example.org/g"), Subject: s, Predicate: p, Object: o}
	assert.Equal(t, named, named.Canonical())
	assert.Equal(t, `<http://example.org/s> <http://example.org/p> "o" <http://example.org/g>`, named.String())

	assert.Error(t, Quad{Subject: o, Predicate: p, Object: o}.Validate())
	assert.Error(t, Quad{Subject: s, Predicate: o, Object: o}.Validate())
	assert.Error(t, Quad{Subject: s, Predicate: p}.Validate())
	assert.Error(t, Quad{Graph: o, Subject: s, Predicate: p, Object: o}.Validate())
}
