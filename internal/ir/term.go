package ir

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TermKind identifies the kind of RDF node a Term represents.
type TermKind uint8

const (
	// KindIRI is an IRI reference, written <...>.
	KindIRI TermKind = iota + 1

	// KindLiteral is a literal with optional language tag or datatype.
	KindLiteral

	// KindBlank is a blank node, written _:label.
	KindBlank
)

// String returns the kind name used in diagnostics.
func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindLiteral:
		return "literal"
	case KindBlank:
		return "blank"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// XSDString is the datatype IRI of simple literals. Literals typed with it
// are stored without a datatype so "a" and "a"^^xsd:string compare equal.
const XSDString = "http://www.w3.org/2001/XMLSchema#string"

// Term is an immutable RDF node: IRI, literal or blank node.
//
// Term is comparable; two terms are the same node iff they are ==.
// Construct terms with NewIRI, NewLiteral, NewLangLiteral, NewTypedLiteral
// or NewBlank so normalization is applied. The zero Term is not a node.
type Term struct {
	Kind     TermKind
	Value    string // IRI text, literal lexical form, or blank label
	Datatype string // literal datatype IRI; empty for simple and lang literals
	Lang     string // lower-cased language tag; empty unless lang literal
}

// Reserved graph names. They never reach storage as data.
var (
	// DefaultGraph names the default graph explicitly.
	DefaultGraph = Term{Kind: KindIRI, Value: "urn:x-arq:DefaultGraph"}

	// DefaultGraphGenerated names the default graph when a parser had to
	// invent a graph node for a triple. It resolves exactly like DefaultGraph.
	DefaultGraphGenerated = Term{Kind: KindIRI, Value: "urn:x-arq:DefaultGraphNode"}

	// UnionGraph names the union of all named graphs.
	UnionGraph = Term{Kind: KindIRI, Value: "urn:x-arq:UnionGraph"}
)

// NewIRI returns an IRI term.
func NewIRI(iri string) Term {
	return Term{Kind: KindIRI, Value: norm.NFC.String(iri)}
}

// NewLiteral returns a simple literal.
func NewLiteral(lex string) Term {
	return Term{Kind: KindLiteral, Value: norm.NFC.String(lex)}
}

// NewLangLiteral returns a language-tagged literal. Tags are case-insensitive
// and stored lower-cased.
func NewLangLiteral(lex, lang string) Term {
	return Term{Kind: KindLiteral, Value: norm.NFC.String(lex), Lang: strings.ToLower(lang)}
}

// NewTypedLiteral returns a datatyped literal. xsd:string collapses to a
// simple literal.
func NewTypedLiteral(lex, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: norm.NFC.String(lex), Datatype: norm.NFC.String(datatype)}
}

// NewBlank returns a blank node with the given label.
func NewBlank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// IsZero reports whether t is the zero Term (no node).
func (t Term) IsZero() bool {
	return t.Kind == 0
}

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsBlank reports whether t is a blank node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsDefaultGraph reports whether t names the default graph.
func (t Term) IsDefaultGraph() bool {
	return t == DefaultGraph || t == DefaultGraphGenerated
}

// String returns the N-Triples form of the term.
// ParseTerm(t.String()) == t for every valid term.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		var b strings.Builder
		b.WriteByte('"')
		b.WriteString(escapeLiteral(t.Value))
		b.WriteByte('"')
		switch {
		case t.Lang != "":
			b.WriteByte('@')
			b.WriteString(t.Lang)
		case t.Datatype != "":
			b.WriteString("^^<")
			b.WriteString(t.Datatype)
			b.WriteByte('>')
		}
		return b.String()
	default:
		return "<zero-term>"
	}
}

// Key returns the storage and hashing key of the term.
// Distinct terms always have distinct keys.
func (t Term) Key() string {
	if t.IsZero() {
		panic(&InvariantError{Message: "zero Term has no key"})
	}
	return t.String()
}

// ParseTerm parses the N-Triples form of a term:
//
//	<http://example/a>        IRI
//	_:b0                      blank node
//	"text"                    simple literal
//	"chat"@fr                 language-tagged literal
//	"1"^^<http://...#integer> typed literal
func ParseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Term{}, fmt.Errorf("empty term")
	}

	switch {
	case s[0] == '<':
		if len(s) < 2 || s[len(s)-1] != '>' {
			return Term{}, fmt.Errorf("unterminated IRI %q", s)
		}
		iri := s[1 : len(s)-1]
		if strings.ContainsAny(iri, "<> \"") {
			return Term{}, fmt.Errorf("invalid character in IRI %q", s)
		}
		return NewIRI(iri), nil

	case strings.HasPrefix(s, "_:"):
		label := s[2:]
		if label == "" || strings.ContainsAny(label, " \t\"<>") {
			return Term{}, fmt.Errorf("invalid blank node label %q", s)
		}
		return NewBlank(label), nil

	case s[0] == '"':
		return parseLiteral(s)

	default:
		return Term{}, fmt.Errorf("unrecognized term syntax %q", s)
	}
}

// MustParseTerm is like ParseTerm but panics on error.
// Use only in tests or for constant input.
func MustParseTerm(s string) Term {
	t, err := ParseTerm(s)
	if err != nil {
		panic(err)
	}
	return t
}

// parseLiteral parses a quoted literal with optional @lang or ^^<datatype>.
func parseLiteral(s string) (Term, error) {
	var lex strings.Builder
	i := 1
	closed := false
	for i < len(s) {
		c := s[i]
		if c == '\\' {
			if i+1 >= len(s) {
				return Term{}, fmt.Errorf("dangling escape in literal %q", s)
			}
			switch s[i+1] {
			case '"':
				lex.WriteByte('"')
			case '\\':
				lex.WriteByte('\\')
			case 'n':
				lex.WriteByte('\n')
			case 'r':
				lex.WriteByte('\r')
			case 't':
				lex.WriteByte('\t')
			default:
				return Term{}, fmt.Errorf("unsupported escape \\%c in literal %q", s[i+1], s)
			}
			i += 2
			continue
		}
		if c == '"' {
			closed = true
			i++
			break
		}
		lex.WriteByte(c)
		i++
	}
	if !closed {
		return Term{}, fmt.Errorf("unterminated literal %q", s)
	}

	rest := s[i:]
	switch {
	case rest == "":
		return NewLiteral(lex.String()), nil
	case strings.HasPrefix(rest, "@"):
		lang := rest[1:]
		if lang == "" || strings.ContainsAny(lang, " \t\"<>^") {
			return Term{}, fmt.Errorf("invalid language tag in %q", s)
		}
		return NewLangLiteral(lex.String(), lang), nil
	case strings.HasPrefix(rest, "^^"):
		dt, err := ParseTerm(rest[2:])
		if err != nil {
			return Term{}, fmt.Errorf("literal datatype: %w", err)
		}
		if !dt.IsIRI() {
			return Term{}, fmt.Errorf("literal datatype must be an IRI in %q", s)
		}
		return NewTypedLiteral(lex.String(), dt.Value), nil
	default:
		return Term{}, fmt.Errorf("unexpected text after literal in %q", s)
	}
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
