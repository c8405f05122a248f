package ir

import (
	"bytes"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Solution is a plain variable-to-term mapping used at package boundaries:
// scenario expectations, golden files, CLI output. The engine itself works
// on rows.Row and engine.Binding.
type Solution map[Var]Term

// Get implements Env.
func (s Solution) Get(v Var) (Term, bool) {
	t, ok := s[v]
	return t, ok
}

// SortedVars returns the solution's variables in RFC 8785 key order.
func (s Solution) SortedVars() []Var {
	vars := make([]Var, 0, len(s))
	for v := range s {
		vars = append(vars, v)
	}
	slices.SortFunc(vars, func(a, b Var) int {
		return compareKeysRFC8785(string(a), string(b))
	})
	return vars
}

// MarshalCanonical produces RFC 8785 canonical JSON for a solution:
// an object mapping variable names to N-Triples term strings.
//
// Differences from encoding/json:
//  1. Keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping
//  3. Strings NFC normalized
func (s Solution) MarshalCanonical() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range s.SortedVars() {
		if i > 0 {
			buf.WriteByte(',')
		}
		t := s[v]
		if t.IsZero() {
			return nil, fmt.Errorf("variable %s bound to zero term", v)
		}
		writeCanonicalString(&buf, string(v))
		buf.WriteByte(':')
		writeCanonicalString(&buf, t.String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalCanonicalSet produces canonical JSON for a multiset of solutions:
// a JSON array whose elements are the canonical solutions sorted bytewise.
// Two solution sequences that differ only in order marshal identically.
func MarshalCanonicalSet(sols []Solution) ([]byte, error) {
	encoded := make([][]byte, len(sols))
	for i, sol := range sols {
		b, err := sol.MarshalCanonical()
		if err != nil {
			return nil, fmt.Errorf("solution[%d]: %w", i, err)
		}
		encoded[i] = b
	}
	slices.SortFunc(encoded, bytes.Compare)

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range encoded {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785. Go's string comparison uses UTF-8 bytes, which
// orders supplementary-plane characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// writeCanonicalString writes an NFC-normalized JSON string. Only the quote,
// backslash and control characters are escaped.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for _, r := range norm.NFC.String(s) {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[r>>4])
				buf.WriteByte(hex[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
