package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/quadmatch/internal/ir"
)

// Vars returns the variables op can bind, in order of first occurrence.
// Filters add none.
func Vars(op Op) []ir.Var {
	var out []ir.Var
	seen := make(map[ir.Var]bool)
	add := func(vs []ir.Var) {
		for _, v := range vs {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	var walk func(Op)
	walk = func(op Op) {
		switch o := op.(type) {
		case BGP:
			add(o.Patterns.Vars())
		case QuadPattern:
			if v, ok := o.Graph.Var(); ok {
				add([]ir.Var{v})
			}
			add(o.Patterns.Vars())
		case Filter:
			walk(o.Sub)
		case Sequence:
			for _, sub := range o.Ops {
				walk(sub)
			}
		}
	}
	walk(op)
	return out
}

// Format renders op as an indented algebra expression, one operator per
// line. Used by explain output and test failure messages.
func Format(op Op) string {
	var b strings.Builder
	format(&b, op, 0)
	return b.String()
}

func format(b *strings.Builder, op Op, depth int) {
	indent := strings.Repeat("  ", depth)
	switch o := op.(type) {
	case BGP:
		fmt.Fprintf(b, "%s(bgp %s)", indent, o.Patterns)
	case QuadPattern:
		fmt.Fprintf(b, "%s(graph %s %s)", indent, o.Graph, o.Patterns)
	case Filter:
		parts := make([]string, len(o.Exprs))
		for i, e := range o.Exprs {
			parts[i] = FormatExpr(e)
		}
		fmt.Fprintf(b, "%s(filter (%s)\n", indent, strings.Join(parts, " "))
		format(b, o.Sub, depth+1)
		b.WriteString(")")
	case Sequence:
		fmt.Fprintf(b, "%s(sequence", indent)
		for _, sub := range o.Ops {
			b.WriteString("\n")
			format(b, sub, depth+1)
		}
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "%s(unknown %T)", indent, op)
	}
}

// FormatExpr renders one expression in prefix form, e.g. (= ?x "a").
func FormatExpr(e Expr) string {
	switch x := e.(type) {
	case Equals:
		return fmt.Sprintf("(= %s %s)", x.Var, x.Value)
	case NotEquals:
		return fmt.Sprintf("(!= %s %s)", x.Var, x.Value)
	case SameVar:
		return fmt.Sprintf("(sameTerm %s %s)", x.Left, x.Right)
	case Bound:
		return fmt.Sprintf("(bound %s)", x.Var)
	case Not:
		return fmt.Sprintf("(! %s)", FormatExpr(x.Expr))
	case And:
		return "(&&" + formatList(x.Exprs) + ")"
	case Or:
		return "(||" + formatList(x.Exprs) + ")"
	default:
		return fmt.Sprintf("(unknown %T)", e)
	}
}

func formatList(exprs []Expr) string {
	var b strings.Builder
	for _, e := range exprs {
		b.WriteString(" ")
		b.WriteString(FormatExpr(e))
	}
	return b.String()
}
