package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/queryir"
)

// Query is one compiled query file entry.
type Query struct {
	// Name is the struct label under query:.
	Name string

	// Op is the operator tree to execute.
	Op queryir.Op

	// Select lists the projected variables. Empty means every variable.
	Select []ir.Var
}

// CompileQuery parses a CUE value into a Query.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the query struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query: byName: { patterns: [["?s", "<http://ex/name>", "?n"]] }`)
//	q, err := CompileQuery(v.LookupPath(cue.ParsePath("query.byName")))
//
// Fields:
//
//	graph?:   "<iri>" | "?g" | "default" | "union"
//	patterns: [...[string, string, string]]
//	filters?: [...{op: "equals" | "notEquals" | "sameVar" | "bound" | "not" | "and" | "or", ...}]
//	select?:  [...string]
//	steps?:   [...{graph?, patterns, filters?}]
func CompileQuery(v cue.Value) (*Query, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	q := &Query{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		q.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	// Parse steps (optional). Each step is evaluated with the bindings
	// of the steps before it.
	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if stepsVal.Exists() {
		var ops []queryir.Op
		if v.LookupPath(cue.ParsePath("patterns")).Exists() {
			op, err := compileBody(v, "")
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		iter, err := stepsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			op, err := compileBody(iter.Value(), fmt.Sprintf("steps[%d].", i))
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		q.Op = queryir.Sequence{Ops: ops}
	} else {
		op, err := compileBody(v, "")
		if err != nil {
			return nil, err
		}
		q.Op = op
	}

	// Parse select (optional)
	selectVal := v.LookupPath(cue.ParsePath("select"))
	if selectVal.Exists() {
		iter, err := selectVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			name, err := parseVar(iter.Value(), fmt.Sprintf("select[%d]", i))
			if err != nil {
				return nil, err
			}
			q.Select = append(q.Select, name)
		}
	}

	return q, nil
}

// compileBody compiles the graph, patterns and filters fields of v.
// field prefixes error field names.
func compileBody(v cue.Value, field string) (queryir.Op, error) {
	// Parse patterns (required, may be empty)
	patterns, err := parsePatterns(v, field)
	if err != nil {
		return nil, err
	}

	// Parse graph (optional, default graph when absent)
	var op queryir.Op = queryir.BGP{Patterns: patterns}
	graphVal := v.LookupPath(cue.ParsePath("graph"))
	if graphVal.Exists() {
		slot, err := parseGraph(graphVal, field)
		if err != nil {
			return nil, err
		}
		if t, ok := slot.Term(); !ok || !t.IsDefaultGraph() {
			op = queryir.QuadPattern{Graph: slot, Patterns: patterns}
		}
	}

	// Parse filters (optional)
	filtersVal := v.LookupPath(cue.ParsePath("filters"))
	if filtersVal.Exists() {
		exprs, err := parseExprList(filtersVal, field+"filters")
		if err != nil {
			return nil, err
		}
		if len(exprs) > 0 {
			op = queryir.Filter{Exprs: exprs, Sub: op}
		}
	}
	return op, nil
}

func parsePatterns(v cue.Value, prefix string) (ir.BasicPattern, error) {
	patternsVal := v.LookupPath(cue.ParsePath("patterns"))
	if !patternsVal.Exists() {
		return nil, &CompileError{
			Field:   prefix + "patterns",
			Message: "patterns is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := patternsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	bp := ir.BasicPattern{}
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("%spatterns[%d]", prefix, i)
		texts, err := stringList(iter.Value(), field)
		if err != nil {
			return nil, err
		}
		if len(texts) != 3 {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("pattern must have 3 elements (subject, predicate, object), got %d", len(texts)),
				Pos:     iter.Value().Pos(),
			}
		}
		p, err := ir.ParseTriple(texts[0], texts[1], texts[2])
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		bp = append(bp, p)
	}
	return bp, nil
}

// parseGraph maps the graph field to a slot: "default" and "union" name the
// reserved graphs, "?g" is a variable, anything else must be an IRI term.
func parseGraph(v cue.Value, prefix string) (ir.Slot, error) {
	s, err := v.String()
	if err != nil {
		return ir.Slot{}, formatCUEError(err)
	}
	switch s {
	case "default":
		return ir.SlotForTerm(ir.DefaultGraph), nil
	case "union":
		return ir.SlotForTerm(ir.UnionGraph), nil
	}
	slot, err := ir.ParseSlot(s)
	if err != nil {
		return ir.Slot{}, &CompileError{Field: prefix + "graph", Message: err.Error(), Pos: v.Pos()}
	}
	if t, ok := slot.Term(); ok && !t.IsIRI() {
		return ir.Slot{}, &CompileError{
			Field:   prefix + "graph",
			Message: fmt.Sprintf("graph must be an IRI, a variable, \"default\" or \"union\", got %s", s),
			Pos:     v.Pos(),
		}
	}
	return slot, nil
}

func parseExprList(v cue.Value, field string) ([]queryir.Expr, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var exprs []queryir.Expr
	for i := 0; iter.Next(); i++ {
		e, err := parseExpr(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// parseExpr parses one filter object. The op field selects the shape:
//
//	{op: "equals",    var: "?x", value: "<iri>"}
//	{op: "notEquals", var: "?x", value: "\"lit\""}
//	{op: "sameVar",   left: "?a", right: "?b"}
//	{op: "bound",     var: "?x"}
//	{op: "not",       expr: {...}}
//	{op: "and" | "or", exprs: [...]}
func parseExpr(v cue.Value, field string) (queryir.Expr, error) {
	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return nil, &CompileError{Field: field + ".op", Message: "op is required", Pos: v.Pos()}
	}
	op, err := opVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	switch op {
	case "equals", "notEquals":
		name, err := requiredVar(v, field, "var")
		if err != nil {
			return nil, err
		}
		value, err := requiredTerm(v, field, "value")
		if err != nil {
			return nil, err
		}
		if op == "equals" {
			return queryir.Equals{Var: name, Value: value}, nil
		}
		return queryir.NotEquals{Var: name, Value: value}, nil
	case "sameVar":
		left, err := requiredVar(v, field, "left")
		if err != nil {
			return nil, err
		}
		right, err := requiredVar(v, field, "right")
		if err != nil {
			return nil, err
		}
		return queryir.SameVar{Left: left, Right: right}, nil
	case "bound":
		name, err := requiredVar(v, field, "var")
		if err != nil {
			return nil, err
		}
		return queryir.Bound{Var: name}, nil
	case "not":
		subVal := v.LookupPath(cue.ParsePath("expr"))
		if !subVal.Exists() {
			return nil, &CompileError{Field: field + ".expr", Message: "not requires expr", Pos: v.Pos()}
		}
		sub, err := parseExpr(subVal, field+".expr")
		if err != nil {
			return nil, err
		}
		return queryir.Not{Expr: sub}, nil
	case "and", "or":
		listVal := v.LookupPath(cue.ParsePath("exprs"))
		if !listVal.Exists() {
			return nil, &CompileError{Field: field + ".exprs", Message: op + " requires exprs", Pos: v.Pos()}
		}
		subs, err := parseExprList(listVal, field+".exprs")
		if err != nil {
			return nil, err
		}
		if op == "and" {
			return queryir.And{Exprs: subs}, nil
		}
		return queryir.Or{Exprs: subs}, nil
	default:
		return nil, &CompileError{
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown filter op %q", op),
			Pos:     opVal.Pos(),
		}
	}
}

func requiredVar(v cue.Value, field, name string) (ir.Var, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return parseVar(val, field+"."+name)
}

func requiredTerm(v cue.Value, field, name string) (ir.Term, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return ir.Term{}, &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := val.String()
	if err != nil {
		return ir.Term{}, formatCUEError(err)
	}
	t, err := ir.ParseTerm(s)
	if err != nil {
		return ir.Term{}, &CompileError{Field: field + "." + name, Message: err.Error(), Pos: val.Pos()}
	}
	return t, nil
}

// parseVar accepts "?x" and returns "x".
func parseVar(v cue.Value, field string) (ir.Var, error) {
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if !strings.HasPrefix(s, "?") || len(s) < 2 {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected a variable like ?x, got %q", s),
			Pos:     v.Pos(),
		}
	}
	return ir.Var(s[1:]), nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
