package compiler

import (
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Query errors (E120-E129)
	ErrInvalidOperator    = "E121" // operator tree fails structural validation
	ErrSelectUnbound      = "E122" // selected variable never bound
	ErrDuplicateSelect    = "E123" // variable selected twice
	ErrFilterUnbound      = "E124" // filter variable never bound
	ErrDuplicateQueryName = "E125" // two queries share a name
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled query against the query rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch q := v.(type) {
	case *Query:
		return validateQuery(q)
	case Query:
		return validateQuery(&q)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// ValidateAll validates every query and checks that names are unique.
func ValidateAll(queries []Query) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(queries))
	for i := range queries {
		q := &queries[i]
		if seen[q.Name] {
			errs = append(errs, ValidationError{
				Field:   "query." + q.Name,
				Message: fmt.Sprintf("query %q defined more than once", q.Name),
				Code:    ErrDuplicateQueryName,
			})
		}
		seen[q.Name] = true
		errs = append(errs, validateQuery(q)...)
	}
	return errs
}

func validateQuery(q *Query) []ValidationError {
	var errs []ValidationError
	field := "query." + q.Name

	// E121: structural problems in the operator tree
	res := queryir.Validate(q.Op)
	for _, msg := range res.Errors {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: msg,
			Code:    ErrInvalidOperator,
		})
	}
	if !res.IsValid {
		return errs
	}

	bound := make(map[ir.Var]bool)
	for _, v := range queryir.Vars(q.Op) {
		bound[v] = true
	}

	// E122/E123: select list
	selected := make(map[ir.Var]bool, len(q.Select))
	for i, v := range q.Select {
		f := fmt.Sprintf("%s.select[%d]", field, i)
		if selected[v] {
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("%s selected more than once", v),
				Code:    ErrDuplicateSelect,
			})
			continue
		}
		selected[v] = true
		if !bound[v] {
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("%s is not bound by any pattern", v),
				Code:    ErrSelectUnbound,
			})
		}
	}

	// E124: filters over variables no pattern binds always see them unbound
	for _, v := range filterVars(q.Op) {
		if !bound[v] {
			errs = append(errs, ValidationError{
				Field:   field + ".filters",
				Message: fmt.Sprintf("%s is not bound by any pattern", v),
				Code:    ErrFilterUnbound,
			})
		}
	}

	return errs
}

// filterVars returns the variables referenced by every filter in op, in
// order of first occurrence.
func filterVars(op queryir.Op) []ir.Var {
	var out []ir.Var
	seen := make(map[ir.Var]bool)
	add := func(v ir.Var) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	var expr func(queryir.Expr)
	expr = func(e queryir.Expr) {
		switch x := e.(type) {
		case queryir.Equals:
			add(x.Var)
		case queryir.NotEquals:
			add(x.Var)
		case queryir.SameVar:
			add(x.Left)
			add(x.Right)
		case queryir.Bound:
			add(x.Var)
		case queryir.Not:
			expr(x.Expr)
		case queryir.And:
			for _, sub := range x.Exprs {
				expr(sub)
			}
		case queryir.Or:
			for _, sub := range x.Exprs {
				expr(sub)
			}
		}
	}
	var walk func(queryir.Op)
	walk = func(op queryir.Op) {
		switch o := op.(type) {
		case queryir.Filter:
			for _, e := range o.Exprs {
				expr(e)
			}
			walk(o.Sub)
		case queryir.Sequence:
			for _, sub := range o.Ops {
				walk(sub)
			}
		}
	}
	walk(op)
	return out
}
