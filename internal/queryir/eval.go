package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
)

// UnboundError is raised when an expression reads a variable the solution
// does not bind.
type UnboundError struct {
	Var ir.Var
}

// Error implements the error interface.
func (e *UnboundError) Error() string {
	return fmt.Sprintf("variable %s is unbound", e.Var)
}

// IsUnbound reports whether err is an UnboundError.
// Uses errors.As to handle wrapped errors.
func IsUnbound(err error) bool {
	var ue *UnboundError
	return errors.As(err, &ue)
}

// Eval evaluates expr against env.
//
// Errors follow the usual three-valued filter logic: And is false if any
// operand is false even when another errs, Or is true if any operand is
// true even when another errs. Otherwise an operand error makes the result
// an error. Callers treat an error as "reject the solution".
//
// Eval is a pure function with no side effects.
func Eval(expr Expr, env ir.Env) (bool, error) {
	switch e := expr.(type) {
	case Equals:
		t, err := lookup(env, e.Var)
		if err != nil {
			return false, err
		}
		return t == e.Value, nil
	case NotEquals:
		t, err := lookup(env, e.Var)
		if err != nil {
			return false, err
		}
		return t != e.Value, nil
	case SameVar:
		l, err := lookup(env, e.Left)
		if err != nil {
			return false, err
		}
		r, err := lookup(env, e.Right)
		if err != nil {
			return false, err
		}
		return l == r, nil
	case Bound:
		_, ok := env.Get(e.Var)
		return ok, nil
	case Not:
		v, err := Eval(e.Expr, env)
		if err != nil {
			return false, err
		}
		return !v, nil
	case And:
		var firstErr error
		for _, sub := range e.Exprs {
			v, err := Eval(sub, env)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if !v {
				return false, nil
			}
		}
		return firstErr == nil, firstErr
	case Or:
		var firstErr error
		for _, sub := range e.Exprs {
			v, err := Eval(sub, env)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if v {
				return true, nil
			}
		}
		return false, firstErr
	case nil:
		return false, errors.New("nil expression")
	default:
		return false, fmt.Errorf("unknown expression type %T", expr)
	}
}

// Holds reports whether every expression evaluates to true. Errors count as
// false.
func Holds(exprs []Expr, env ir.Env) bool {
	for _, e := range exprs {
		if v, err := Eval(e, env); err != nil || !v {
			return false
		}
	}
	return true
}

func lookup(env ir.Env, v ir.Var) (ir.Term, error) {
	t, ok := env.Get(v)
	if !ok {
		return ir.Term{}, &UnboundError{Var: v}
	}
	return t, nil
}
