package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/quadmatch/internal/plan"
)

// ErrNotImplemented is returned by the row engine for an operator it cannot
// execute. The dispatcher catches it and reruns the operator on the nested
// evaluator; it is never approximated.
var ErrNotImplemented = errors.New("not implemented by the row engine")

// Error represents an error detected while dispatching an operator.
//
// Error includes structured fields for diagnostics. It wraps its cause, so
// errors.Is(err, ErrNotImplemented) works through it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ExecID identifies the Execute call that failed.
	ExecID string

	// Details contains additional context.
	Details map[string]string

	err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNotImplemented indicates the row engine declined an operator.
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// ErrCodeInvalidOperator indicates an operator failed validation.
	ErrCodeInvalidOperator ErrorCode = "INVALID_OPERATOR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ExecID != "" {
		return fmt.Sprintf("%s: %s (exec=%s)", e.Code, e.Message, e.ExecID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.err
}

// IsNotImplemented returns true if the row engine declined the operator.
// Uses errors.As to handle wrapped errors.
func IsNotImplemented(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeNotImplemented
	}
	return errors.Is(err, ErrNotImplemented)
}

// IsInvalidOperator returns true if the operator failed validation.
func IsInvalidOperator(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeInvalidOperator
	}
	return false
}

// IsBuildLimit returns true if a hash join exceeded its build-side limit.
func IsBuildLimit(err error) bool {
	return plan.IsBuildLimitError(err)
}

// newNotImplementedError creates an Error for an operator the row engine
// declines, naming the graph shape that caused it.
func newNotImplementedError(execID string, reason string) *Error {
	return &Error{
		Code:    ErrCodeNotImplemented,
		Message: reason,
		ExecID:  execID,
		Details: map[string]string{"reason": reason},
		err:     ErrNotImplemented,
	}
}

func newInvalidOperatorError(execID string, problems []string) *Error {
	details := make(map[string]string, len(problems))
	for i, p := range problems {
		details[fmt.Sprintf("error_%d", i)] = p
	}
	msg := "invalid operator"
	if len(problems) > 0 {
		msg = fmt.Sprintf("invalid operator: %s", problems[0])
	}
	return &Error{
		Code:    ErrCodeInvalidOperator,
		Message: msg,
		ExecID:  execID,
		Details: details,
	}
}
