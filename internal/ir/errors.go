package ir

import "fmt"

// ArityError reports a pattern operation applied to a pattern of the wrong
// arity, such as taking the triple of a triple. It is a programming error:
// functions in this package panic with it rather than returning it.
type ArityError struct {
	Op       string // operation that was attempted
	Expected int
	Actual   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("arity violation in %s: expected %d slots, got %d", e.Op, e.Expected, e.Actual)
}

// InvariantError reports a state that correct code never produces: a Slot
// with no active tag, a variable bound twice in one row, a zero Term used
// as a node. Like ArityError it is raised by panic.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Message
}
