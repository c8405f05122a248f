package harness

import "github.com/roach88/quadmatch/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every query's strategies agree and every expectation holds.
	Pass bool `json:"pass"`

	// Queries holds one entry per query case, in scenario order.
	Queries []QueryResult `json:"queries"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// QueryResult is what one query case produced.
type QueryResult struct {
	Name string `json:"name"`

	// Solutions are the automatic strategy's answers, projected onto the
	// select list.
	Solutions []ir.Solution `json:"solutions"`

	// NotImplemented is true when the row engine alone declined the query.
	NotImplemented bool `json:"not_implemented"`

	// Plan is the compiled plan text of the query's patterns, empty for
	// queries the row engine declines.
	Plan string `json:"plan,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryResult{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
