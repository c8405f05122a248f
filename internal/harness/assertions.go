package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/quadmatch/internal/ir"
)

// AssertionError is returned when two solution multisets differ.
// It lists the solutions missing from each side.
type AssertionError struct {
	Type     string        // What was compared
	Missing  []ir.Solution // Expected but not produced
	Extra    []ir.Solution // Produced but not expected
	Expected int           // Size of the expected multiset
	Actual   int           // Size of the produced multiset
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %d solutions\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %d solutions\n", e.Actual)

	for _, sol := range e.Missing {
		fmt.Fprintf(&buf, "  missing: %s\n", formatSolution(sol))
	}
	for _, sol := range e.Extra {
		fmt.Fprintf(&buf, "  extra:   %s\n", formatSolution(sol))
	}
	return buf.String()
}

// assertSameSolutions compares two solution multisets by solution hash,
// ignoring order but not multiplicity.
func assertSameSolutions(what string, want, got []ir.Solution) error {
	missing, extra, err := diffSolutions(want, got)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     what,
		Missing:  missing,
		Extra:    extra,
		Expected: len(want),
		Actual:   len(got),
	}
}

// diffSolutions returns the solutions of want not matched in got and the
// solutions of got not matched in want, each matched at most once.
func diffSolutions(want, got []ir.Solution) (missing, extra []ir.Solution, err error) {
	pending := make(map[string][]ir.Solution, len(want))
	for _, sol := range want {
		h, err := ir.SolutionHash(sol)
		if err != nil {
			return nil, nil, err
		}
		pending[h] = append(pending[h], sol)
	}
	for _, sol := range got {
		h, err := ir.SolutionHash(sol)
		if err != nil {
			return nil, nil, err
		}
		if left := pending[h]; len(left) > 0 {
			pending[h] = left[1:]
			continue
		}
		extra = append(extra, sol)
	}

	hashes := make([]string, 0, len(pending))
	for h := range pending {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	for _, h := range hashes {
		missing = append(missing, pending[h]...)
	}
	return missing, extra, nil
}

// checkExpectations evaluates a query case's expect clauses against what
// the query produced.
func checkExpectations(qc QueryCase, qr QueryResult) []string {
	var errs []string

	if qc.ExpectNotImplemented != qr.NotImplemented {
		if qc.ExpectNotImplemented {
			errs = append(errs, "expected the row engine to decline the query, but it ran it")
		} else {
			errs = append(errs, "row engine declined the query unexpectedly")
		}
	}

	if qc.ExpectCount != nil && *qc.ExpectCount != len(qr.Solutions) {
		errs = append(errs, fmt.Sprintf("expected %d solutions, got %d", *qc.ExpectCount, len(qr.Solutions)))
	}

	if qc.Expect != nil {
		want, err := parseExpected(qc.Expect)
		if err != nil {
			return append(errs, err.Error())
		}
		if err := assertSameSolutions("expected solutions", want, qr.Solutions); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// formatSolution renders a solution as {?a=<x> ?b="y"} with variables
// sorted.
func formatSolution(sol ir.Solution) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range sol.SortedVars() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", v, sol[v])
	}
	b.WriteByte('}')
	return b.String()
}
