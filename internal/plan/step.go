package plan

import (
	"context"
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// Step is one stage of a physical plan: it transforms the incoming list
// into an outgoing list using the pattern it was compiled from.
//
// Execute returns immediately. The returned list does the work when it is
// pulled, and storage errors surface through its Iterator.Err.
type Step interface {
	Execute(ctx context.Context, in *rows.List) (*rows.List, error)
	Pattern() ir.Pattern
	String() string
}

// ScanStep produces the raw matches of one pattern. It is only ever the
// first step of a plan, where its input is the identity list.
type ScanStep struct {
	pattern ir.Pattern
	acc     Accessor
	obs     Observer
}

// NewScanStep returns a scan of p against acc.
func NewScanStep(p ir.Pattern, acc Accessor, opts ...Option) *ScanStep {
	o := buildOptions(opts)
	return &ScanStep{pattern: p, acc: acc, obs: o.observer}
}

// Execute discards in without reading it and returns the scan of the
// step's pattern. The output schema is the pattern's variables.
func (s *ScanStep) Execute(ctx context.Context, in *rows.List) (*rows.List, error) {
	if in != nil {
		in.Discard()
	}
	scan := s.acc.AccessRows(ctx, s.pattern)
	p := s.pattern
	return countRows(scan, func(n int) { s.obs.ScanRows(p, n) }), nil
}

// Pattern returns the scanned pattern.
func (s *ScanStep) Pattern() ir.Pattern {
	return s.pattern
}

// String returns "Scan (?s <p> ?o)".
func (s *ScanStep) String() string {
	return "Scan " + s.pattern.String()
}

// HashJoinStep joins its input with the matches of one pattern.
//
// The input list is the build side: it is drained into a hash table keyed
// by its projection onto the variables shared with the pattern. The
// pattern's fresh, unconstrained scan is the probe side and is streamed
// one row at a time. Every bucket candidate is checked on all shared
// variables before merging, so a hash collision never yields a wrong row.
//
// With no shared variables all build rows land in one bucket and the step
// computes an explicit cross product.
type HashJoinStep struct {
	pattern  ir.Pattern
	acc      Accessor
	obs      Observer
	maxBuild int
}

// NewHashJoinStep returns a join of the incoming list with the matches of p.
func NewHashJoinStep(p ir.Pattern, acc Accessor, opts ...Option) *HashJoinStep {
	o := buildOptions(opts)
	return &HashJoinStep{pattern: p, acc: acc, obs: o.observer, maxBuild: o.maxBuildRows}
}

// Pattern returns the probed pattern.
func (s *HashJoinStep) Pattern() ir.Pattern {
	return s.pattern
}

// String returns "HashJoin (?s <p> ?o)". Plan.String adds the join
// variables, which depend on the preceding steps.
func (s *HashJoinStep) String() string {
	return "HashJoin " + s.pattern.String()
}

// Execute returns the lazy join of in with the pattern's matches. The
// output schema is the union of the input schema and the pattern's
// variables.
//
// The hash table is built on the first pull. A failure while building
// aborts the step before any row is emitted; a failure while probing
// surfaces after a prefix of correct rows.
func (s *HashJoinStep) Execute(ctx context.Context, in *rows.List) (*rows.List, error) {
	if in == nil {
		return nil, fmt.Errorf("hash join %s: nil input", s.pattern)
	}
	patternVars := s.pattern.Vars()
	shared := rows.SharedVars(in.Schema(), patternVars)
	schema := rows.UnionSchema(in.Schema(), patternVars)
	name := s.label(shared)

	out := rows.New(name, schema, func(ctx context.Context) (rows.Cursor, error) {
		table, err := s.build(ctx, in, shared, name)
		if err != nil {
			return nil, err
		}
		probe := s.acc.AccessRows(ctx, s.pattern).Iterator(ctx)
		return &probeCursor{table: table, probe: probe, pattern: s.pattern, obs: s.obs}, nil
	})
	p := s.pattern
	return countRows(out, func(n int) { s.obs.JoinRows(p, n) }), nil
}

func (s *HashJoinStep) build(ctx context.Context, in *rows.List, shared []ir.Var, name string) (*hashTable, error) {
	it := in.Iterator(ctx)
	defer it.Close()

	quota := &buildQuota{step: name, limit: s.maxBuild}
	table := newHashTable(shared)
	for it.Next() {
		if err := quota.Check(); err != nil {
			return nil, err
		}
		table.insert(it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	s.obs.BuildRows(s.pattern, table.size)
	return table, nil
}

func (s *HashJoinStep) label(shared []ir.Var) string {
	return fmt.Sprintf("join[%s]%s", joinVars(shared), s.pattern)
}

// probeCursor streams the probe scan and emits merged rows.
type probeCursor struct {
	table   *hashTable
	probe   *rows.Iterator
	pattern ir.Pattern
	obs     Observer

	current    rows.Row   // probe row being expanded
	candidates []rows.Row // build rows still to try against current
	probed     int
}

func (c *probeCursor) Next() (rows.Row, bool, error) {
	for {
		for len(c.candidates) > 0 {
			cand := c.candidates[0]
			c.candidates = c.candidates[1:]
			if merged, ok := rows.Merge(cand, c.current); ok {
				return merged, true, nil
			}
		}
		if !c.probe.Next() {
			return rows.Row{}, false, c.probe.Err()
		}
		c.probed++
		c.current = c.probe.Row()
		c.candidates = c.table.lookup(c.current)
	}
}

func (c *probeCursor) Close() error {
	c.obs.ScanRows(c.pattern, c.probed)
	c.candidates = nil
	c.table = nil
	return c.probe.Close()
}

// countRows wraps l so that report is called with the number of rows
// pulled once iteration ends.
func countRows(l *rows.List, report func(n int)) *rows.List {
	return rows.New(l.Name(), l.Schema(), func(ctx context.Context) (rows.Cursor, error) {
		it := l.Iterator(ctx)
		n := 0
		return rows.CursorFunc{
			NextFunc: func() (rows.Row, bool, error) {
				if !it.Next() {
					return rows.Row{}, false, it.Err()
				}
				n++
				return it.Row(), true, nil
			},
			CloseFunc: func() error {
				report(n)
				return it.Close()
			},
		}, nil
	})
}
