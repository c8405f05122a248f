package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/plan"
	"github.com/roach88/quadmatch/internal/rows"
)

// MemoryDataset is an in-memory quad dataset implementing the engine's
// Dataset and RowDataset contracts. Matches come back in insertion order.
//
// Failures can be injected per pattern with FailScans.
type MemoryDataset struct {
	mu        sync.RWMutex
	quads     []ir.Quad
	seen      map[ir.Quad]bool
	failures  []failure
	noRowScan bool

	// Scans counts opened scans (first pulls), not AccessRows calls.
	Scans Counter
}

type failure struct {
	match func(ir.Pattern) bool
	after int
	err   error
}

// NewMemoryDataset returns a dataset holding quads. Default graph names are
// folded and duplicates dropped.
func NewMemoryDataset(quads ...ir.Quad) *MemoryDataset {
	d := &MemoryDataset{seen: make(map[ir.Quad]bool)}
	d.Add(quads...)
	return d
}

// Add appends quads that are not already present.
func (d *MemoryDataset) Add(quads ...ir.Quad) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, q := range quads {
		if q.Graph.IsZero() {
			q.Graph = ir.DefaultGraph
		}
		q = q.Canonical()
		if d.seen[q] {
			continue
		}
		d.seen[q] = true
		d.quads = append(d.quads, q)
	}
}

// FailScans makes every scan whose quad pattern satisfies match return
// after rows and then fail with err. after = 0 fails on the first pull.
func (d *MemoryDataset) FailScans(match func(ir.Pattern) bool, after int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, failure{match: match, after: after, err: err})
}

// WithoutRowAccess returns a view of d that reports no row access, so an
// executor over it uses the nested evaluator only.
func (d *MemoryDataset) WithoutRowAccess() *MemoryDataset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &MemoryDataset{
		quads:     d.quads,
		seen:      d.seen,
		failures:  d.failures,
		noRowScan: true,
	}
}

// SupportsRowAccess implements engine.RowDataset.
func (d *MemoryDataset) SupportsRowAccess() bool {
	return !d.noRowScan
}

// Graph returns the accessor for triple patterns in graph name.
func (d *MemoryDataset) Graph(name ir.Term) plan.Accessor {
	if name.IsDefaultGraph() {
		name = ir.DefaultGraph
	}
	slot := ir.SlotForTerm(name)
	return plan.AccessorFunc(func(ctx context.Context, p ir.Pattern) *rows.List {
		if p.Arity() != 3 {
			return d.failed(p, fmt.Errorf("graph %s: pattern %s is not a triple pattern", name, p))
		}
		return d.scan(p.InGraph(slot))
	})
}

// Quads returns the accessor for quad patterns over the named graphs.
func (d *MemoryDataset) Quads() plan.Accessor {
	return plan.AccessorFunc(func(ctx context.Context, p ir.Pattern) *rows.List {
		if p.Arity() != 4 {
			return d.failed(p, fmt.Errorf("quads: pattern %s is not a quad pattern", p))
		}
		if t, ok := p.Graph().Term(); ok && t.IsDefaultGraph() {
			p = ir.NewQuad(ir.SlotForTerm(ir.DefaultGraph), p.Subject(), p.Predicate(), p.Object())
		}
		return d.scan(p)
	})
}

// GraphNames returns the named graphs in order of first appearance.
func (d *MemoryDataset) GraphNames(ctx context.Context) ([]ir.Term, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := []ir.Term{}
	seen := make(map[ir.Term]bool)
	for _, q := range d.quads {
		if q.Graph == ir.DefaultGraph || seen[q.Graph] {
			continue
		}
		seen[q.Graph] = true
		names = append(names, q.Graph)
	}
	return names, nil
}

func (d *MemoryDataset) scan(p ir.Pattern) *rows.List {
	return rows.New("mem"+p.String(), p.Vars(), func(ctx context.Context) (rows.Cursor, error) {
		d.Scans.Next()

		d.mu.RLock()
		var matches []rows.Row
		for _, q := range d.quads {
			if r, ok := MatchQuad(p, q); ok {
				matches = append(matches, r)
			}
		}
		fail := d.failureFor(p)
		d.mu.RUnlock()

		if fail != nil && fail.after == 0 {
			return nil, fail.err
		}
		i := 0
		return rows.CursorFunc{NextFunc: func() (rows.Row, bool, error) {
			if fail != nil && i == fail.after {
				return rows.Row{}, false, fail.err
			}
			if i >= len(matches) {
				return rows.Row{}, false, nil
			}
			i++
			return matches[i-1], true, nil
		}}, nil
	})
}

func (d *MemoryDataset) failureFor(p ir.Pattern) *failure {
	for i := range d.failures {
		if d.failures[i].match(p) {
			return &d.failures[i]
		}
	}
	return nil
}

func (d *MemoryDataset) failed(p ir.Pattern, err error) *rows.List {
	return rows.New("mem"+p.String(), p.Vars(), func(context.Context) (rows.Cursor, error) {
		return nil, err
	})
}

// MatchQuad matches quad pattern p against q (already canonical). A
// variable graph position never matches the default graph, and a variable
// repeated in several positions must carry the same term in each.
func MatchQuad(p ir.Pattern, q ir.Quad) (rows.Row, bool) {
	terms := q.Terms()
	b := rows.NewBuilder(4)
	bound := make(map[ir.Var]ir.Term, 4)
	for pos, slot := range p.Slots() {
		t := terms[pos]
		if v, ok := slot.Var(); ok {
			if pos == ir.PosG && t == ir.DefaultGraph {
				return rows.Row{}, false
			}
			if prev, ok := bound[v]; ok && prev != t {
				return rows.Row{}, false
			}
			bound[v] = t
			b.Add(v, t)
			continue
		}
		want, _ := slot.Term()
		if pos == ir.PosG && want.IsDefaultGraph() {
			want = ir.DefaultGraph
		}
		if want != t {
			return rows.Row{}, false
		}
	}
	return b.Build(), true
}
