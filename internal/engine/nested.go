package engine

import (
	"context"
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// scanFunc returns the matches of p with b substituted in. Rows bind the
// variables of p that b leaves unbound.
type scanFunc func(ctx context.Context, p ir.Pattern, b *Binding) *rows.List

// nestedIter is the nested evaluator: for one input binding at a time it
// solves the patterns depth first, pattern k scanned with the binding
// produced by patterns 0..k-1 substituted in, and extends the originating
// binding with every complete sub-result.
//
// It keeps one open scan per pattern level and nothing else, so it never
// materializes an intermediate result.
type nestedIter struct {
	ctx      context.Context
	input    QueryIter
	patterns ir.BasicPattern
	scan     scanFunc
	vars     []ir.Var

	stack []nestedFrame
	cur   *Binding
	err   error
	done  bool
}

type nestedFrame struct {
	binding *Binding
	it      *rows.Iterator
}

func newNestedIter(ctx context.Context, input QueryIter, bp ir.BasicPattern, scan scanFunc, patternVars []ir.Var) *nestedIter {
	return &nestedIter{
		ctx:      ctx,
		input:    input,
		patterns: bp,
		scan:     scan,
		vars:     rows.UnionSchema(input.Vars(), patternVars),
	}
}

func (n *nestedIter) Next() bool {
	if n.done {
		return false
	}
	for {
		if err := n.ctx.Err(); err != nil {
			n.fail(err)
			return false
		}
		if len(n.stack) == 0 {
			if !n.input.Next() {
				n.fail(n.input.Err())
				return false
			}
			b := n.input.Binding()
			if len(n.patterns) == 0 {
				n.cur = b
				return true
			}
			n.push(b)
			continue
		}

		top := &n.stack[len(n.stack)-1]
		if !top.it.Next() {
			if err := top.it.Err(); err != nil {
				n.fail(err)
				return false
			}
			top.it.Close()
			n.stack = n.stack[:len(n.stack)-1]
			continue
		}
		child := top.binding.Extend(top.it.Row())
		if len(n.stack) == len(n.patterns) {
			n.cur = child
			return true
		}
		n.push(child)
	}
}

func (n *nestedIter) push(b *Binding) {
	p := n.patterns[len(n.stack)]
	it := n.scan(n.ctx, p, b).Iterator(n.ctx)
	n.stack = append(n.stack, nestedFrame{binding: b, it: it})
}

func (n *nestedIter) Binding() *Binding { return n.cur }
func (n *nestedIter) Err() error        { return n.err }
func (n *nestedIter) Vars() []ir.Var    { return n.vars }

func (n *nestedIter) Close() error {
	if n.done {
		return nil
	}
	n.done = true
	n.cur = nil
	for i := len(n.stack) - 1; i >= 0; i-- {
		n.stack[i].it.Close()
	}
	n.stack = nil
	return n.input.Close()
}

func (n *nestedIter) fail(err error) {
	n.Close()
	n.err = err
}

// graphScan scans triple patterns in one graph.
func graphScan(ds Dataset, name ir.Term) scanFunc {
	acc := ds.Graph(name)
	return func(ctx context.Context, p ir.Pattern, b *Binding) *rows.List {
		return acc.AccessRows(ctx, p.Substitute(b))
	}
}

// quadScan scans triple patterns placed in the graph variable g, over the
// named graphs.
func quadScan(ds Dataset, g ir.Var) scanFunc {
	acc := ds.Quads()
	slot := ir.SlotForVar(g)
	return func(ctx context.Context, p ir.Pattern, b *Binding) *rows.List {
		return acc.AccessRows(ctx, p.InGraph(slot).Substitute(b))
	}
}

// unionScan scans triple patterns over the union of the named graphs. A
// triple present in several graphs is produced once.
func unionScan(ds Dataset) scanFunc {
	var names []ir.Term
	var namesErr error
	loaded := false
	return func(ctx context.Context, p ir.Pattern, b *Binding) *rows.List {
		sub := p.Substitute(b)
		return rows.New("union"+sub.String(), sub.Vars(), func(ctx context.Context) (rows.Cursor, error) {
			if !loaded {
				names, namesErr = ds.GraphNames(ctx)
				loaded = true
			}
			if namesErr != nil {
				return nil, fmt.Errorf("list graphs: %w", namesErr)
			}
			return &unionCursor{ctx: ctx, ds: ds, p: sub, names: names, seen: make(map[string]struct{})}, nil
		})
	}
}

// unionCursor walks the graphs one after another and suppresses rows
// already produced by an earlier graph.
type unionCursor struct {
	ctx   context.Context
	ds    Dataset
	p     ir.Pattern
	names []ir.Term
	cur   *rows.Iterator
	seen  map[string]struct{}
}

func (c *unionCursor) Next() (rows.Row, bool, error) {
	for {
		if c.cur == nil {
			if len(c.names) == 0 {
				return rows.Row{}, false, nil
			}
			g := c.names[0]
			c.names = c.names[1:]
			c.cur = c.ds.Graph(g).AccessRows(c.ctx, c.p).Iterator(c.ctx)
		}
		if !c.cur.Next() {
			if err := c.cur.Err(); err != nil {
				return rows.Row{}, false, err
			}
			c.cur = nil
			continue
		}
		r := c.cur.Row()
		key := r.String()
		if _, dup := c.seen[key]; dup {
			continue
		}
		c.seen[key] = struct{}{}
		return r, true, nil
	}
}

func (c *unionCursor) Close() error {
	if c.cur == nil {
		return nil
	}
	err := c.cur.Close()
	c.cur = nil
	return err
}
