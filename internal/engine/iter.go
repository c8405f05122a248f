package engine

import (
	"context"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// QueryIter is the caller's solution stream, pulled one binding at a time:
//
//	for it.Next() {
//		b := it.Binding()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Close releases storage cursors and is safe to call more than once.
// A QueryIter is consumed once and is not safe for concurrent use.
type QueryIter interface {
	Next() bool
	Binding() *Binding
	Err() error
	Close() error

	// Vars returns every variable a binding may carry, sorted.
	Vars() []ir.Var
}

// Identity returns the one-binding, zero-variable stream: the input of an
// operator with nothing before it.
func Identity() QueryIter {
	return &sliceIter{bindings: []*Binding{nil}, identity: true}
}

// NewIter returns a stream over an in-memory slice. vars is the union of
// the variables the bindings carry.
func NewIter(vars []ir.Var, bindings []*Binding) QueryIter {
	return &sliceIter{vars: rows.UnionSchema(vars, nil), bindings: bindings}
}

// Collect drains it and closes it.
func Collect(it QueryIter) ([]*Binding, error) {
	defer it.Close()
	var out []*Binding
	for it.Next() {
		out = append(out, it.Binding())
	}
	return out, it.Err()
}

// CollectSolutions drains it into flat solutions.
func CollectSolutions(it QueryIter) ([]ir.Solution, error) {
	bs, err := Collect(it)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Solution, len(bs))
	for i, b := range bs {
		out[i] = b.Solution()
	}
	return out, nil
}

type sliceIter struct {
	vars     []ir.Var
	bindings []*Binding
	cur      *Binding
	pos      int
	identity bool
}

func (it *sliceIter) Next() bool {
	if it.pos >= len(it.bindings) {
		it.cur = nil
		return false
	}
	it.cur = it.bindings[it.pos]
	it.pos++
	return true
}

func (it *sliceIter) Binding() *Binding { return it.cur }
func (it *sliceIter) Err() error        { return nil }
func (it *sliceIter) Vars() []ir.Var    { return it.vars }

func (it *sliceIter) Close() error {
	it.pos = len(it.bindings)
	return nil
}

// isIdentity reports whether in is the untouched identity stream, so the
// row engine can start from a scan instead of a seeded join.
func isIdentity(in QueryIter) bool {
	if in == nil {
		return true
	}
	s, ok := in.(*sliceIter)
	return ok && s.identity && s.pos == 0
}

// rowIter adapts a row list to a QueryIter.
type rowIter struct {
	it   *rows.Iterator
	vars []ir.Var
	cur  *Binding
}

func newRowIter(ctx context.Context, l *rows.List) *rowIter {
	return &rowIter{it: l.Iterator(ctx), vars: l.Schema()}
}

func (r *rowIter) Next() bool {
	if !r.it.Next() {
		r.cur = nil
		return false
	}
	r.cur = RowToBinding(r.it.Row())
	return true
}

func (r *rowIter) Binding() *Binding { return r.cur }
func (r *rowIter) Err() error        { return r.it.Err() }
func (r *rowIter) Close() error      { return r.it.Close() }
func (r *rowIter) Vars() []ir.Var    { return r.vars }

// iterToList adapts a QueryIter to a lazy row list. The list owns in and
// closes it.
func iterToList(in QueryIter) *rows.List {
	return rows.New("input", in.Vars(), func(ctx context.Context) (rows.Cursor, error) {
		return rows.CursorFunc{
			NextFunc: func() (rows.Row, bool, error) {
				if !in.Next() {
					return rows.Row{}, false, in.Err()
				}
				return BindingToRow(in.Binding()), true, nil
			},
			CloseFunc: in.Close,
		}, nil
	})
}

// filterIter drops bindings that fail any expression.
type filterIter struct {
	QueryIter
	holds func(*Binding) bool
}

func (f *filterIter) Next() bool {
	for f.QueryIter.Next() {
		if f.holds(f.QueryIter.Binding()) {
			return true
		}
	}
	return false
}

// doneIter calls onDone once, with the number of bindings produced, when
// the stream ends or is closed.
type doneIter struct {
	QueryIter
	onDone func(n int, err error)
	n      int
	done   bool
}

func (d *doneIter) Next() bool {
	if d.QueryIter.Next() {
		d.n++
		return true
	}
	d.finish()
	return false
}

func (d *doneIter) Close() error {
	err := d.QueryIter.Close()
	d.finish()
	return err
}

func (d *doneIter) finish() {
	if d.done {
		return
	}
	d.done = true
	d.onDone(d.n, d.QueryIter.Err())
}
