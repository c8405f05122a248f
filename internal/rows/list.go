package rows

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/roach88/quadmatch/internal/ir"
)

// Cursor is the producing half of a List: a storage scan, a join probe, or
// an in-memory slice. Next returns false when exhausted. Close releases the
// underlying resource and is called exactly once by the Iterator.
type Cursor interface {
	Next() (Row, bool, error)
	Close() error
}

// OpenFunc opens the cursor of a List. It is called at most once, on the
// first Iterator.Next, so no storage work happens until a consumer pulls.
type OpenFunc func(ctx context.Context) (Cursor, error)

// List is a named, finite, single-pass lazy sequence of rows plus the set of
// variables every row binds (the schema).
//
// A List is not restartable. The first Iterator call takes the sequence;
// any later Iterator call yields nothing and never reopens the source. To
// scan storage again, ask the Accessor for a new List.
//
// The schema is carried separately so that an empty result still reports
// which variables would have been bound.
type List struct {
	name   string
	schema []ir.Var
	open   OpenFunc
	taken  atomic.Bool
}

// New returns a lazy list. schema is copied, sorted and deduplicated.
func New(name string, schema []ir.Var, open OpenFunc) *List {
	return &List{name: name, schema: normalizeSchema(schema), open: open}
}

// Identity returns the one-row, zero-variable list that means "no prior
// bindings". It is the identity of the join: joining it with any list gives
// that list.
func Identity() *List {
	return FromRows("identity", nil, []Row{{}})
}

// Empty returns a zero-row list with the given schema.
func Empty(name string, schema []ir.Var) *List {
	return FromRows(name, schema, nil)
}

// FromRows returns a list over an in-memory slice. The slice is not copied;
// the caller hands ownership over.
func FromRows(name string, schema []ir.Var, rs []Row) *List {
	return New(name, schema, func(context.Context) (Cursor, error) {
		return &sliceCursor{rows: rs}, nil
	})
}

// Name returns the list's diagnostic name.
func (l *List) Name() string {
	return l.name
}

// Schema returns the sorted variables bound by every row. The caller must
// not modify the returned slice.
func (l *List) Schema() []ir.Var {
	return l.schema
}

// Iterator takes the sequence. Only the first call produces rows.
func (l *List) Iterator(ctx context.Context) *Iterator {
	if l.taken.Swap(true) {
		return &Iterator{ctx: ctx, done: true}
	}
	return &Iterator{ctx: ctx, open: l.open, name: l.name}
}

// Discard marks the list consumed without opening its source.
func (l *List) Discard() {
	l.taken.Store(true)
}

// String returns "name[?a ?b]".
func (l *List) String() string {
	return fmt.Sprintf("%s%v", l.name, l.schema)
}

// Iterator pulls rows from a List, in the style of database/sql.Rows:
//
//	it := list.Iterator(ctx)
//	defer it.Close()
//	for it.Next() {
//		row := it.Row()
//	}
//	if err := it.Err(); err != nil { ... }
//
// The cursor is opened on the first Next and closed as soon as the sequence
// is exhausted, fails, is cancelled through ctx, or Close is called.
// An Iterator is not safe for concurrent use.
type Iterator struct {
	ctx  context.Context
	name string
	open OpenFunc
	cur  Cursor
	row  Row
	err  error
	done bool
}

// Next advances to the next row. It returns false at the end of the
// sequence or on error; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.fail(err)
		return false
	}
	if it.cur == nil {
		if it.open == nil {
			it.done = true
			return false
		}
		cur, err := it.open(it.ctx)
		if err != nil {
			it.fail(fmt.Errorf("open %s: %w", it.name, err))
			return false
		}
		it.cur = cur
	}

	row, ok, err := it.cur.Next()
	if err != nil {
		it.fail(err)
		return false
	}
	if !ok {
		it.finish()
		return false
	}
	it.row = row
	return true
}

// Row returns the current row. Valid only after Next returned true.
func (it *Iterator) Row() Row {
	return it.row
}

// Err returns the error that stopped iteration, if any. Context
// cancellation is reported as ctx.Err().
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the cursor. Safe to call more than once and after
// exhaustion.
func (it *Iterator) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	return it.closeCursor()
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.done = true
	if cerr := it.closeCursor(); cerr != nil {
		it.err = errors.Join(err, cerr)
	}
}

func (it *Iterator) finish() {
	it.done = true
	if err := it.closeCursor(); err != nil {
		it.err = err
	}
	it.row = Row{}
}

func (it *Iterator) closeCursor() error {
	if it.cur == nil {
		return nil
	}
	cur := it.cur
	it.cur = nil
	return cur.Close()
}

// Collect drains a list into memory.
func Collect(ctx context.Context, l *List) ([]Row, error) {
	it := l.Iterator(ctx)
	defer it.Close()

	var out []Row
	for it.Next() {
		out = append(out, it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CursorFunc adapts a pair of functions to a Cursor. close may be nil.
type CursorFunc struct {
	NextFunc  func() (Row, bool, error)
	CloseFunc func() error
}

// Next implements Cursor.
func (c CursorFunc) Next() (Row, bool, error) {
	return c.NextFunc()
}

// Close implements Cursor.
func (c CursorFunc) Close() error {
	if c.CloseFunc == nil {
		return nil
	}
	return c.CloseFunc()
}

type sliceCursor struct {
	rows []Row
	idx  int
}

func (c *sliceCursor) Next() (Row, bool, error) {
	if c.idx >= len(c.rows) {
		return Row{}, false, nil
	}
	r := c.rows[c.idx]
	c.idx++
	return r, true, nil
}

func (c *sliceCursor) Close() error {
	c.rows = nil
	return nil
}

func normalizeSchema(schema []ir.Var) []ir.Var {
	out := slices.Clone(schema)
	slices.Sort(out)
	return slices.Compact(out)
}

// UnionSchema returns the sorted union of two schemas.
func UnionSchema(a, b []ir.Var) []ir.Var {
	return normalizeSchema(append(slices.Clone(a), b...))
}

// SharedVars returns the sorted intersection of two schemas.
func SharedVars(a, b []ir.Var) []ir.Var {
	na, nb := normalizeSchema(a), normalizeSchema(b)
	var out []ir.Var
	i, j := 0, 0
	for i < len(na) && j < len(nb) {
		switch {
		case na[i] < nb[j]:
			i++
		case nb[j] < na[i]:
			j++
		default:
			out = append(out, na[i])
			i++
			j++
		}
	}
	return out
}
