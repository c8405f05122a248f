package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/plan"
	"github.com/roach88/quadmatch/internal/rows"
)

// ErrSnapshotClosed is returned by scans started or continued after the
// snapshot was closed.
var ErrSnapshotClosed = errors.New("snapshot closed")

// Snapshot is a consistent read view backed by one read-only Badger
// transaction. Several scans may be open at once.
type Snapshot struct {
	mu     sync.Mutex
	txn    *badger.Txn
	open   map[*kvCursor]struct{}
	closed bool
}

// Close closes every open scan and discards the transaction. Safe to call
// more than once.
func (sn *Snapshot) Close() error {
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.closed {
		return nil
	}
	sn.closed = true
	// Badger panics on Discard while iterators are open.
	for c := range sn.open {
		c.it.Close()
		c.it = nil
	}
	sn.open = nil
	sn.txn.Discard()
	return nil
}

// SupportsRowAccess reports that unconstrained scans are served from an
// index, so the row engine may use this snapshot.
func (sn *Snapshot) SupportsRowAccess() bool {
	return true
}

// Graph returns the accessor for triple patterns in graph name. Any default
// graph name selects the default graph.
func (sn *Snapshot) Graph(name ir.Term) plan.Accessor {
	slot := ir.SlotForTerm(canonicalGraph(name))
	return plan.AccessorFunc(func(ctx context.Context, p ir.Pattern) *rows.List {
		if p.Arity() != 3 {
			return failed(p, fmt.Errorf("graph %s: pattern %s is not a triple pattern", name, p))
		}
		return sn.scan(p.InGraph(slot))
	})
}

// Quads returns the accessor for quad patterns over the named graphs.
// A variable graph position never matches the default graph.
func (sn *Snapshot) Quads() plan.Accessor {
	return plan.AccessorFunc(func(ctx context.Context, p ir.Pattern) *rows.List {
		if p.Arity() != 4 {
			return failed(p, fmt.Errorf("quads: pattern %s is not a quad pattern", p))
		}
		if t, ok := p.Graph().Term(); ok && t.IsDefaultGraph() {
			p = ir.NewQuad(ir.SlotForTerm(ir.DefaultGraph), p.Subject(), p.Predicate(), p.Object())
		}
		return sn.scan(p)
	})
}

// GraphNames returns the named graphs that hold at least one quad, in key
// order.
func (sn *Snapshot) GraphNames(ctx context.Context) ([]ir.Term, error) {
	c, err := sn.openCursor(ctx, IndexGSPO, []byte{byte(IndexGSPO)})
	if err != nil {
		return nil, err
	}
	defer sn.release(c)

	defaultKey := ir.DefaultGraph.Key()
	names := []ir.Term{}
	last := ""
	for {
		key, ok, err := c.nextKey()
		if err != nil {
			return nil, err
		}
		if !ok {
			return names, nil
		}
		g := key[ir.PosG]
		if g == defaultKey || g == last {
			continue
		}
		last = g
		t, err := ir.ParseTerm(g)
		if err != nil {
			return nil, fmt.Errorf("decode graph %q: %w", g, err)
		}
		names = append(names, t)
	}
}

// scan returns the lazy list of matches of quad pattern p. The iterator is
// created on the first pull.
func (sn *Snapshot) scan(p ir.Pattern) *rows.List {
	vars := p.Vars()
	return rows.New("kv"+p.String(), vars, func(ctx context.Context) (rows.Cursor, error) {
		m := newMatcher(p)
		ix, n := chooseIndex(m.bound)
		segments := make([]string, n)
		order := ix.order()
		for i, pos := range order[:n] {
			segments[i] = m.keys[pos]
		}
		c, err := sn.openCursor(ctx, ix, prefixKey(ix, segments))
		if err != nil {
			return nil, err
		}
		return &scanCursor{kv: c, m: m, vars: vars}, nil
	})
}

func (sn *Snapshot) openCursor(ctx context.Context, ix Index, prefix []byte) (*kvCursor, error) {
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.closed {
		return nil, ErrSnapshotClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := sn.txn.NewIterator(opts)
	it.Seek(prefix)

	c := &kvCursor{snap: sn, ctx: ctx, it: it, prefix: prefix}
	sn.open[c] = struct{}{}
	return c, nil
}

func (sn *Snapshot) release(c *kvCursor) {
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if c.it == nil {
		return
	}
	c.it.Close()
	c.it = nil
	delete(sn.open, c)
}

// kvCursor walks the keys under one prefix.
type kvCursor struct {
	snap   *Snapshot
	ctx    context.Context
	it     *badger.Iterator
	prefix []byte
}

// nextKey returns the next decoded key, or false at the end of the prefix.
func (c *kvCursor) nextKey() ([4]string, bool, error) {
	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()

	if c.it == nil {
		return [4]string{}, false, ErrSnapshotClosed
	}
	if err := c.ctx.Err(); err != nil {
		return [4]string{}, false, err
	}
	if !c.it.ValidForPrefix(c.prefix) {
		return [4]string{}, false, nil
	}
	raw := c.it.Item().Key()
	_, keys, err := decodeKey(raw)
	if err != nil {
		return [4]string{}, false, err
	}
	c.it.Next()
	return keys, true, nil
}

// matcher checks decoded keys against a quad pattern.
type matcher struct {
	keys       [4]string
	bound      [4]bool
	firstPos   map[ir.Var]int
	repeats    [][2]int // position pairs that must hold the same term
	graphVar   bool
	defaultKey string
}

func newMatcher(p ir.Pattern) *matcher {
	m := &matcher{firstPos: make(map[ir.Var]int), defaultKey: ir.DefaultGraph.Key()}
	for pos, slot := range p.Slots() {
		if v, ok := slot.Var(); ok {
			if first, seen := m.firstPos[v]; seen {
				m.repeats = append(m.repeats, [2]int{first, pos})
			} else {
				m.firstPos[v] = pos
			}
			if pos == ir.PosG {
				m.graphVar = true
			}
			continue
		}
		t, _ := slot.Term()
		m.keys[pos] = t.Key()
		m.bound[pos] = true
	}
	return m
}

func (m *matcher) match(keys [4]string) bool {
	for pos, b := range m.bound {
		if b && keys[pos] != m.keys[pos] {
			return false
		}
	}
	for _, r := range m.repeats {
		if keys[r[0]] != keys[r[1]] {
			return false
		}
	}
	if m.graphVar && keys[ir.PosG] == m.defaultKey {
		return false
	}
	return true
}

// scanCursor adapts a kvCursor to rows.Cursor.
type scanCursor struct {
	kv   *kvCursor
	m    *matcher
	vars []ir.Var
}

func (c *scanCursor) Next() (rows.Row, bool, error) {
	for {
		keys, ok, err := c.kv.nextKey()
		if err != nil || !ok {
			return rows.Row{}, false, err
		}
		if !c.m.match(keys) {
			continue
		}
		b := rows.NewBuilder(len(c.vars))
		for _, v := range c.vars {
			key := keys[c.m.firstPos[v]]
			t, err := ir.ParseTerm(key)
			if err != nil {
				return rows.Row{}, false, fmt.Errorf("decode term %q: %w", key, err)
			}
			b.Add(v, t)
		}
		return b.Build(), true, nil
	}
}

func (c *scanCursor) Close() error {
	c.kv.snap.release(c.kv)
	return nil
}

func failed(p ir.Pattern, err error) *rows.List {
	return rows.New("kv"+p.String(), p.Vars(), func(context.Context) (rows.Cursor, error) {
		return nil, err
	})
}

func canonicalGraph(t ir.Term) ir.Term {
	if t.IsDefaultGraph() {
		return ir.DefaultGraph
	}
	return t
}
