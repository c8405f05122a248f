package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/plan"
	"github.com/roach88/quadmatch/internal/querysql"
	"github.com/roach88/quadmatch/internal/rows"
)

// ErrSnapshotClosed is returned by scans started or continued after the
// snapshot was closed.
var ErrSnapshotClosed = errors.New("snapshot closed")

// Snapshot is a consistent read view of the store, backed by one read
// transaction. Every scan of a query should go through the same snapshot.
//
// A Snapshot may serve several scans at once (the nested evaluator keeps
// outer scans open while running inner ones), but it is owned by one query
// and is not meant to be shared between goroutines.
type Snapshot struct {
	tx       *sql.Tx
	compiler *querysql.SQLCompiler
	closed   atomic.Bool
}

// Snapshot opens a read transaction. The caller must Close it.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return &Snapshot{tx: tx, compiler: s.compiler}, nil
}

// Close ends the read transaction. Safe to call more than once.
func (sn *Snapshot) Close() error {
	if sn.closed.Swap(true) {
		return nil
	}
	if err := sn.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("close snapshot: %w", err)
	}
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
	slot := ir.SlotForTerm(name)
	return plan.AccessorFunc(func(ctx context.Context, p ir.Pattern) *rows.List {
		if p.Arity() != 3 {
			return failed(p, fmt.Errorf("graph %s: pattern %s is not a triple pattern", name, p))
		}
		return sn.scan(p.InGraph(slot), p.Vars())
	})
}

// Quads returns the accessor for quad patterns over the named graphs.
// A variable graph position never matches the default graph.
func (sn *Snapshot) Quads() plan.Accessor {
	return plan.AccessorFunc(func(ctx context.Context, p ir.Pattern) *rows.List {
		if p.Arity() != 4 {
			return failed(p, fmt.Errorf("quads: pattern %s is not a quad pattern", p))
		}
		return sn.scan(p, p.Vars())
	})
}

// GraphNames returns the named graphs that hold at least one quad, in
// key order.
func (sn *Snapshot) GraphNames(ctx context.Context) ([]ir.Term, error) {
	if sn.closed.Load() {
		return nil, ErrSnapshotClosed
	}
	q := sn.compiler.CompileGraphNames()
	rs, err := sn.tx.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("query graph names: %w", err)
	}
	defer rs.Close()

	names := []ir.Term{}
	for rs.Next() {
		var col sql.NullString
		if err := rs.Scan(&col); err != nil {
			return nil, fmt.Errorf("scan graph name: %w", err)
		}
		t, err := decodeTerm(col)
		if err != nil {
			return nil, err
		}
		names = append(names, t)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate graph names: %w", err)
	}
	return names, nil
}

// SolveBGP evaluates a whole Basic Pattern over graph as one SQL self-join.
// It does not go through the join engine and serves as a reference result
// when cross-checking it.
func (sn *Snapshot) SolveBGP(ctx context.Context, graph ir.Term, bp ir.BasicPattern) ([]ir.Solution, error) {
	if sn.closed.Load() {
		return nil, ErrSnapshotClosed
	}
	q, err := sn.compiler.CompileBGP(bp, graph)
	if err != nil {
		return nil, err
	}
	rs, err := sn.tx.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("solve bgp: %w", err)
	}
	defer rs.Close()

	sols := []ir.Solution{}
	dest, cols := scanTargets(len(q.Vars))
	for rs.Next() {
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("solve bgp: scan: %w", err)
		}
		sol := make(ir.Solution, len(q.Vars))
		for i, v := range q.Vars {
			t, err := decodeTerm(cols[i])
			if err != nil {
				return nil, err
			}
			sol[v] = t
		}
		sols = append(sols, sol)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("solve bgp: %w", err)
	}
	return sols, nil
}

// scan returns the lazy list of matches of quad pattern p. The query runs
// on the first pull.
func (sn *Snapshot) scan(p ir.Pattern, schema []ir.Var) *rows.List {
	return rows.New("sql"+p.String(), schema, func(ctx context.Context) (rows.Cursor, error) {
		if sn.closed.Load() {
			return nil, ErrSnapshotClosed
		}
		q, err := sn.compiler.CompilePattern(p)
		if err != nil {
			return nil, err
		}
		rs, err := sn.tx.QueryContext(ctx, q.SQL, q.Params...)
		if err != nil {
			if sn.closed.Load() {
				return nil, ErrSnapshotClosed
			}
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		dest, cols := scanTargets(len(q.Vars))
		return &sqlCursor{snap: sn, rows: rs, vars: q.Vars, dest: dest, cols: cols}, nil
	})
}

// sqlCursor turns result rows into rows.Row values.
type sqlCursor struct {
	snap *Snapshot
	rows *sql.Rows
	vars []ir.Var
	dest []any
	cols []sql.NullString
}

func (c *sqlCursor) Next() (rows.Row, bool, error) {
	if c.snap.closed.Load() {
		return rows.Row{}, false, ErrSnapshotClosed
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return rows.Row{}, false, fmt.Errorf("iterate quads: %w", err)
		}
		return rows.Row{}, false, nil
	}
	if err := c.rows.Scan(c.dest...); err != nil {
		return rows.Row{}, false, fmt.Errorf("scan quad: %w", err)
	}
	b := rows.NewBuilder(len(c.vars))
	for i, v := range c.vars {
		t, err := decodeTerm(c.cols[i])
		if err != nil {
			return rows.Row{}, false, err
		}
		b.Add(v, t)
	}
	return b.Build(), true, nil
}

func (c *sqlCursor) Close() error {
	return c.rows.Close()
}

// scanTargets returns Scan destinations for n term columns. With no
// variables the query selects a constant, which is scanned and ignored.
func scanTargets(n int) ([]any, []sql.NullString) {
	if n == 0 {
		var ignored sql.NullInt64
		return []any{&ignored}, nil
	}
	cols := make([]sql.NullString, n)
	dest := make([]any, n)
	for i := range cols {
		dest[i] = &cols[i]
	}
	return dest, cols
}

func failed(p ir.Pattern, err error) *rows.List {
	return rows.New("sql"+p.String(), p.Vars(), func(context.Context) (rows.Cursor, error) {
		return nil, err
	})
}
