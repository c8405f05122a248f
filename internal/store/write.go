package store

import (
	"context"
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
)

// AddQuads inserts quads in one transaction and returns how many were new.
// Uses ON CONFLICT DO NOTHING for idempotency - duplicate quads are silently
// ignored. A quad that fails validation aborts the whole batch.
func (s *Store) AddQuads(ctx context.Context, quads []ir.Quad) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add quads: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quads (g, s, p, o)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("add quads: prepare: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, q := range quads {
		keys, err := quadKeys(q)
		if err != nil {
			return 0, fmt.Errorf("add quads: %w", err)
		}
		res, err := stmt.ExecContext(ctx, keys[0], keys[1], keys[2], keys[3])
		if err != nil {
			return 0, fmt.Errorf("add quads: insert %s: %w", q, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("add quads: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add quads: commit: %w", err)
	}
	return added, nil
}

// DeleteQuads removes quads in one transaction and returns how many
// existed. Deleting a missing quad is not an error.
func (s *Store) DeleteQuads(ctx context.Context, quads []ir.Quad) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete quads: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		DELETE FROM quads WHERE g = ? AND s = ? AND p = ? AND o = ?
	`)
	if err != nil {
		return 0, fmt.Errorf("delete quads: prepare: %w", err)
	}
	defer stmt.Close()

	removed := 0
	for _, q := range quads {
		keys, err := quadKeys(q)
		if err != nil {
			return 0, fmt.Errorf("delete quads: %w", err)
		}
		res, err := stmt.ExecContext(ctx, keys[0], keys[1], keys[2], keys[3])
		if err != nil {
			return 0, fmt.Errorf("delete quads: %s: %w", q, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete quads: %w", err)
		}
		removed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete quads: commit: %w", err)
	}
	return removed, nil
}

// LoadRecord describes one completed data load.
type LoadRecord struct {
	ID     string // Load identifier (UUIDv7)
	Source string // File or scenario the data came from
	Added  int    // Quads that were new
	Seq    int64  // Load order
}

// RecordLoad writes a load record. Uses ON CONFLICT(id) DO NOTHING for
// idempotency.
func (s *Store) RecordLoad(ctx context.Context, rec LoadRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loads (id, source, added, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Source, rec.Added, rec.Seq)
	if err != nil {
		return fmt.Errorf("record load: %w", err)
	}
	return nil
}

// NextLoadSeq returns the sequence number for the next load.
func (s *Store) NextLoadSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM loads").Scan(&seq); err != nil {
		return 0, fmt.Errorf("next load seq: %w", err)
	}
	return seq, nil
}

// ReadLoads returns every load record.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
func (s *Store) ReadLoads(ctx context.Context) ([]LoadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, added, seq FROM loads
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query loads: %w", err)
	}
	defer rows.Close()

	records := []LoadRecord{}
	for rows.Next() {
		var rec LoadRecord
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Added, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan load: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loads: %w", err)
	}
	return records, nil
}
