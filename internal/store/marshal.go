package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
)

// quadKeys converts a quad to its four column values, folding default
// graph names onto ir.DefaultGraph.
func quadKeys(q ir.Quad) ([4]any, error) {
	if err := q.Validate(); err != nil {
		return [4]any{}, err
	}
	q = q.Canonical()
	return [4]any{q.Graph.Key(), q.Subject.Key(), q.Predicate.Key(), q.Object.Key()}, nil
}

// decodeTerm parses a stored term key.
// Stored keys were produced by ir.Term.Key, so a failure means the database
// was written by something else.
func decodeTerm(col sql.NullString) (ir.Term, error) {
	if !col.Valid {
		return ir.Term{}, fmt.Errorf("decode term: unexpected NULL")
	}
	t, err := ir.ParseTerm(col.String)
	if err != nil {
		return ir.Term{}, fmt.Errorf("decode term %q: %w", col.String, err)
	}
	return t, nil
}
