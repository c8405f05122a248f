// Package loader turns quad data files into ir.Quad values and writes
// them to a store.
//
// A data file is YAML:
//
//	quads:
//	  - ["<http://ex/a>", "<http://ex/p>", "\"o\""]                  # default graph
//	  - ["<http://ex/a>", "<http://ex/p>", "_:x", "<http://ex/g1>"]   # named graph
//
// Elements are N-Triples terms; the optional fourth element is the graph,
// as in N-Quads. Blank node labels are scoped to one load: every load gets
// fresh labels, so "_:x" in two files (or two loads of one file) names two
// different nodes.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/quadmatch/internal/ir"
)

// File is a parsed data file.
type File struct {
	Quads [][]string `yaml:"quads"`
}

// ReadFile reads and parses a data file.
// Unknown top-level fields are rejected.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &f, nil
}

// Relabeler maps file-local blank node labels to load-unique ones. The
// same local label maps to the same fresh label for the Relabeler's
// lifetime; use one Relabeler per load.
type Relabeler struct {
	fresh  func() string
	labels map[string]string
}

// NewRelabeler returns a Relabeler drawing fresh labels from UUIDv7s.
func NewRelabeler() *Relabeler {
	return NewRelabelerFunc(func() string {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		return "b" + strings.ReplaceAll(id.String(), "-", "")
	})
}

// NewRelabelerFunc returns a Relabeler drawing fresh labels from fresh.
// Tests use it for deterministic labels.
func NewRelabelerFunc(fresh func() string) *Relabeler {
	return &Relabeler{fresh: fresh, labels: make(map[string]string)}
}

// Term returns t with a blank node label replaced; other terms are
// returned unchanged.
func (r *Relabeler) Term(t ir.Term) ir.Term {
	if !t.IsBlank() {
		return t
	}
	label, ok := r.labels[t.Value]
	if !ok {
		label = r.fresh()
		r.labels[t.Value] = label
	}
	return ir.NewBlank(label)
}

// Len returns how many distinct local labels have been mapped.
func (r *Relabeler) Len() int {
	return len(r.labels)
}

// ParseQuads converts records of 3 (subject, predicate, object) or 4
// (plus graph) terms into quads, relabelling blank nodes through r.
// A nil r keeps labels as written.
func ParseQuads(records [][]string, r *Relabeler) ([]ir.Quad, error) {
	quads := make([]ir.Quad, 0, len(records))
	for i, rec := range records {
		q, err := parseQuad(rec, r)
		if err != nil {
			return nil, fmt.Errorf("quads[%d]: %w", i, err)
		}
		quads = append(quads, q)
	}
	return quads, nil
}

func parseQuad(rec []string, r *Relabeler) (ir.Quad, error) {
	if len(rec) != 3 && len(rec) != 4 {
		return ir.Quad{}, fmt.Errorf("want 3 or 4 terms, got %d", len(rec))
	}
	terms := make([]ir.Term, len(rec))
	for i, s := range rec {
		t, err := ir.ParseTerm(s)
		if err != nil {
			return ir.Quad{}, err
		}
		if r != nil {
			t = r.Term(t)
		}
		terms[i] = t
	}
	q := ir.Quad{Graph: ir.DefaultGraph, Subject: terms[0], Predicate: terms[1], Object: terms[2]}
	if len(terms) == 4 {
		q.Graph = terms[3]
	}
	if err := q.Validate(); err != nil {
		return ir.Quad{}, err
	}
	return q.Canonical(), nil
}

// Sink receives loaded quads. Both quad stores implement it.
type Sink interface {
	AddQuads(ctx context.Context, quads []ir.Quad) (int, error)
}

// Load parses records with a fresh Relabeler and adds them to sink. It
// returns the number of quads that were new.
func Load(ctx context.Context, sink Sink, records [][]string) (int, error) {
	return LoadWith(ctx, sink, records, NewRelabeler())
}

// LoadWith is Load with a caller-supplied Relabeler.
func LoadWith(ctx context.Context, sink Sink, records [][]string, r *Relabeler) (int, error) {
	quads, err := ParseQuads(records, r)
	if err != nil {
		return 0, err
	}
	n, err := sink.AddQuads(ctx, quads)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	return n, nil
}
