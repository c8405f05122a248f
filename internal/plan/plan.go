package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// Plan is the linear physical plan compiled from one Basic Pattern: the
// steps run in order, each consuming the previous step's output.
type Plan struct {
	bp     ir.BasicPattern
	steps  []Step
	seeded bool
}

// Build compiles bp (already in its final order) into a plan whose first
// step is a ScanStep and whose later steps are HashJoinSteps.
//
// A ScanStep ignores its input, so a plan from Build is only correct when
// executed with the identity list (or nil). Use BuildSeeded when there are
// prior bindings to join against.
//
// An empty bp yields a plan with no steps that returns its seed unchanged.
func Build(bp ir.BasicPattern, acc Accessor, opts ...Option) *Plan {
	p := &Plan{bp: bp.Clone(), steps: make([]Step, 0, len(bp))}
	for i, pat := range bp {
		if i == 0 {
			p.steps = append(p.steps, NewScanStep(pat, acc, opts...))
			continue
		}
		p.steps = append(p.steps, NewHashJoinStep(pat, acc, opts...))
	}
	return p
}

// BuildSeeded compiles bp into a plan of HashJoinSteps only, so that the
// seed passed to Execute is joined with the first pattern rather than
// discarded.
func BuildSeeded(bp ir.BasicPattern, acc Accessor, opts ...Option) *Plan {
	p := &Plan{bp: bp.Clone(), steps: make([]Step, 0, len(bp)), seeded: true}
	for _, pat := range bp {
		p.steps = append(p.steps, NewHashJoinStep(pat, acc, opts...))
	}
	return p
}

// Execute threads seed through every step and returns the final list.
// A nil seed means the identity list.
//
// The returned list is lazy: storage is touched only when it is pulled.
func (p *Plan) Execute(ctx context.Context, seed *rows.List) (*rows.List, error) {
	if seed == nil {
		seed = rows.Identity()
	}
	cur := seed
	for i, step := range p.steps {
		next, err := step.Execute(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step, err)
		}
		cur = next
	}
	return cur, nil
}

// Steps returns the steps in execution order. The caller must not modify
// the returned slice.
func (p *Plan) Steps() []Step {
	return p.steps
}

// Patterns returns the compiled Basic Pattern in execution order.
func (p *Plan) Patterns() ir.BasicPattern {
	return p.bp
}

// Schema returns the variables bound by the plan's output, given the
// schema of the seed.
func (p *Plan) Schema(seed []ir.Var) []ir.Var {
	schema := rows.UnionSchema(seed, nil)
	for _, s := range p.steps {
		schema = rows.UnionSchema(schema, s.Pattern().Vars())
	}
	return schema
}

// String renders the plan one step per line, with the join variables of
// each hash join computed from the steps before it:
//
//  1. Scan (?s <p1> "o1")
//  2. HashJoin[?s] (?s <p2> ?o2)
//
// A seeded plan starts from an unknown schema, so its first join shows
// "[seed]".
func (p *Plan) String() string {
	if len(p.steps) == 0 {
		return "(empty plan)"
	}
	var b strings.Builder
	var schema []ir.Var
	for i, s := range p.steps {
		vars := s.Pattern().Vars()
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. ", i+1)
		switch step := s.(type) {
		case *HashJoinStep:
			if p.seeded && i == 0 {
				fmt.Fprintf(&b, "HashJoin[seed] %s", step.Pattern())
			} else {
				fmt.Fprintf(&b, "HashJoin[%s] %s", joinVars(rows.SharedVars(schema, vars)), step.Pattern())
			}
		default:
			b.WriteString(s.String())
		}
		schema = rows.UnionSchema(schema, vars)
	}
	return b.String()
}

func joinVars(vars []ir.Var) string {
	if len(vars) == 0 {
		return "cross"
	}
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.String()
	}
	return strings.Join(names, " ")
}
