package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/quadmatch/internal/ir"
)

// DefaultTable is the quad table created by the store schema.
const DefaultTable = "quads"

// columns maps pattern positions (ir.PosG..ir.PosO) to column names.
var columns = [4]string{"g", "s", "p", "o"}

// SQLCompiler compiles quad patterns to parameterized SQL for SQLite.
//
// Terms are stored and compared by their ir.Term.Key encoding, so a bound
// position becomes "col = ?" with the key as parameter.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	// Table is the quad table name. Empty means DefaultTable.
	Table string
}

// NewSQLCompiler creates a new SQLCompiler for the default table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: DefaultTable}
}

// Compiled is one compiled SELECT. Column i of each result row holds the
// Term.Key of Vars[i].
type Compiled struct {
	SQL    string
	Params []any
	Vars   []ir.Var
}

// CompilePattern converts one quad pattern (arity 4) to a SELECT over the
// quad table. Triple patterns must be placed in a graph with
// ir.Pattern.InGraph first.
//
// Translation rules:
//   - bound position: "col = ?" with the term key
//   - first occurrence of a variable: selected
//   - repeated variable: "col = firstcol", so storage never returns rows
//     where the occurrences disagree
//   - constant graph that is a default graph name: the canonical default
//     graph key, so DefaultGraphGenerated and DefaultGraph are the same graph
//   - variable graph: "g <> ?" with the default graph key, since a graph
//     variable ranges over named graphs only
//
// MANDATORY: Every query ends with ORDER BY id.
func (c *SQLCompiler) CompilePattern(p ir.Pattern) (Compiled, error) {
	if p.Arity() != 4 {
		return Compiled{}, fmt.Errorf("compile pattern %s: arity %d, want 4", p, p.Arity())
	}

	var (
		where  []string
		params []any
		sel    []string
		vars   []ir.Var
		first  = make(map[ir.Var]string)
	)
	for pos, slot := range p.Slots() {
		col := columns[pos]
		if v, ok := slot.Var(); ok {
			if prev, seen := first[v]; seen {
				where = append(where, fmt.Sprintf("%s = %s", col, prev))
				continue
			}
			first[v] = col
			sel = append(sel, col)
			vars = append(vars, v)
			if pos == ir.PosG {
				where = append(where, "g <> ?")
				params = append(params, ir.DefaultGraph.Key())
			}
			continue
		}
		t, _ := slot.Term()
		if pos == ir.PosG {
			t = canonicalGraph(t)
		}
		where = append(where, col+" = ?")
		params = append(params, t.Key())
	}

	return Compiled{
		SQL:    c.assemble(selectList(sel), c.table(), where, "id ASC"),
		Params: params,
		Vars:   vars,
	}, nil
}

// CompileBGP converts a whole Basic Pattern over one graph into a single
// self-join, one table alias per pattern. It is the relational reference
// for the row engine and is used to cross-check results.
//
// graph must be a concrete graph name, a default graph name included.
// Variable and union graphs are resolved by the caller.
//
// MANDATORY: Every query includes ORDER BY over every alias.
func (c *SQLCompiler) CompileBGP(bp ir.BasicPattern, graph ir.Term) (Compiled, error) {
	if graph.IsZero() {
		return Compiled{}, fmt.Errorf("compile bgp: missing graph")
	}
	graphKey := canonicalGraph(graph).Key()
	if len(bp) == 0 {
		// One empty solution, independent of the data.
		return Compiled{SQL: "SELECT 1"}, nil
	}

	var (
		from   []string
		where  []string
		params []any
		sel    []string
		vars   []ir.Var
		order  []string
		first  = make(map[ir.Var]string)
	)
	for i, p := range bp {
		if p.Arity() != 3 {
			return Compiled{}, fmt.Errorf("compile bgp: pattern %d has arity %d, want 3", i, p.Arity())
		}
		alias := fmt.Sprintf("q%d", i)
		from = append(from, c.table()+" "+alias)
		order = append(order, alias+".id ASC")
		where = append(where, alias+".g = ?")
		params = append(params, graphKey)

		for pos, slot := range p.Slots() {
			col := alias + "." + columns[pos+1]
			if v, ok := slot.Var(); ok {
				if prev, seen := first[v]; seen {
					where = append(where, fmt.Sprintf("%s = %s", col, prev))
					continue
				}
				first[v] = col
				sel = append(sel, col)
				vars = append(vars, v)
				continue
			}
			t, _ := slot.Term()
			where = append(where, col+" = ?")
			params = append(params, t.Key())
		}
	}

	return Compiled{
		SQL:    c.assemble(selectList(sel), strings.Join(from, " CROSS JOIN "), where, strings.Join(order, ", ")),
		Params: params,
		Vars:   vars,
	}, nil
}

// CompileGraphNames returns the query listing every named graph.
func (c *SQLCompiler) CompileGraphNames() Compiled {
	return Compiled{
		SQL:    fmt.Sprintf("SELECT DISTINCT g FROM %s WHERE g <> ? ORDER BY g COLLATE BINARY ASC", c.table()),
		Params: []any{ir.DefaultGraph.Key()},
	}
}

func (c *SQLCompiler) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

func (c *SQLCompiler) assemble(sel, from string, where []string, order string) string {
	sql := fmt.Sprintf("SELECT %s FROM %s", sel, from)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	// MANDATORY: Always add ORDER BY
	return sql + " ORDER BY " + order
}

// selectList returns the column list, or "1" when every position is bound
// and each match is an empty solution.
func selectList(cols []string) string {
	if len(cols) == 0 {
		return "1"
	}
	return strings.Join(cols, ", ")
}

// canonicalGraph folds every default graph name onto ir.DefaultGraph.
func canonicalGraph(t ir.Term) ir.Term {
	if t.IsDefaultGraph() {
		return ir.DefaultGraph
	}
	return t
}
