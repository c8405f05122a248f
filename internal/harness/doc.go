// Package harness runs conformance scenarios against the query engine.
//
// A scenario loads a small data set into a fresh store, runs each of its
// queries under every execution strategy, checks that the strategies agree
// with one another (and, on SQLite, with a single-statement SQL rendition
// of the query), and then checks the scenario's expectations.
//
// # Scenario Format
//
//	name: people
//	description: "Join over the default graph"
//	backend: sqlite            # or badger; sqlite when absent
//	data:
//	  - ["<http://ex/a>", "<http://ex/name>", "\"Alice\""]
//	  - ["_:x", "<http://ex/name>", "\"Bob\"", "<http://ex/g1>"]
//	queries:
//	  - name: names
//	    graph: default          # "<iri>", "?g", "default" or "union"
//	    patterns:
//	      - ["?s", "<http://ex/name>", "?n"]
//	    filters:
//	      - {op: notEquals, var: "?n", value: "\"Bob\""}
//	    select: ["?n"]
//	    expect:
//	      - {n: "\"Alice\""}
//	    expect_count: 1
//
// Data rows are [s, p, o] or [s, p, o, g]. Queries use the same fields as
// CUE query files, so a query case is compiled by compiler.CompileQuery.
//
// # Expectations
//
//   - expect: the exact multiset of solutions, order ignored
//   - expect_count: the number of solutions
//   - expect_not_implemented: the row engine alone declines the query
//     (variable or union graph); the automatic strategy still answers it
//
// # Deterministic Testing
//
// Blank node labels in data are relabelled per load, to b1, b2, ... in
// order of first appearance, so expectations and golden files can name
// them. Execution ids are fixed (testutil.FixedIDGenerator) and every
// scenario gets its own store in a temporary directory.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/people.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
