// Package store provides SQLite-backed quad storage for the join engine.
//
// The store keeps one table of quads (g, s, p, o). Terms are stored as their
// N-Triples keys (ir.Term.Key), so term equality is string equality in SQL.
//
// # Reads
//
// All reads go through a Snapshot: a read transaction that gives every
// scan of one query the same view of the data. A Snapshot implements the
// executor's dataset contract (Graph, Quads, GraphNames). Each pattern
// scan is one parameterized SELECT compiled by internal/querysql and
// streamed through a lazy rows.List.
//
// # Critical Patterns
//
// Deterministic Query Results
//   - All queries include ORDER BY (id for pattern scans)
//   - Ensures identical results across runs of the same data
//
// Default Graph
//   - Stored under ir.DefaultGraph; DefaultGraphGenerated is folded onto it
//     on write and on read
//   - A graph variable never matches the default graph
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Concurrent snapshots need more than one connection (WithMaxOpenConns) and
// a file-backed database; every ":memory:" connection is a separate database.
package store
