// Package rows provides the solution abstraction of the join engine.
//
// A Row is one immutable variable-to-term mapping. A List is a named,
// single-pass lazy sequence of rows plus the schema (the variables every
// row binds). Lists are pulled through an Iterator; the producing Cursor is
// opened on the first pull and released on exhaustion, error, Close, or
// context cancellation.
//
// CONCURRENCY:
//
// Rows are immutable and may be shared freely. A List and its Iterator are
// owned by one consumer at a time and carry no locks; thread-safety of the
// data behind a Cursor is the storage layer's responsibility.
package rows
