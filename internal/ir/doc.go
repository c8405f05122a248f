// Package ir provides the term and pattern model shared by every layer of
// quadmatch.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the term model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Term is a comparable value; equality is Go ==
//   - Literal lexical forms and IRIs are NFC normalized at construction
//   - Slot is a sum type {Term, Var}; the zero Slot is invalid
//   - Pattern arity is fixed at construction (3 = triple, 4 = quad)
//   - Shape violations panic with ArityError or InvariantError; they are
//     programming errors, never user input
package ir
