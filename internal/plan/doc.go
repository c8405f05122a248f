// Package plan compiles a Basic Pattern into a linear physical plan and
// executes it over rows.
//
// A Plan is an ordered list of Steps. The first step of a plan built with
// Build is a ScanStep; every later step is a HashJoinStep that
// materialises the rows accumulated so far (the build side) and streams a
// fresh scan of its own pattern (the probe side) against them.
//
//	(?s <p1> "o1")   Scan
//	(?s <p2> ?o2)    HashJoin[?s]
//
// The build/probe assignment is fixed: the accumulated input is always
// built, the new pattern always probed. Pattern order is decided before
// Build by a reorder.Policy; this package never reorders.
//
// Steps and plans are cheap to construct. No storage work happens until
// the output list is pulled.
package plan
