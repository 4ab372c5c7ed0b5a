// Package slidingwindow maintains a bounded, contiguous window over an
// append-growing log of counter-numbered records. Records are fetched from a
// Source and materialized into a Sink; the window never holds more than the
// configured event limit.
//
// Terminology
//   - Counter: the position of a record in the log's total order, starting at 1.
//   - Head/Tail: the lowest and highest materialized counters. Both are 0 while
//     the window is empty, otherwise the window holds exactly [Head..Tail].
//   - High/Low edge: the tail and head ends of the window. Growing an edge
//     materializes records past it, shrinking an edge evicts records at it.
//
// Main components
//   - State: the in-memory index of materialized counters, their line spans and
//     their sink identities. Head and tail are maintained incrementally.
//   - Edge operations: GrowHigh, GrowLow, ShrinkHigh and ShrinkLow call the Sink
//     and then update State. Batches that do not extend the window contiguously
//     are rejected with ErrNotContiguous.
//   - Move: diffs a target range against the current one and issues the minimal
//     ordered set of edge operations. Trims run before growths and the returned
//     Measurement is the sink height taken between the two, so callers can anchor
//     their scroll position against it. Disjoint targets reload the window.
//   - Paging: Advance, Retreat, ShiftHead, ShiftTail, Reset, JumpToStart and
//     JumpToEnd compute a target and call Move.
//   - Sequencer: a single-consumer queue that runs every mutating call one at a
//     time, in call order. A failed step is reported to its caller and later
//     steps still run.
//
// Usage
//  1. Construct a Manager with NewManager(logger, source, sink, measurer, cfg, metrics).
//  2. Start Run(ctx) in a goroutine.
//  3. Call the paging methods from any goroutine; each returns once its step settles.
//  4. Cancel ctx to stop Run; calls made afterwards fail with ErrStopped.
package slidingwindow
