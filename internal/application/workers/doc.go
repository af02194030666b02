// Package workers implements the worker pool for concurrent cell
// computations.
//
// The pool manages a fixed number of goroutines that:
//   - Consume cell tasks from a bounded queue
//   - Run each cell's three-stage pipeline to completion
//   - Stop on context cancellation without interrupting a task mid-write
//
// A sampler goroutine owned by the pool logs the worker census on an
// interval and feeds the pool gauges.
package workers
