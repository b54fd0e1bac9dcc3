// Package workers implements the bounded worker pool that runs agent turns.
//
// The pool manages a fixed number of goroutines that:
//   - Take turn jobs submitted by the delegate server
//   - Run each job under the submitter's context
//   - Report busy/idle status for health monitoring
//
// The health monitor tracks worker status and records metrics.
package workers
