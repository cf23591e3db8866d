// Package executor drives a computed execution plan: waves run strictly in
// sequence, units within a wave are dispatched concurrently up to the
// configured bound, and condensed cycle regions are delegated to the cycle
// runtime.
//
// Failures are isolated per node: an unhandled error is recorded against
// its node id without aborting siblings, and nodes whose required inputs
// come from a failed upstream are marked as upstream failures and skipped
// instead of invoked. Cancellation is cooperative, observed at wave and
// iteration boundaries; in-flight executions complete.
package executor
