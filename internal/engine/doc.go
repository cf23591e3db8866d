// Package engine is the caller-facing execution API: one entry point
// taking a built graph, runtime parameter overrides, and a configuration
// object, returning an aggregated execution result.
//
// Build-time errors (graph validation, strict parameter preflight) abort
// the run before any node executes. Node failures, cycle outcomes, and
// cancellations are reported per node inside the result.
package engine
