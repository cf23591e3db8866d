// Package cycle owns the iteration machinery of a marked cyclic sub-graph:
// the per-instance mutable state, the re-injection of each iteration's
// outputs into the next via back-edges, and the terminal transitions.
//
// The state machine per instance is INIT -> RUNNING -> {CONVERGED |
// EXHAUSTED | ABORTED}. CONVERGED and EXHAUSTED are normal, reportable
// outcomes; only ABORTED (a safety violation) is an error. Iterations are
// strictly sequential: iteration n+1 consumes iteration n's outputs.
package cycle
