// Package safety watches a running cycle instance against its configured
// ceilings: iteration count, wall-clock time, and optionally per-iteration
// heap growth.
//
// A violation is fatal for the cycle: the runtime transitions to ABORTED
// and the violation is surfaced in the execution result. The monitor never
// retries or auto-corrects; remediation (for example restarting with
// relaxed limits) is the caller's responsibility.
package safety
