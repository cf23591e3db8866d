// Package plan computes the execution plan for a validated graph: an
// ordered sequence of waves, where each wave is a set of units with no
// unresolved dependencies among them.
//
// Marked cycle regions are condensed into single units first, so the wave
// computation only ever sees the acyclic projection. Within a wave, units
// are execution-order-independent by construction; across waves, every
// producer of a consumed value completes before its consumer is dispatched.
package plan
