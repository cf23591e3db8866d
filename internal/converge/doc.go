// Package converge evaluates stopping conditions for cyclic sub-graphs.
//
// Four condition kinds are supported: threshold comparisons against a named
// metric, stability (variance of a bounded history window), boolean
// expressions over named metrics, and weighted composites of sub-conditions.
//
// When a cycle configures more than one condition, the set is a disjunction:
// the cycle stops on the FIRST satisfied condition, not when all of them are
// satisfied. This is deliberate and worth restating wherever conditions are
// configured, because users routinely expect AND and are surprised by early
// termination.
package converge
