// Package params merges the three parameter sources for a node — static
// config, edge-supplied values, and caller runtime overrides — into a
// validated input map.
//
// Precedence, highest to lowest: runtime override, edge value, static
// config, declared default. Validation behavior is configurable per run:
// off, warn, strict, or debug (warn plus a retrievable trace of every
// resolution decision). Schema lookups are memoized by the registry, so
// strict validation stays cheap on the per-execution hot path.
package params
