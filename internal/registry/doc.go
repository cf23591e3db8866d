// Package registry maps runner type tokens to the Go constructors that
// implement them.
//
// The registry is populated at application startup; registering the same
// type twice is a programmer error and panics. Declared schemas are
// memoized on first lookup so graph validation and per-run parameter
// checking stay cheap.
package registry
