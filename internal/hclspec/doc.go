// Package hclspec loads declarative workflow definitions written in HCL
// and translates them into a built graph plus cycle configuration.
//
// Data flow between nodes is expressed exclusively through edge blocks;
// there is no string-template substitution inside config values, so every
// connection is statically validated against the declared schemas. The
// converge_any block name is deliberate: its conditions form a
// disjunction, and the first satisfied condition stops the cycle.
package hclspec
