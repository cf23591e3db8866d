// Package graph holds the in-memory workflow graph model: nodes keyed by
// id, typed data edges, and cycle markers with their bounds and convergence
// conditions.
//
// The graph is built once, validated, and treated as read-only during
// execution. Vertices reference each other by id only; there are no pointer
// links between nodes, so marked back-edges cannot produce cyclic data
// structures.
package graph
