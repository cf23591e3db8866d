package graph

import "fmt"

// Build-time errors. All of them are fatal: they are raised before any node
// executes and are never retried. Each carries a stable machine-readable
// kind so callers can route "fix your workflow" errors separately from
// run-scoped failures.

// DuplicateNodeError is returned by AddNode when the id is already taken.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q already exists in graph", e.NodeID)
}

// Kind returns the machine-readable error kind.
func (e *DuplicateNodeError) Kind() string { return "duplicate_node" }

// UnknownNodeError is returned when an edge references a node id that was
// never added to the graph.
type UnknownNodeError struct {
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q referenced in graph", e.NodeID)
}

// Kind returns the machine-readable error kind.
func (e *UnknownNodeError) Kind() string { return "unknown_node" }

// CyclicGraphError is returned by Validate when the non-cycle projection of
// the graph contains a cycle. Back-edges must be explicitly marked; anything
// else that loops is a workflow definition bug.
type CyclicGraphError struct {
	NodeID string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("cycle detected outside marked cycle regions, involving node %q", e.NodeID)
}

// Kind returns the machine-readable error kind.
func (e *CyclicGraphError) Kind() string { return "cyclic_graph" }

// DanglingConnectionError is returned by Validate when an edge references an
// input or output key the endpoint's schema does not declare.
type DanglingConnectionError struct {
	NodeID string
	Key    string
	Input  bool
}

func (e *DanglingConnectionError) Error() string {
	side := "output"
	if e.Input {
		side = "input"
	}
	return fmt.Sprintf("edge references undeclared %s key %q on node %q", side, e.Key, e.NodeID)
}

// Kind returns the machine-readable error kind.
func (e *DanglingConnectionError) Kind() string { return "dangling_connection" }
