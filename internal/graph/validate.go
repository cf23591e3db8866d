package graph

import (
	"fmt"
)

// SchemaSource resolves a runner type token to its declared parameter
// schema. It is implemented by the registry; graph validation only needs
// this narrow view of it.
type SchemaSource interface {
	DeclaresInput(runnerType, key string) (bool, error)
	DeclaresOutput(runnerType, key string) (bool, error)
}

// Validate checks the structural invariants of the graph:
//
//   - the non-cycle projection must be acyclic (CyclicGraphError otherwise);
//   - every edge endpoint key must be declared by the endpoint's schema
//     (DanglingConnectionError otherwise).
//
// Validate must pass before the graph is handed to the planner; bypassing it
// turns definition bugs into execution-time surprises.
func (g *Graph) Validate(schemas SchemaSource) error {
	if err := g.checkAcyclic(); err != nil {
		return err
	}
	return g.checkDeclaredKeys(schemas)
}

// checkAcyclic runs a depth-first search over the non-cycle edges using the
// classic three-state coloring: permanent nodes are fully explored,
// temporary nodes are on the current recursion stack.
func (g *Graph) checkAcyclic() error {
	successors := make(map[string][]string, len(g.nodes))
	for _, e := range g.ForwardEdges() {
		successors[e.Src] = append(successors[e.Src], e.Dst)
	}

	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return &CyclicGraphError{NodeID: id}
		}
		temporary[id] = true
		for _, next := range successors[id] {
			if err := visit(next); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range g.NodeIDs() {
		if !permanent[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkDeclaredKeys verifies that every edge references declared output and
// input keys on its endpoints. Cycle edges are held to the same contract.
func (g *Graph) checkDeclaredKeys(schemas SchemaSource) error {
	for _, e := range g.edges {
		src := g.nodes[e.Src]
		ok, err := schemas.DeclaresOutput(src.Type, e.SrcKey)
		if err != nil {
			return fmt.Errorf("validating edge %s.%s -> %s.%s: %w", e.Src, e.SrcKey, e.Dst, e.DstKey, err)
		}
		if !ok {
			return &DanglingConnectionError{NodeID: e.Src, Key: e.SrcKey}
		}

		dst := g.nodes[e.Dst]
		ok, err = schemas.DeclaresInput(dst.Type, e.DstKey)
		if err != nil {
			return fmt.Errorf("validating edge %s.%s -> %s.%s: %w", e.Src, e.SrcKey, e.Dst, e.DstKey, err)
		}
		if !ok {
			return &DanglingConnectionError{NodeID: e.Dst, Key: e.DstKey, Input: true}
		}
	}
	return nil
}
