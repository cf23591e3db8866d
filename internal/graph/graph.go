package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/vk/flowgridgo/internal/converge"
	"github.com/zclconf/go-cty/cty"
)

// Node is a single unit of computation in the workflow. It is immutable
// once the graph is built.
type Node struct {
	// ID is the unique identifier of the node within its graph.
	ID string

	// Type is the capability token naming which registered runner to invoke.
	Type string

	// Config holds the static configuration supplied at graph-build time.
	// It is the lowest-precedence parameter source after declared defaults.
	Config map[string]cty.Value
}

// CycleSpec carries the bounds and stopping rules of a marked back-edge.
// Every cycle edge must specify MaxIterations; Timeout is optional and falls
// back to the engine's default cycle timeout.
type CycleSpec struct {
	MaxIterations int
	Timeout       time.Duration

	// MemoryGrowthLimit, when non-zero, bounds the per-iteration heap
	// growth (in bytes) the safety monitor tolerates before aborting.
	MemoryGrowthLimit uint64

	// Conditions are the convergence rules for the cycle. The set is a
	// disjunction: the first satisfied condition stops the cycle. See the
	// converge package documentation before assuming AND semantics.
	Conditions []converge.Condition
}

// Edge is a typed data link from one node's output key to another node's
// input key. A cycle edge is the only permitted kind of back-edge.
type Edge struct {
	Src    string
	SrcKey string
	Dst    string
	DstKey string

	// IsCycle marks this edge as an iteration back-edge. Cycle holds its
	// bounds and conditions; it is nil for ordinary edges.
	IsCycle bool
	Cycle   *CycleSpec
}

// Graph is the in-memory workflow model. It is not safe for concurrent
// mutation; build it fully, validate it, then treat it as read-only.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order, for deterministic iteration
	edges []Edge
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode adds a node with the given id, runner type, and static config.
// It fails with a DuplicateNodeError if the id is already taken.
func (g *Graph) AddNode(id, runnerType string, config map[string]cty.Value) error {
	if _, exists := g.nodes[id]; exists {
		return &DuplicateNodeError{NodeID: id}
	}
	if config == nil {
		config = map[string]cty.Value{}
	}
	g.nodes[id] = &Node{ID: id, Type: runnerType, Config: config}
	g.order = append(g.order, id)
	return nil
}

// AddEdge creates an ordinary (non-cycle) data edge. It fails with an
// UnknownNodeError if either endpoint is missing.
func (g *Graph) AddEdge(src, srcKey, dst, dstKey string) error {
	if err := g.checkEndpoints(src, dst); err != nil {
		return err
	}
	g.edges = append(g.edges, Edge{Src: src, SrcKey: srcKey, Dst: dst, DstKey: dstKey})
	return nil
}

// AddCycleEdge creates a marked back-edge carrying the cycle's bounds and
// convergence conditions. MaxIterations must be positive.
func (g *Graph) AddCycleEdge(src, srcKey, dst, dstKey string, spec CycleSpec) error {
	if err := g.checkEndpoints(src, dst); err != nil {
		return err
	}
	if spec.MaxIterations <= 0 {
		return fmt.Errorf("cycle edge %s -> %s: max_iterations must be positive, got %d", src, dst, spec.MaxIterations)
	}
	g.edges = append(g.edges, Edge{
		Src: src, SrcKey: srcKey, Dst: dst, DstKey: dstKey,
		IsCycle: true, Cycle: &spec,
	})
	return nil
}

func (g *Graph) checkEndpoints(src, dst string) error {
	if _, ok := g.nodes[src]; !ok {
		return &UnknownNodeError{NodeID: src}
	}
	if _, ok := g.nodes[dst]; !ok {
		return &UnknownNodeError{NodeID: dst}
	}
	return nil
}

// Node returns the node with the given id, if present.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// NodeIDs returns all node ids in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all edges, cycle edges included.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// ForwardEdges returns the acyclic projection of the graph: every edge that
// is not a marked back-edge.
func (g *Graph) ForwardEdges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if !e.IsCycle {
			edges = append(edges, e)
		}
	}
	return edges
}

// CycleEdges returns only the marked back-edges.
func (g *Graph) CycleEdges() []Edge {
	edges := make([]Edge, 0)
	for _, e := range g.edges {
		if e.IsCycle {
			edges = append(edges, e)
		}
	}
	return edges
}

// EdgesInto returns the non-cycle edges whose destination is the given node.
func (g *Graph) EdgesInto(id string) []Edge {
	edges := make([]Edge, 0)
	for _, e := range g.edges {
		if !e.IsCycle && e.Dst == id {
			edges = append(edges, e)
		}
	}
	return edges
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}
