package plan

import (
	"sort"
	"time"

	"github.com/vk/flowgridgo/internal/converge"
	"github.com/vk/flowgridgo/internal/graph"
)

// CycleInfo describes one condensed cycle region.
type CycleInfo struct {
	// Entry is the node the back-edges feed; it receives the cycle's
	// external inputs on the first iteration.
	Entry string

	// BackEdges are the marked edges that close this region. Their
	// remapping (source output key to destination input key) injects each
	// iteration's outputs into the next.
	BackEdges []graph.Edge

	// Bounds. When a region is closed by several back-edges, the tightest
	// bound of each kind wins.
	MaxIterations     int
	Timeout           time.Duration
	MemoryGrowthLimit uint64

	// Conditions is the disjunctive condition set collected from every
	// back-edge of the region.
	Conditions []converge.Condition

	// BodyWaves is the internal execution order of the region's members,
	// layered the same way the outer plan is.
	BodyWaves [][]string
}

// region is a working set of member nodes during condensation.
type region struct {
	members   map[string]bool
	backEdges []graph.Edge
}

// findRegions identifies the cycle regions closed by the graph's back-edges.
// The members of a back-edge src -> dst are every node on a forward path
// from dst (the entry) to src (the exit), inclusive. Regions that share a
// node are merged into one.
func findRegions(g *graph.Graph) []*region {
	forward := make(map[string][]string)
	reverse := make(map[string][]string)
	for _, e := range g.ForwardEdges() {
		forward[e.Src] = append(forward[e.Src], e.Dst)
		reverse[e.Dst] = append(reverse[e.Dst], e.Src)
	}

	var regions []*region
	for _, be := range g.CycleEdges() {
		fromEntry := reachable(be.Dst, forward)
		toExit := reachable(be.Src, reverse)

		members := make(map[string]bool)
		for id := range fromEntry {
			if toExit[id] {
				members[id] = true
			}
		}
		// A self-loop or a degenerate entry==exit region still includes
		// both endpoints.
		members[be.Dst] = true
		members[be.Src] = true

		regions = append(regions, &region{members: members, backEdges: []graph.Edge{be}})
	}

	return mergeOverlapping(regions)
}

// reachable returns the set of nodes reachable from start, start included.
func reachable(start string, next map[string][]string) map[string]bool {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range next[id] {
			if !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return seen
}

// mergeOverlapping unions regions that share any member node, so a node
// belongs to at most one condensed unit.
func mergeOverlapping(regions []*region) []*region {
	merged := make([]*region, 0, len(regions))
	for _, r := range regions {
		absorbed := false
		for _, m := range merged {
			if overlaps(m.members, r.members) {
				for id := range r.members {
					m.members[id] = true
				}
				m.backEdges = append(m.backEdges, r.backEdges...)
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, r)
		}
	}
	// Merging can create new overlaps between previously separate regions;
	// repeat until stable.
	if len(merged) < len(regions) {
		return mergeOverlapping(merged)
	}
	return merged
}

func overlaps(a, b map[string]bool) bool {
	for id := range b {
		if a[id] {
			return true
		}
	}
	return false
}

// buildCycleInfo folds a merged region into its final CycleInfo, taking the
// tightest bound of each kind across its back-edges.
func buildCycleInfo(g *graph.Graph, r *region) *CycleInfo {
	info := &CycleInfo{BackEdges: r.backEdges}

	entries := make([]string, 0, len(r.backEdges))
	for _, be := range r.backEdges {
		entries = append(entries, be.Dst)
		spec := be.Cycle
		if info.MaxIterations == 0 || spec.MaxIterations < info.MaxIterations {
			info.MaxIterations = spec.MaxIterations
		}
		if spec.Timeout > 0 && (info.Timeout == 0 || spec.Timeout < info.Timeout) {
			info.Timeout = spec.Timeout
		}
		if spec.MemoryGrowthLimit > 0 && (info.MemoryGrowthLimit == 0 || spec.MemoryGrowthLimit < info.MemoryGrowthLimit) {
			info.MemoryGrowthLimit = spec.MemoryGrowthLimit
		}
		info.Conditions = append(info.Conditions, spec.Conditions...)
	}
	sort.Strings(entries)
	info.Entry = entries[0]

	info.BodyWaves = layerMembers(g, r.members)
	return info
}

// layerMembers computes the internal waves of a region: Kahn layering over
// the forward edges whose endpoints are both members. Dependencies on nodes
// outside the region are satisfied before the cycle starts and do not count.
func layerMembers(g *graph.Graph, members map[string]bool) [][]string {
	inDegree := make(map[string]int, len(members))
	successors := make(map[string][]string)
	for id := range members {
		inDegree[id] = 0
	}
	for _, e := range g.ForwardEdges() {
		if members[e.Src] && members[e.Dst] {
			inDegree[e.Dst]++
			successors[e.Src] = append(successors[e.Src], e.Dst)
		}
	}

	var waves [][]string
	remaining := len(members)
	for remaining > 0 {
		var wave []string
		for id, deg := range inDegree {
			if deg == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			// Unreachable for a validated graph: members form a DAG on
			// forward edges.
			break
		}
		sort.Strings(wave)
		for _, id := range wave {
			delete(inDegree, id)
			for _, next := range successors[id] {
				if _, ok := inDegree[next]; ok {
					inDegree[next]--
				}
			}
		}
		waves = append(waves, wave)
		remaining -= len(wave)
	}
	return waves
}
