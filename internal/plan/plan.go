package plan

import (
	"context"
	"sort"

	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/graph"
)

// Unit is one schedulable entry in a wave: either a single node or a
// condensed cycle region executed as a whole.
type Unit struct {
	// ID is the node id for plain units, or "cycle.<entry>" for regions.
	ID string

	// NodeIDs lists the member node ids, sorted. A plain unit has one.
	NodeIDs []string

	// Cycle is non-nil for condensed cycle regions.
	Cycle *CycleInfo
}

// IsCycle reports whether the unit is a condensed cycle region.
func (u *Unit) IsCycle() bool {
	return u.Cycle != nil
}

// Plan is the immutable execution plan: waves of units, computed once per
// graph build.
type Plan struct {
	Waves [][]*Unit

	unitOf map[string]*Unit
	waveOf map[string]int
}

// UnitFor returns the unit containing the given node id.
func (p *Plan) UnitFor(nodeID string) (*Unit, bool) {
	u, ok := p.unitOf[nodeID]
	return u, ok
}

// WaveIndex returns the wave a node was assigned to.
func (p *Plan) WaveIndex(nodeID string) (int, bool) {
	w, ok := p.waveOf[nodeID]
	return w, ok
}

// Build computes the execution plan for a validated graph: condense cycle
// regions into units, then layer the unit graph with Kahn's algorithm,
// collecting every unit with zero remaining in-degree into the next wave.
//
// A CyclicGraphError here means validation was bypassed; it cannot occur
// for a graph that passed Validate.
func Build(ctx context.Context, g *graph.Graph) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	regions := findRegions(g)
	unitOf := make(map[string]*Unit, g.Size())
	var units []*Unit

	for _, r := range regions {
		info := buildCycleInfo(g, r)
		u := &Unit{ID: "cycle." + info.Entry, Cycle: info}
		for id := range r.members {
			u.NodeIDs = append(u.NodeIDs, id)
		}
		sort.Strings(u.NodeIDs)
		for _, id := range u.NodeIDs {
			unitOf[id] = u
		}
		units = append(units, u)
	}
	for _, id := range g.NodeIDs() {
		if _, ok := unitOf[id]; ok {
			continue
		}
		u := &Unit{ID: id, NodeIDs: []string{id}}
		unitOf[id] = u
		units = append(units, u)
	}
	logger.Debug("Condensed graph into units.", "units", len(units), "cycles", len(regions))

	// Unit-level dependency counts from forward edges crossing unit
	// boundaries. Duplicate edges between the same unit pair count once.
	inDegree := make(map[*Unit]int, len(units))
	successors := make(map[*Unit]map[*Unit]bool)
	for _, u := range units {
		inDegree[u] = 0
	}
	for _, e := range g.ForwardEdges() {
		from, to := unitOf[e.Src], unitOf[e.Dst]
		if from == to {
			continue
		}
		if successors[from] == nil {
			successors[from] = make(map[*Unit]bool)
		}
		if !successors[from][to] {
			successors[from][to] = true
			inDegree[to]++
		}
	}

	p := &Plan{
		unitOf: make(map[string]*Unit, g.Size()),
		waveOf: make(map[string]int, g.Size()),
	}
	assigned := 0
	for assigned < len(units) {
		var wave []*Unit
		for _, u := range units {
			if deg, pending := inDegree[u]; pending && deg == 0 {
				wave = append(wave, u)
			}
		}
		if len(wave) == 0 {
			return nil, &graph.CyclicGraphError{NodeID: firstPending(inDegree)}
		}
		sort.Slice(wave, func(i, j int) bool { return wave[i].ID < wave[j].ID })

		waveIdx := len(p.Waves)
		for _, u := range wave {
			delete(inDegree, u)
			for next := range successors[u] {
				if _, pending := inDegree[next]; pending {
					inDegree[next]--
				}
			}
			for _, id := range u.NodeIDs {
				p.unitOf[id] = u
				p.waveOf[id] = waveIdx
			}
		}
		p.Waves = append(p.Waves, wave)
		assigned += len(wave)
	}

	logger.Debug("Execution plan built.", "waves", len(p.Waves))
	return p, nil
}

func firstPending(inDegree map[*Unit]int) string {
	var ids []string
	for u := range inDegree {
		ids = append(ids, u.NodeIDs...)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
