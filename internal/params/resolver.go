package params

import (
	"context"
	"sync"

	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/graph"
	"github.com/vk/flowgridgo/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Source names where a resolved value came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceEdge     Source = "edge"
	SourceConfig   Source = "config"
	SourceDefault  Source = "default"
)

// TraceEntry records one resolution decision in debug mode.
type TraceEntry struct {
	NodeID string
	Param  string
	Source Source
	Value  string
}

// SchemaSource resolves a runner type to its declared schema. Implemented
// by the registry, which memoizes lookups.
type SchemaSource interface {
	Schema(runnerType string) (schema.Schema, error)
}

// Resolver produces validated per-node input maps.
type Resolver struct {
	schemas SchemaSource
	mode    Mode

	mu    sync.Mutex
	trace []TraceEntry
}

// NewResolver creates a resolver with the given validation mode.
func NewResolver(schemas SchemaSource, mode Mode) *Resolver {
	return &Resolver{schemas: schemas, mode: mode}
}

// Mode returns the resolver's validation mode.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve merges the three parameter sources for one node and returns a
// fully populated input map. Precedence: override > edge > config > default.
//
// In strict mode a missing required parameter or a type mismatch is an
// error. In warn and debug modes problems are logged and resolution
// continues; in off mode nothing is checked.
func (r *Resolver) Resolve(ctx context.Context, node *graph.Node, edgeValues, overrides map[string]cty.Value) (map[string]cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("nodeID", node.ID)

	s, err := r.schemas.Schema(node.Type)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]cty.Value, len(s.Params))
	for _, name := range s.ParamNames() {
		spec := s.Params[name]

		value, source, found := pick(name, spec, edgeValues, overrides, node.Config)
		if !found {
			if spec.Required && r.mode != ModeOff {
				missing := &MissingRequiredParameterError{NodeID: node.ID, Param: name}
				if r.mode == ModeStrict {
					return nil, missing
				}
				logger.Warn("Required parameter unresolved.", "param", name, "error", missing)
			}
			continue
		}

		if r.mode != ModeOff {
			converted, convErr := convert.Convert(value, spec.Type)
			if convErr != nil {
				typeErr := &ParameterTypeError{
					NodeID:   node.ID,
					Param:    name,
					Expected: spec.Type.FriendlyName(),
					Actual:   value.Type().FriendlyName(),
				}
				if r.mode == ModeStrict {
					return nil, typeErr
				}
				logger.Warn("Parameter type mismatch.", "param", name, "error", typeErr)
			} else {
				value = converted
			}
		}

		inputs[name] = value
		if r.mode == ModeDebug {
			r.record(TraceEntry{NodeID: node.ID, Param: name, Source: source, Value: value.GoString()})
		}
	}

	return inputs, nil
}

// pick selects the highest-precedence source holding a value for the param.
func pick(name string, spec schema.ParamSpec, edgeValues, overrides, config map[string]cty.Value) (cty.Value, Source, bool) {
	if v, ok := overrides[name]; ok {
		return v, SourceOverride, true
	}
	if v, ok := edgeValues[name]; ok {
		return v, SourceEdge, true
	}
	if v, ok := config[name]; ok {
		return v, SourceConfig, true
	}
	if spec.HasDefault() {
		return spec.Default, SourceDefault, true
	}
	return cty.NilVal, "", false
}

// Preflight checks, before any node executes, that every required parameter
// of every node is satisfiable by at least one source. Edge-supplied values
// do not exist yet at this point, so an incoming edge targeting the
// parameter counts as a source. Static config and overrides are also
// type-checked here.
//
// In strict mode the first problem is returned as an error; in warn and
// debug modes problems are logged. Off mode skips the pass entirely.
func (r *Resolver) Preflight(ctx context.Context, g *graph.Graph, overrides map[string]map[string]cty.Value) error {
	if r.mode == ModeOff {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	for _, node := range g.Nodes() {
		s, err := r.schemas.Schema(node.Type)
		if err != nil {
			return err
		}

		edgeKeys := make(map[string]bool)
		for _, e := range g.EdgesInto(node.ID) {
			edgeKeys[e.DstKey] = true
		}
		// A back-edge feeds its destination from the second iteration on,
		// and the cycle's external inputs cover the first; treat it as a
		// satisfiable source.
		for _, e := range g.CycleEdges() {
			if e.Dst == node.ID {
				edgeKeys[e.DstKey] = true
			}
		}

		nodeOverrides := overrides[node.ID]
		for _, name := range s.ParamNames() {
			spec := s.Params[name]
			if err := r.preflightParam(node, name, spec, edgeKeys, nodeOverrides); err != nil {
				if r.mode == ModeStrict {
					return err
				}
				logger.Warn("Parameter preflight problem.", "nodeID", node.ID, "param", name, "error", err)
			}
		}
	}
	return nil
}

func (r *Resolver) preflightParam(node *graph.Node, name string, spec schema.ParamSpec, edgeKeys map[string]bool, overrides map[string]cty.Value) error {
	if v, ok := overrides[name]; ok {
		return r.checkType(node.ID, name, spec, v)
	}
	if edgeKeys[name] {
		return nil // value arrives at execution time; typed then
	}
	if v, ok := node.Config[name]; ok {
		return r.checkType(node.ID, name, spec, v)
	}
	if spec.HasDefault() {
		return nil
	}
	if spec.Required {
		return &MissingRequiredParameterError{NodeID: node.ID, Param: name}
	}
	return nil
}

func (r *Resolver) checkType(nodeID, name string, spec schema.ParamSpec, v cty.Value) error {
	if _, err := convert.Convert(v, spec.Type); err != nil {
		return &ParameterTypeError{
			NodeID:   nodeID,
			Param:    name,
			Expected: spec.Type.FriendlyName(),
			Actual:   v.Type().FriendlyName(),
		}
	}
	return nil
}

func (r *Resolver) record(entry TraceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, entry)
}

// Trace returns a copy of the resolution decisions recorded so far. Only
// debug mode records anything.
func (r *Resolver) Trace() []TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEntry, len(r.trace))
	copy(out, r.trace)
	return out
}
