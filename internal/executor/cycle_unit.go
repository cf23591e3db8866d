package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/cycle"
	"github.com/vk/flowgridgo/internal/plan"
	"github.com/vk/flowgridgo/internal/runner"
	"github.com/vk/flowgridgo/internal/safety"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// bodyNodeError identifies which body node failed an iteration, so the
// failure can be recorded against the right id.
type bodyNodeError struct {
	nodeID string
	err    error
}

func (e *bodyNodeError) Error() string {
	return fmt.Sprintf("cycle body node %q: %v", e.nodeID, e.err)
}

func (e *bodyNodeError) Unwrap() error { return e.err }

// runCycleUnit executes one condensed cycle region as a unit: it gathers
// the region's external inputs, hands iteration control to the cycle
// runtime, and records per-member results from the terminal outcome.
func (e *Executor) runCycleUnit(ctx context.Context, unit *plan.Unit) {
	info := unit.Cycle
	logger := ctxlog.FromContext(ctx).With("cycleID", unit.ID)

	members := make(map[string]bool, len(unit.NodeIDs))
	for _, id := range unit.NodeIDs {
		members[id] = true
	}

	// A failed producer feeding a required parameter of any member skips
	// the whole region, same as for a single node.
	for _, id := range unit.NodeIDs {
		for _, edge := range e.graph.EdgesInto(id) {
			if members[edge.Src] {
				continue
			}
			if res, ok := e.resultFor(edge.Src); ok && res.Err != nil && e.requiresInput(id, edge.DstKey) {
				logger.Warn("Skipping cycle due to upstream failure.", "upstream", edge.Src)
				for _, m := range unit.NodeIDs {
					e.record(m, &NodeResult{Err: &UpstreamFailureError{NodeID: m, Upstream: edge.Src}})
				}
				return
			}
		}
	}

	// External inputs: values crossing the region boundary. They feed the
	// first iteration and remain available to body nodes on later ones.
	external := make(map[string]map[string]cty.Value)
	for _, id := range unit.NodeIDs {
		for _, edge := range e.graph.EdgesInto(id) {
			if members[edge.Src] {
				continue
			}
			res, ok := e.resultFor(edge.Src)
			if !ok || res.Outputs == nil {
				continue
			}
			if v, ok := res.Outputs[edge.SrcKey]; ok {
				if external[id] == nil {
					external[id] = make(map[string]cty.Value)
				}
				external[id][edge.DstKey] = v
			}
		}
	}

	limits := safety.Limits{
		MaxIterations: info.MaxIterations,
		Timeout:       info.Timeout,
		MemoryGrowth:  info.MemoryGrowthLimit,
	}
	if limits.Timeout == 0 {
		limits.Timeout = e.opts.DefaultCycleTimeout
	}

	body := func(ctx context.Context, iteration int, scope runner.Scope, injected map[string]map[string]cty.Value) (map[string]map[string]cty.Value, error) {
		return e.runCycleBody(ctx, unit, iteration, scope, external, injected)
	}

	rt := cycle.NewRuntime(unit.ID, info, limits, body)
	outcome, err := rt.Run(ctx, external)

	if e.metrics != nil && outcome != nil {
		e.metrics.AddIterations(unit.ID, outcome.Iterations)
		e.metrics.ObserveCycleOutcome(outcome.Status.String())
	}

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		for _, id := range unit.NodeIDs {
			e.record(id, &NodeResult{Err: &CancelledError{NodeID: id}, CycleStatus: outcomeStatus(outcome), Iterations: outcomeIterations(outcome)})
		}
	case err != nil:
		// A node failure inside the body fails the region: the failing
		// node keeps its own error, siblings are upstream failures.
		var bodyErr *bodyNodeError
		failedID := unit.NodeIDs[0]
		failure := err
		if errors.As(err, &bodyErr) {
			failedID = bodyErr.nodeID
			failure = bodyErr.err
		}
		for _, id := range unit.NodeIDs {
			if id == failedID {
				e.record(id, &NodeResult{Err: failure, CycleStatus: outcomeStatus(outcome), Iterations: outcomeIterations(outcome)})
			} else {
				e.record(id, &NodeResult{Err: &UpstreamFailureError{NodeID: id, Upstream: failedID}, CycleStatus: outcomeStatus(outcome), Iterations: outcomeIterations(outcome)})
			}
		}
	case outcome.Status == cycle.StatusAborted:
		// The violation is surfaced against every member id; downstream
		// consumers of the region are then skipped as upstream failures.
		for _, id := range unit.NodeIDs {
			e.record(id, &NodeResult{
				Err:         outcome.Violation,
				CycleStatus: outcome.Status.String(),
				Iterations:  outcome.Iterations,
			})
		}
	default:
		// CONVERGED and EXHAUSTED are both normal outcomes; the final
		// outputs are the most recent per-node outputs.
		for _, id := range unit.NodeIDs {
			e.record(id, &NodeResult{
				Outputs:     outcome.Outputs[id],
				CycleStatus: outcome.Status.String(),
				Iterations:  outcome.Iterations,
			})
		}
	}
}

// runCycleBody executes one iteration pass over the region's internal
// waves. Intra-iteration outputs flow between body nodes the same way wave
// outputs flow in the outer plan.
func (e *Executor) runCycleBody(ctx context.Context, unit *plan.Unit, iteration int, scope runner.Scope, external, injected map[string]map[string]cty.Value) (map[string]map[string]cty.Value, error) {
	iter := &iterationOutputs{values: make(map[string]map[string]cty.Value, len(unit.NodeIDs))}

	members := make(map[string]bool, len(unit.NodeIDs))
	for _, id := range unit.NodeIDs {
		members[id] = true
	}

	for _, wave := range unit.Cycle.BodyWaves {
		if err := ctx.Err(); err != nil {
			return iter.snapshot(), err
		}

		var group errgroup.Group
		group.SetLimit(e.opts.MaxConcurrentNodes)
		for _, nodeID := range wave {
			nodeID := nodeID
			group.Go(func() error {
				edgeValues := e.bodyEdgeValues(nodeID, members, external, injected, iter)

				ec := &runner.ExecContext{
					RunID:     e.runID,
					NodeID:    nodeID,
					CycleID:   unit.ID,
					Iteration: iteration,
					Scope:     scope,
				}
				out, _, err := e.invoke(ctx, nodeID, ec, edgeValues)
				if err != nil {
					return &bodyNodeError{nodeID: nodeID, err: err}
				}
				iter.set(nodeID, out)
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return iter.snapshot(), err
		}
	}
	return iter.snapshot(), nil
}

// iterationOutputs collects the per-node outputs of one body pass. Sibling
// nodes in a body wave run concurrently, so writes are serialized.
type iterationOutputs struct {
	mu     sync.Mutex
	values map[string]map[string]cty.Value
}

func (o *iterationOutputs) set(nodeID string, out map[string]cty.Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[nodeID] = out
}

func (o *iterationOutputs) get(nodeID, key string) (cty.Value, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out, ok := o.values[nodeID]
	if !ok {
		return cty.NilVal, false
	}
	v, ok := out[key]
	return v, ok
}

func (o *iterationOutputs) snapshot() map[string]map[string]cty.Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.values
}

// bodyEdgeValues assembles a body node's edge-derived values for one
// iteration. Precedence among edge-like sources: intra-iteration upstream
// outputs, then injected back-edge values, then external inputs, then
// persisted state already merged into injected by the runtime.
func (e *Executor) bodyEdgeValues(nodeID string, members map[string]bool, external, injected map[string]map[string]cty.Value, iter *iterationOutputs) map[string]cty.Value {
	values := make(map[string]cty.Value)
	for k, v := range external[nodeID] {
		values[k] = v
	}
	for k, v := range injected[nodeID] {
		values[k] = v
	}
	for _, edge := range e.graph.EdgesInto(nodeID) {
		if !members[edge.Src] {
			continue
		}
		if v, ok := iter.get(edge.Src, edge.SrcKey); ok {
			values[edge.DstKey] = v
		}
	}
	return values
}

func outcomeStatus(o *cycle.Outcome) string {
	if o == nil {
		return ""
	}
	return o.Status.String()
}

func outcomeIterations(o *cycle.Outcome) int {
	if o == nil {
		return 0
	}
	return o.Iterations
}
