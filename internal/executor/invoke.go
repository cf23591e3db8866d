package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/runner"
	"github.com/zclconf/go-cty/cty"
)

// runPlainNode resolves, invokes, and records a single non-cycle node.
func (e *Executor) runPlainNode(ctx context.Context, nodeID string) {
	logger := ctxlog.FromContext(ctx).With("nodeID", nodeID)

	if upstream := e.failedUpstream(nodeID); upstream != "" {
		logger.Warn("Skipping node due to upstream failure.", "upstream", upstream)
		e.record(nodeID, &NodeResult{Err: &UpstreamFailureError{NodeID: nodeID, Upstream: upstream}})
		return
	}

	ec := &runner.ExecContext{RunID: e.runID, NodeID: nodeID}
	outputs, d, err := e.invoke(ctx, nodeID, ec, e.edgeValues(nodeID))
	if err != nil {
		logger.Error("Node execution failed.", "error", err)
	} else {
		logger.Debug("Node execution succeeded.", "duration", d)
	}
	e.record(nodeID, &NodeResult{Outputs: outputs, Err: err, Duration: d})
}

// invoke resolves the node's inputs and calls its runner. Synchronous
// runners hold a worker-pool slot for the duration; asynchronous runners
// are awaited without one, so their I/O never starves the pool.
func (e *Executor) invoke(ctx context.Context, nodeID string, ec *runner.ExecContext, edgeValues map[string]cty.Value) (map[string]cty.Value, time.Duration, error) {
	node, ok := e.graph.Node(nodeID)
	if !ok {
		return nil, 0, fmt.Errorf("node %q missing from graph", nodeID)
	}

	inputs, err := e.resolver.Resolve(ctx, node, edgeValues, e.overrides[nodeID])
	if err != nil {
		return nil, 0, err
	}

	inst, err := e.registry.Instantiate(node.Type)
	if err != nil {
		return nil, 0, err
	}

	started := time.Now()
	var outputs map[string]cty.Value

	if async, ok := inst.(runner.AsyncRunner); ok {
		ch, startErr := async.StartRun(ctx, ec, inputs)
		if startErr != nil {
			err = startErr
		} else {
			// In-flight work is allowed to complete; the runner itself
			// honors ctx, so awaiting the outcome cannot hang past it.
			out := <-ch
			outputs, err = out.Outputs, out.Err
		}
	} else {
		if acqErr := e.pool.Acquire(ctx, 1); acqErr != nil {
			return nil, time.Since(started), &CancelledError{NodeID: nodeID}
		}
		outputs, err = inst.Run(ctx, ec, inputs)
		e.pool.Release(1)
	}

	d := time.Since(started)
	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.ObserveNode(node.Type, status, d)
	}
	return outputs, d, err
}
