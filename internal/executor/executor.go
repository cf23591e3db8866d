package executor

import (
	"context"
	"sync"
	"time"

	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/graph"
	"github.com/vk/flowgridgo/internal/metrics"
	"github.com/vk/flowgridgo/internal/params"
	"github.com/vk/flowgridgo/internal/plan"
	"github.com/vk/flowgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options bounds the executor's concurrency and cycle defaults.
type Options struct {
	// MaxConcurrentNodes caps how many units of one wave are in flight at
	// once.
	MaxConcurrentNodes int

	// WorkerPoolSize bounds the pool slots available to synchronous
	// runners, so blocking work cannot starve the scheduler's own loop.
	WorkerPoolSize int

	// DefaultCycleTimeout applies to cycles whose spec carries no timeout.
	DefaultCycleTimeout time.Duration
}

// NodeResult is the per-node record accumulated during a run.
type NodeResult struct {
	Outputs  map[string]cty.Value
	Err      error
	Duration time.Duration

	// CycleStatus and Iterations are set for nodes executed inside a
	// cycle region: the terminal state name and the completed iteration
	// count.
	CycleStatus string
	Iterations  int
}

// Executor runs one execution plan to completion. It is single-use: one
// executor per run.
type Executor struct {
	graph     *graph.Graph
	plan      *plan.Plan
	registry  *registry.Registry
	resolver  *params.Resolver
	overrides map[string]map[string]cty.Value
	opts      Options
	runID     string
	metrics   *metrics.Metrics

	pool *semaphore.Weighted

	// mu serializes result appends: the accumulator is the only shared
	// cross-cutting structure and follows a single-writer discipline.
	mu      sync.Mutex
	results map[string]*NodeResult
}

// New creates an executor for one run. metrics may be nil.
func New(g *graph.Graph, p *plan.Plan, reg *registry.Registry, res *params.Resolver, overrides map[string]map[string]cty.Value, runID string, m *metrics.Metrics, opts Options) *Executor {
	if opts.MaxConcurrentNodes <= 0 {
		opts.MaxConcurrentNodes = 8
	}
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = opts.MaxConcurrentNodes
	}
	if overrides == nil {
		overrides = map[string]map[string]cty.Value{}
	}
	return &Executor{
		graph:     g,
		plan:      p,
		registry:  reg,
		resolver:  res,
		overrides: overrides,
		opts:      opts,
		runID:     runID,
		metrics:   m,
		pool:      semaphore.NewWeighted(int64(opts.WorkerPoolSize)),
		results:   make(map[string]*NodeResult),
	}
}

// Run executes the plan's waves in sequence. Within a wave, units are
// dispatched concurrently up to MaxConcurrentNodes. The caller's
// cancellation signal is checked at each wave boundary: in-flight units
// complete, everything not yet dispatched is recorded as cancelled.
//
// Run itself never returns an error for node failures; they live in the
// per-node results.
func (e *Executor) Run(ctx context.Context) map[string]*NodeResult {
	logger := ctxlog.FromContext(ctx)

	for waveIdx, wave := range e.plan.Waves {
		if ctx.Err() != nil {
			logger.Warn("Cancellation observed at wave boundary.", "wave", waveIdx)
			break
		}
		logger.Debug("Dispatching wave.", "wave", waveIdx, "units", len(wave))

		var group errgroup.Group
		group.SetLimit(e.opts.MaxConcurrentNodes)
		for _, unit := range wave {
			unit := unit
			group.Go(func() error {
				if unit.IsCycle() {
					e.runCycleUnit(ctx, unit)
				} else {
					e.runPlainNode(ctx, unit.NodeIDs[0])
				}
				return nil
			})
		}
		// Unit errors are recorded per node, never propagated through the
		// group; Wait only synchronizes the wave.
		_ = group.Wait()
	}

	e.markRemainingCancelled(ctx)
	return e.results
}

// record appends one completed node's result. One append per node,
// serialized.
func (e *Executor) record(nodeID string, r *NodeResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[nodeID] = r
}

// resultFor returns the recorded result for a node, if any. Waves run in
// sequence, so by the time a consumer asks, every producer has either a
// result or never ran.
func (e *Executor) resultFor(nodeID string) (*NodeResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.results[nodeID]
	return r, ok
}

// markRemainingCancelled records a cancelled outcome for every node that
// never got dispatched. No-op when the run completed normally.
func (e *Executor) markRemainingCancelled(ctx context.Context) {
	if ctx.Err() == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.graph.NodeIDs() {
		if _, ok := e.results[id]; !ok {
			e.results[id] = &NodeResult{Err: &CancelledError{NodeID: id}}
		}
	}
}

// failedUpstream returns the id of a failed producer feeding one of the
// node's required parameters, or "" when the node can still run. A failed
// producer feeding an optional parameter does not block the node; the
// parameter falls back to its default during resolution.
func (e *Executor) failedUpstream(nodeID string) string {
	for _, edge := range e.graph.EdgesInto(nodeID) {
		if res, ok := e.resultFor(edge.Src); ok && res.Err != nil && e.requiresInput(nodeID, edge.DstKey) {
			return edge.Src
		}
	}
	return ""
}

// requiresInput reports whether key is a required parameter of the node's
// runner. Unknown nodes, types, or keys count as required, so lookup
// problems fail closed into the upstream-failure path.
func (e *Executor) requiresInput(nodeID, key string) bool {
	node, ok := e.graph.Node(nodeID)
	if !ok {
		return true
	}
	s, err := e.registry.Schema(node.Type)
	if err != nil {
		return true
	}
	spec, ok := s.Params[key]
	if !ok {
		return true
	}
	return spec.Required
}

// edgeValues collects the values produced by the node's upstream edges,
// keyed by destination input key.
func (e *Executor) edgeValues(nodeID string) map[string]cty.Value {
	values := make(map[string]cty.Value)
	for _, edge := range e.graph.EdgesInto(nodeID) {
		res, ok := e.resultFor(edge.Src)
		if !ok || res.Outputs == nil {
			continue
		}
		if v, ok := res.Outputs[edge.SrcKey]; ok {
			values[edge.DstKey] = v
		}
	}
	return values
}
