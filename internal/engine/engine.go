package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/executor"
	"github.com/vk/flowgridgo/internal/graph"
	"github.com/vk/flowgridgo/internal/metrics"
	"github.com/vk/flowgridgo/internal/params"
	"github.com/vk/flowgridgo/internal/plan"
	"github.com/vk/flowgridgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Options is the per-run configuration object.
type Options struct {
	// MaxConcurrentNodes bounds intra-wave dispatch concurrency.
	MaxConcurrentNodes int

	// ParameterValidation selects the resolver mode: off, warn, strict,
	// or debug.
	ParameterValidation params.Mode

	// WorkerPoolSize bounds the pool executing synchronous runners.
	WorkerPoolSize int

	// DefaultCycleTimeout applies to cycles without an explicit timeout.
	DefaultCycleTimeout time.Duration

	// Metrics, when non-nil, receives Prometheus observations for the run.
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentNodes <= 0 {
		o.MaxConcurrentNodes = 8
	}
	if o.WorkerPoolSize <= 0 {
		o.WorkerPoolSize = o.MaxConcurrentNodes
	}
	if o.DefaultCycleTimeout <= 0 {
		o.DefaultCycleTimeout = 5 * time.Minute
	}
	return o
}

// NodeResult is the per-node entry of a Result: an output map or an error,
// never both, plus timing and cycle outcome detail.
type NodeResult struct {
	Outputs map[string]cty.Value
	Err     error

	// ErrKind is the machine-readable kind of Err, or "".
	ErrKind string

	Duration time.Duration

	// CycleStatus and Iterations are populated for nodes that executed
	// inside a cycle region (CONVERGED, EXHAUSTED, or ABORTED).
	CycleStatus string
	Iterations  int
}

// Result aggregates one top-level execution. Immutable after creation.
type Result struct {
	RunID         string
	Results       map[string]NodeResult
	TotalDuration time.Duration

	// Trace holds the parameter resolution decisions when the run used
	// debug validation mode.
	Trace []params.TraceEntry
}

// Failed returns the ids of nodes that ended in error, sorted by id order
// of the result map iteration left to the caller.
func (r *Result) Failed() []string {
	var failed []string
	for id, nr := range r.Results {
		if nr.Err != nil {
			failed = append(failed, id)
		}
	}
	return failed
}

// Run executes a built graph. Overrides are runtime parameter values keyed
// by node id, the highest-precedence source during resolution.
//
// The returned error is non-nil only for build-time problems: graph
// validation failures and strict-mode parameter preflight. Everything that
// happens after the first node is dispatched lives in the Result.
func Run(ctx context.Context, g *graph.Graph, reg *registry.Registry, overrides map[string]map[string]cty.Value, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("runID", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	if err := g.Validate(reg); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	resolver := params.NewResolver(reg, opts.ParameterValidation)
	if err := resolver.Preflight(ctx, g, overrides); err != nil {
		return nil, fmt.Errorf("parameter preflight failed: %w", err)
	}

	p, err := plan.Build(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	exec := executor.New(g, p, reg, resolver, overrides, runID, opts.Metrics, executor.Options{
		MaxConcurrentNodes:  opts.MaxConcurrentNodes,
		WorkerPoolSize:      opts.WorkerPoolSize,
		DefaultCycleTimeout: opts.DefaultCycleTimeout,
	})

	started := time.Now()
	raw := exec.Run(ctx)
	total := time.Since(started)

	result := &Result{
		RunID:         runID,
		Results:       make(map[string]NodeResult, len(raw)),
		TotalDuration: total,
		Trace:         resolver.Trace(),
	}
	for id, nr := range raw {
		result.Results[id] = NodeResult{
			Outputs:     nr.Outputs,
			Err:         nr.Err,
			ErrKind:     executor.ErrKind(nr.Err),
			Duration:    nr.Duration,
			CycleStatus: nr.CycleStatus,
			Iterations:  nr.Iterations,
		}
	}

	logger.Info("Run finished.", "nodes", len(result.Results), "failed", len(result.Failed()), "duration", total)
	return result, nil
}
