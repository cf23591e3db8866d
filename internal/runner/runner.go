// Package runner defines the execution contract every node implementation
// satisfies: a declared parameter schema, queryable before execution, and an
// entry point taking a resolved input map. The engine treats runners as
// opaque; it neither knows nor cares what a runner computes.
package runner

import (
	"context"

	"github.com/vk/flowgridgo/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

// ExecContext carries per-invocation execution context into a runner. The
// engine passes it explicitly on every call; runners must not rely on any
// ambient or global lookup for this information.
type ExecContext struct {
	// RunID identifies the top-level execution this invocation belongs to.
	RunID string

	// NodeID is the graph id of the node being invoked.
	NodeID string

	// CycleID names the enclosing cycle instance, or "" outside cycles.
	CycleID string

	// Iteration is the 1-based iteration number inside a cycle, or 0
	// outside cycles.
	Iteration int

	// Scope gives cycle-body runners access to the per-cycle persisted
	// state and metric histories. It is nil outside cycles.
	Scope Scope
}

// InCycle reports whether this invocation happens inside a cycle body.
func (ec *ExecContext) InCycle() bool {
	return ec.CycleID != ""
}

// Scope is the per-cycle-instance state surface exposed to runners. The
// store behind it is owned exclusively by one cycle runtime and discarded
// when the cycle terminates.
type Scope interface {
	// Persist stores a value that survives into subsequent iterations.
	Persist(key string, value cty.Value)

	// Value returns a previously persisted value.
	Value(key string) (cty.Value, bool)

	// RecordMetric appends a value to the named bounded history window,
	// making it visible to convergence conditions.
	RecordMetric(name string, value float64)
}

// Runner is a synchronous node implementation. Synchronous runners execute
// on the engine's bounded worker pool so they cannot starve the scheduler's
// control loop.
type Runner interface {
	// Schema returns the declared parameter contract. It must be cheap and
	// side-effect free; the engine memoizes it per runner type.
	Schema() schema.Schema

	// Run executes the node with fully resolved inputs and returns its
	// outputs, or a typed error. The context carries cancellation and the
	// run logger.
	Run(ctx context.Context, ec *ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error)
}

// Outcome is the completion record delivered by an asynchronous runner.
type Outcome struct {
	Outputs map[string]cty.Value
	Err     error
}

// AsyncRunner is the optional non-blocking variant of the entry point. The
// scheduler awaits the returned channel without consuming a worker-pool
// slot, so an I/O-bound runner does not block concurrent siblings.
type AsyncRunner interface {
	Runner

	// StartRun begins execution and returns a channel that delivers
	// exactly one Outcome. Implementations must honor ctx cancellation.
	StartRun(ctx context.Context, ec *ExecContext, inputs map[string]cty.Value) (<-chan Outcome, error)
}
