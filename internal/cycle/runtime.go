package cycle

import (
	"context"
	"fmt"

	"github.com/vk/flowgridgo/internal/converge"
	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/plan"
	"github.com/vk/flowgridgo/internal/runner"
	"github.com/vk/flowgridgo/internal/safety"
	"github.com/zclconf/go-cty/cty"
)

// Status is the lifecycle state of one cycle instance.
type Status int

const (
	StatusInit Status = iota
	StatusRunning
	StatusConverged
	StatusExhausted
	StatusAborted
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusInit:
		return "INIT"
	case StatusRunning:
		return "RUNNING"
	case StatusConverged:
		return "CONVERGED"
	case StatusExhausted:
		return "EXHAUSTED"
	case StatusAborted:
		return "ABORTED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// BodyFunc executes one pass over the cycle body in dependency order and
// returns the per-node outputs of that pass. The scheduler supplies it; the
// runtime stays ignorant of how body nodes are dispatched.
type BodyFunc func(ctx context.Context, iteration int, scope runner.Scope, injected map[string]map[string]cty.Value) (map[string]map[string]cty.Value, error)

// Outcome is the terminal report of one cycle instance.
type Outcome struct {
	Status     Status
	Iterations int

	// Outputs holds the most recent per-node outputs at termination.
	Outputs map[string]map[string]cty.Value

	// Violation is set when Status is StatusAborted.
	Violation *safety.Violation

	// Satisfied names the condition that stopped a converged cycle.
	Satisfied converge.Condition
}

// Runtime drives one cycle instance to a terminal state.
type Runtime struct {
	cycleID string
	info    *plan.CycleInfo
	limits  safety.Limits
	body    BodyFunc
	status  Status
}

// NewRuntime creates a runtime in INIT for one condensed cycle region.
func NewRuntime(cycleID string, info *plan.CycleInfo, limits safety.Limits, body BodyFunc) *Runtime {
	return &Runtime{cycleID: cycleID, info: info, limits: limits, body: body, status: StatusInit}
}

// Status returns the runtime's current lifecycle state.
func (r *Runtime) Status() Status {
	return r.status
}

// Run iterates the cycle body until a terminal state is reached.
//
// Each iteration: execute the body in dependency order, bump the counter,
// consult the convergence engine, then the safety monitor. The first
// iteration consumes the cycle's external inputs; every later one consumes
// the prior iteration's outputs remapped through the back-edges, merged
// with persisted state entries.
//
// A non-nil error is returned only for node failures inside the body and
// for cancellation; EXHAUSTED and ABORTED are reported through the Outcome.
func (r *Runtime) Run(ctx context.Context, external map[string]map[string]cty.Value) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx).With("cycleID", r.cycleID)

	state := NewState()
	monitor := safety.NewMonitor(r.limits)
	monitor.Start()
	r.status = StatusRunning
	logger.Debug("Cycle entering RUNNING.", "maxIterations", r.info.MaxIterations, "conditions", len(r.info.Conditions))

	outcome := &Outcome{Outputs: external}
	injected := external

	for {
		// Cancellation is cooperative and checked at iteration boundaries;
		// a started iteration always completes.
		if err := ctx.Err(); err != nil {
			outcome.Status = r.status
			outcome.Iterations = state.Iteration()
			return outcome, err
		}

		outputs, err := r.body(ctx, state.Iteration()+1, state, injected)
		if err != nil {
			outcome.Status = r.status
			outcome.Iterations = state.Iteration()
			return outcome, err
		}
		iteration := state.advance()
		outcome.Outputs = outputs
		outcome.Iterations = iteration

		satisfied, err := converge.Any(r.info.Conditions, state)
		if err != nil {
			outcome.Status = r.status
			return outcome, err
		}
		if satisfied != nil {
			r.status = StatusConverged
			outcome.Status = StatusConverged
			outcome.Satisfied = satisfied
			logger.Info("Cycle converged.", "iterations", iteration, "condition", satisfied.Describe())
			return outcome, nil
		}

		if iteration >= r.info.MaxIterations {
			// Exhaustion is a normal outcome, not an error.
			r.status = StatusExhausted
			outcome.Status = StatusExhausted
			logger.Info("Cycle exhausted without convergence.", "iterations", iteration)
			return outcome, nil
		}

		if v := monitor.Check(iteration); v != nil {
			r.status = StatusAborted
			outcome.Status = StatusAborted
			outcome.Violation = v
			logger.Error("Cycle aborted by safety monitor.", "iterations", iteration, "violation", v.Error())
			return outcome, nil
		}

		injected = r.nextInputs(outputs, state)
	}
}

// nextInputs remaps the completed iteration's outputs through the cycle's
// back-edges and merges persisted state entries underneath them (back-edge
// values win on key collision).
func (r *Runtime) nextInputs(outputs map[string]map[string]cty.Value, state *State) map[string]map[string]cty.Value {
	next := make(map[string]map[string]cty.Value)

	persisted := state.PersistedValues()
	if len(persisted) > 0 {
		for _, be := range r.info.BackEdges {
			if next[be.Dst] == nil {
				next[be.Dst] = make(map[string]cty.Value)
			}
			for k, v := range persisted {
				next[be.Dst][k] = v
			}
		}
	}

	for _, be := range r.info.BackEdges {
		src, ok := outputs[be.Src]
		if !ok {
			continue
		}
		v, ok := src[be.SrcKey]
		if !ok {
			continue
		}
		if next[be.Dst] == nil {
			next[be.Dst] = make(map[string]cty.Value)
		}
		next[be.Dst][be.DstKey] = v
	}

	return next
}
