package builtin

import (
	"context"
	"errors"
	"time"

	"github.com/vk/flowgridgo/internal/runner"
	"github.com/vk/flowgridgo/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

// passthroughRunner forwards its input unchanged. Useful as a merge point
// and in tests.
type passthroughRunner struct{}

func (*passthroughRunner) Schema() schema.Schema {
	return schema.Schema{
		Params: map[string]schema.ParamSpec{
			"value": {Type: cty.DynamicPseudoType, Required: true, Description: "Value to forward."},
		},
		Outputs: map[string]schema.OutputSpec{
			"value": {Type: cty.DynamicPseudoType, Description: "The input, unchanged."},
		},
	}
}

func (*passthroughRunner) Run(_ context.Context, _ *runner.ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	return map[string]cty.Value{"value": inputs["value"]}, nil
}

// addRunner sums two numbers.
type addRunner struct{}

func (*addRunner) Schema() schema.Schema {
	return schema.Schema{
		Params: map[string]schema.ParamSpec{
			"a": {Type: cty.Number, Required: true},
			"b": {Type: cty.Number, Required: true},
		},
		Outputs: map[string]schema.OutputSpec{
			"sum": {Type: cty.Number},
		},
	}
}

func (*addRunner) Run(_ context.Context, _ *runner.ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	a, _ := inputs["a"].AsBigFloat().Float64()
	b, _ := inputs["b"].AsBigFloat().Float64()
	return map[string]cty.Value{"sum": cty.NumberFloatVal(a + b)}, nil
}

// counterRunner adds an increment to its seed each invocation. Inside a
// cycle it persists the running count and records it as a metric, which
// makes it the canonical cycle-body runner for threshold conditions.
type counterRunner struct{}

func (*counterRunner) Schema() schema.Schema {
	return schema.Schema{
		Params: map[string]schema.ParamSpec{
			"seed":      {Type: cty.Number, Default: cty.Zero, Description: "Starting value; the cycle back-edge usually feeds it."},
			"increment": {Type: cty.Number, Default: cty.NumberIntVal(1)},
			"metric":    {Type: cty.String, Default: cty.StringVal("count"), Description: "Metric name the count is recorded under."},
		},
		Outputs: map[string]schema.OutputSpec{
			"count": {Type: cty.Number},
		},
	}
}

func (*counterRunner) Run(_ context.Context, ec *runner.ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	seed, _ := inputs["seed"].AsBigFloat().Float64()
	inc, _ := inputs["increment"].AsBigFloat().Float64()
	count := seed + inc

	if ec.InCycle() {
		ec.Scope.Persist("count", cty.NumberFloatVal(count))
		ec.Scope.RecordMetric(inputs["metric"].AsString(), count)
	}
	return map[string]cty.Value{"count": cty.NumberFloatVal(count)}, nil
}

// delayRunner waits for a duration without holding a worker-pool slot: it
// is the bundled AsyncRunner, standing in for any I/O-bound node.
type delayRunner struct{}

func (*delayRunner) Schema() schema.Schema {
	return schema.Schema{
		Params: map[string]schema.ParamSpec{
			"duration": {Type: cty.String, Required: true, Description: "Go duration string, e.g. \"150ms\"."},
		},
		Outputs: map[string]schema.OutputSpec{
			"elapsed_ms": {Type: cty.Number},
		},
	}
}

func (r *delayRunner) Run(ctx context.Context, ec *runner.ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	ch, err := r.StartRun(ctx, ec, inputs)
	if err != nil {
		return nil, err
	}
	out := <-ch
	return out.Outputs, out.Err
}

// StartRun implements runner.AsyncRunner.
func (*delayRunner) StartRun(ctx context.Context, _ *runner.ExecContext, inputs map[string]cty.Value) (<-chan runner.Outcome, error) {
	d, err := time.ParseDuration(inputs["duration"].AsString())
	if err != nil {
		return nil, err
	}

	ch := make(chan runner.Outcome, 1)
	started := time.Now()
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			ch <- runner.Outcome{Outputs: map[string]cty.Value{
				"elapsed_ms": cty.NumberIntVal(time.Since(started).Milliseconds()),
			}}
		case <-ctx.Done():
			ch <- runner.Outcome{Err: ctx.Err()}
		}
	}()
	return ch, nil
}

// failRunner always errors. Used to exercise failure isolation paths.
type failRunner struct{}

func (*failRunner) Schema() schema.Schema {
	return schema.Schema{
		Params: map[string]schema.ParamSpec{
			"message": {Type: cty.String, Default: cty.StringVal("intentional failure")},
		},
		Outputs: map[string]schema.OutputSpec{
			"never": {Type: cty.DynamicPseudoType},
		},
	}
}

func (*failRunner) Run(_ context.Context, _ *runner.ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	return nil, errors.New(inputs["message"].AsString())
}
