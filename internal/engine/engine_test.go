package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/flowgridgo/internal/builtin"
	"github.com/vk/flowgridgo/internal/converge"
	"github.com/vk/flowgridgo/internal/graph"
	"github.com/vk/flowgridgo/internal/params"
	"github.com/vk/flowgridgo/internal/registry"
	"github.com/vk/flowgridgo/internal/testutil"
)

func builtinRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	return testutil.NewRegistry(t, builtin.Module{})
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	g := graph.New()
	require.NoError(t, g.AddNode("left", "passthrough", map[string]cty.Value{"value": cty.NumberIntVal(2)}))
	require.NoError(t, g.AddNode("right", "passthrough", map[string]cty.Value{"value": cty.NumberIntVal(3)}))
	require.NoError(t, g.AddNode("sum", "add", nil))
	require.NoError(t, g.AddEdge("left", "value", "sum", "a"))
	require.NoError(t, g.AddEdge("right", "value", "sum", "b"))

	result, err := Run(context.Background(), g, reg, nil, Options{})
	require.NoError(t, err)

	require.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Failed())
	sum, _ := result.Results["sum"].Outputs["sum"].AsBigFloat().Float64()
	assert.Equal(t, 5.0, sum)
}

func TestRun_DeterministicAcrossPoolSizes(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	// Two independent branches feeding a merge node: the shape where
	// scheduling order could leak into results if outputs were not
	// isolated per node.
	buildGraph := func() *graph.Graph {
		g := graph.New()
		require.NoError(t, g.AddNode("left", "passthrough", map[string]cty.Value{"value": cty.NumberIntVal(2)}))
		require.NoError(t, g.AddNode("right", "passthrough", map[string]cty.Value{"value": cty.NumberIntVal(3)}))
		require.NoError(t, g.AddNode("sum", "add", nil))
		require.NoError(t, g.AddEdge("left", "value", "sum", "a"))
		require.NoError(t, g.AddEdge("right", "value", "sum", "b"))
		return g
	}

	runAt := func(poolSize int) *Result {
		result, err := Run(context.Background(), buildGraph(), reg, nil, Options{
			MaxConcurrentNodes: poolSize,
			WorkerPoolSize:     poolSize,
		})
		require.NoError(t, err)
		require.Empty(t, result.Failed())
		return result
	}

	serial := runAt(1)
	parallel := runAt(8)

	require.Len(t, parallel.Results, len(serial.Results))
	for id, sr := range serial.Results {
		pr, ok := parallel.Results[id]
		require.Truef(t, ok, "node %s missing at pool size 8", id)
		require.Lenf(t, pr.Outputs, len(sr.Outputs), "node %s", id)
		for key, sv := range sr.Outputs {
			pv, ok := pr.Outputs[key]
			require.Truef(t, ok, "node %s output %s", id, key)
			assert.Truef(t, sv.RawEquals(pv), "node %s output %s: %v vs %v", id, key, sv, pv)
		}
	}
}

func TestRun_ValidationFailureAbortsBeforeExecution(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	g := graph.New()
	require.NoError(t, g.AddNode("a", "passthrough", nil))
	require.NoError(t, g.AddNode("b", "passthrough", nil))
	require.NoError(t, g.AddEdge("a", "value", "b", "value"))
	require.NoError(t, g.AddEdge("b", "value", "a", "value"))

	result, err := Run(context.Background(), g, reg, nil, Options{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "validation")
}

func TestRun_StrictPreflightRejectsMissingRequired(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	g := graph.New()
	// add requires both operands; nothing supplies them.
	require.NoError(t, g.AddNode("sum", "add", nil))

	result, err := Run(context.Background(), g, reg, nil, Options{
		ParameterValidation: params.ModeStrict,
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "preflight")
}

func TestRun_OverridesWinOverConfig(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	g := graph.New()
	require.NoError(t, g.AddNode("p", "passthrough", map[string]cty.Value{"value": cty.NumberIntVal(1)}))

	overrides := map[string]map[string]cty.Value{
		"p": {"value": cty.NumberIntVal(99)},
	}
	result, err := Run(context.Background(), g, reg, overrides, Options{})
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(99), result.Results["p"].Outputs["value"])
}

func TestRun_DebugModeCollectsTrace(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	g := graph.New()
	require.NoError(t, g.AddNode("p", "passthrough", map[string]cty.Value{"value": cty.NumberIntVal(1)}))

	result, err := Run(context.Background(), g, reg, nil, Options{
		ParameterValidation: params.ModeDebug,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Trace)
	assert.Equal(t, "p", result.Trace[0].NodeID)
}

func TestRun_CycleWithCounterRunner(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	g := graph.New()
	require.NoError(t, g.AddNode("counter", "counter", nil))
	require.NoError(t, g.AddCycleEdge("counter", "count", "counter", "seed", graph.CycleSpec{
		MaxIterations: 20,
		Conditions:    []converge.Condition{converge.Threshold{Metric: "count", Op: converge.GE, Value: 5}},
	}))

	result, err := Run(context.Background(), g, reg, nil, Options{})
	require.NoError(t, err)

	res := result.Results["counter"]
	require.NoError(t, res.Err)
	assert.Equal(t, "CONVERGED", res.CycleStatus)
	assert.Equal(t, 5, res.Iterations)
	count, _ := res.Outputs["count"].AsBigFloat().Float64()
	assert.Equal(t, 5.0, count)
}

func TestRun_FailureSummarized(t *testing.T) {
	t.Parallel()
	reg := builtinRegistry(t)

	g := graph.New()
	require.NoError(t, g.AddNode("boom", "fail", map[string]cty.Value{"message": cty.StringVal("nope")}))
	require.NoError(t, g.AddNode("after", "passthrough", nil))
	require.NoError(t, g.AddEdge("boom", "never", "after", "value"))

	result, err := Run(context.Background(), g, reg, nil, Options{})
	require.NoError(t, err, "node failures do not fail the run call")

	assert.ElementsMatch(t, []string{"boom", "after"}, result.Failed())
	assert.Equal(t, "node_failure", result.Results["boom"].ErrKind)
	assert.Equal(t, "upstream_failure", result.Results["after"].ErrKind)
}
