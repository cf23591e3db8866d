package params

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/flowgridgo/internal/graph"
	"github.com/vk/flowgridgo/internal/schema"
)

// staticSchemas serves one schema for every runner type.
type staticSchemas struct {
	s schema.Schema
}

func (ss staticSchemas) Schema(runnerType string) (schema.Schema, error) {
	return ss.s, nil
}

func testSchema() schema.Schema {
	return schema.Schema{
		Params: map[string]schema.ParamSpec{
			"value": {Type: cty.Number, Default: cty.NumberIntVal(7)},
			"name":  {Type: cty.String, Required: true},
		},
		Outputs: map[string]schema.OutputSpec{
			"value": {Type: cty.Number},
		},
	}
}

func nodeWithConfig(t *testing.T, config map[string]cty.Value) *graph.Node {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode("n", "test", config))
	node, ok := g.Node("n")
	require.True(t, ok)
	return node
}

func TestResolve_Precedence(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeStrict)
	node := nodeWithConfig(t, map[string]cty.Value{
		"value": cty.NumberIntVal(1),
		"name":  cty.StringVal("from-config"),
	})

	// Config only.
	inputs, err := r.Resolve(context.Background(), node, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(1), inputs["value"])

	// Edge beats config.
	inputs, err = r.Resolve(context.Background(), node,
		map[string]cty.Value{"value": cty.NumberIntVal(2)}, nil)
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(2), inputs["value"])

	// Override beats edge.
	inputs, err = r.Resolve(context.Background(), node,
		map[string]cty.Value{"value": cty.NumberIntVal(2)},
		map[string]cty.Value{"value": cty.NumberIntVal(3)})
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(3), inputs["value"])
}

func TestResolve_DefaultFillsAbsentParam(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeStrict)
	node := nodeWithConfig(t, map[string]cty.Value{"name": cty.StringVal("x")})

	inputs, err := r.Resolve(context.Background(), node, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(7), inputs["value"])
}

func TestResolve_StrictMissingRequired(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeStrict)
	node := nodeWithConfig(t, nil)

	_, err := r.Resolve(context.Background(), node, nil, nil)

	var missing *MissingRequiredParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "name", missing.Param)
	assert.Equal(t, "missing_required_parameter", missing.Kind())
}

func TestResolve_StrictTypeMismatch(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeStrict)
	node := nodeWithConfig(t, map[string]cty.Value{
		"name":  cty.StringVal("x"),
		"value": cty.ListVal([]cty.Value{cty.NumberIntVal(1)}),
	})

	_, err := r.Resolve(context.Background(), node, nil, nil)

	var typeErr *ParameterTypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "parameter_type", typeErr.Kind())
}

func TestResolve_StrictConvertsCompatibleTypes(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeStrict)
	node := nodeWithConfig(t, map[string]cty.Value{
		"name":  cty.StringVal("x"),
		"value": cty.StringVal("42"),
	})

	inputs, err := r.Resolve(context.Background(), node, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, cty.NumberIntVal(42), inputs["value"])
}

func TestResolve_WarnModeToleratesProblems(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeWarn)
	node := nodeWithConfig(t, nil)

	_, err := r.Resolve(context.Background(), node, nil, nil)
	require.NoError(t, err)
}

func TestResolve_OffModeSkipsChecks(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeOff)
	node := nodeWithConfig(t, map[string]cty.Value{
		"value": cty.ListVal([]cty.Value{cty.NumberIntVal(1)}),
	})

	_, err := r.Resolve(context.Background(), node, nil, nil)
	require.NoError(t, err)
}

func TestResolve_DebugRecordsTrace(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeDebug)
	node := nodeWithConfig(t, map[string]cty.Value{"name": cty.StringVal("x")})

	_, err := r.Resolve(context.Background(), node,
		map[string]cty.Value{"value": cty.NumberIntVal(5)}, nil)
	require.NoError(t, err)

	trace := r.Trace()
	require.NotEmpty(t, trace)

	sources := map[string]Source{}
	for _, entry := range trace {
		sources[entry.Param] = entry.Source
	}
	assert.Equal(t, SourceEdge, sources["value"])
	assert.Equal(t, SourceConfig, sources["name"])
}

func TestPreflight_EdgeCountsAsSource(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeStrict)

	g := graph.New()
	require.NoError(t, g.AddNode("src", "test", map[string]cty.Value{"name": cty.StringVal("s")}))
	require.NoError(t, g.AddNode("dst", "test", nil))
	require.NoError(t, g.AddEdge("src", "value", "dst", "name"))

	// "name" on dst is required but fed by an edge, so preflight passes.
	require.NoError(t, r.Preflight(context.Background(), g, nil))
}

func TestPreflight_ReportsUnsatisfiableRequired(t *testing.T) {
	t.Parallel()
	r := NewResolver(staticSchemas{testSchema()}, ModeStrict)

	g := graph.New()
	require.NoError(t, g.AddNode("lonely", "test", nil))

	err := r.Preflight(context.Background(), g, nil)

	var missing *MissingRequiredParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "lonely", missing.NodeID)
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	for s, want := range map[string]Mode{
		"off": ModeOff, "warn": ModeWarn, "strict": ModeStrict, "debug": ModeDebug,
	} {
		got, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("lenient")
	require.Error(t, err)
}
