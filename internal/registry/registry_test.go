package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/flowgridgo/internal/runner"
	"github.com/vk/flowgridgo/internal/schema"
)

func testFactory() runner.Runner {
	return runner.Func{
		Declared: schema.Schema{
			Params: map[string]schema.ParamSpec{
				"value": {Type: cty.Number, Default: cty.Zero},
			},
			Outputs: map[string]schema.OutputSpec{
				"value": {Type: cty.Number},
			},
		},
		Fn: func(ctx context.Context, ec *runner.ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
			return inputs, nil
		},
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("echo", testFactory)

	assert.Panics(t, func() {
		r.Register("echo", testFactory)
	})
}

func TestInstantiate_UnknownType(t *testing.T) {
	t.Parallel()
	r := New()

	_, err := r.Instantiate("ghost")
	require.Error(t, err)
}

func TestSchema_Declares(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("echo", testFactory)

	s, err := r.Schema("echo")
	require.NoError(t, err)
	assert.Contains(t, s.Params, "value")

	ok, err := r.DeclaresInput("echo", "value")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.DeclaresInput("echo", "bogus")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.DeclaresOutput("echo", "value")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.DeclaresInput("ghost", "value")
	require.Error(t, err)
}

func TestTypes_Sorted(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("zeta", testFactory)
	r.Register("alpha", testFactory)

	assert.Equal(t, []string{"alpha", "zeta"}, r.Types())
}
