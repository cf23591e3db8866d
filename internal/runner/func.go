package runner

import (
	"context"

	"github.com/vk/flowgridgo/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

// Func adapts a plain function plus a schema into a Runner. It keeps small
// runner definitions (builtins, tests) from needing a named type each.
type Func struct {
	Declared schema.Schema
	Fn       func(ctx context.Context, ec *ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error)
}

// Schema implements Runner.
func (f Func) Schema() schema.Schema {
	return f.Declared
}

// Run implements Runner.
func (f Func) Run(ctx context.Context, ec *ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	return f.Fn(ctx, ec, inputs)
}
