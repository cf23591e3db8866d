// Package testutil provides shared helpers for building registries, runners,
// and workflow files inside tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/flowgridgo/internal/registry"
	"github.com/vk/flowgridgo/internal/runner"
	"github.com/vk/flowgridgo/internal/schema"
)

// SimpleModule is a test helper for easily creating a mock module that
// registers a single runner type.
type SimpleModule struct {
	Type    string
	Factory registry.Factory
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.Type != "" && m.Factory != nil {
		r.Register(m.Type, m.Factory)
	}
}

// NewRegistry builds a registry pre-populated with the given modules.
func NewRegistry(t *testing.T, modules ...registry.Module) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, mod := range modules {
		mod.Register(reg)
	}
	return reg
}

// Recorder tracks which nodes ran and in what order. It is safe for
// concurrent use by executor goroutines.
type Recorder struct {
	mu    sync.Mutex
	order []string
}

// Record appends a node ID to the observed execution order.
func (r *Recorder) Record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
}

// Order returns a copy of the observed execution order.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Index returns the position of id in the observed order, or -1.
func (r *Recorder) Index(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, got := range r.order {
		if got == id {
			return i
		}
	}
	return -1
}

// EchoSchema declares a single optional "value" input mirrored to a "value"
// output. Most graph-shape tests need nothing richer.
func EchoSchema() schema.Schema {
	return schema.Schema{
		Params: map[string]schema.ParamSpec{
			"value": {Type: cty.Number, Default: cty.NumberIntVal(0)},
		},
		Outputs: map[string]schema.OutputSpec{
			"value": {Type: cty.Number},
		},
	}
}

// EchoFactory returns a runner factory that mirrors its "value" input and
// records each invocation on rec when rec is non-nil.
func EchoFactory(rec *Recorder) registry.Factory {
	return func() runner.Runner {
		return runner.Func{
			Declared: EchoSchema(),
			Fn: func(ctx context.Context, ec *runner.ExecContext, inputs map[string]cty.Value) (map[string]cty.Value, error) {
				if rec != nil {
					rec.Record(ec.NodeID)
				}
				return map[string]cty.Value{"value": inputs["value"]}, nil
			},
		}
	}
}

// WriteWorkflow writes an HCL workflow document to a temp file and returns
// its path.
func WriteWorkflow(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.hcl")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o600))
	return path
}
