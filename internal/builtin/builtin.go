package builtin

import (
	"github.com/vk/flowgridgo/internal/registry"
	"github.com/vk/flowgridgo/internal/runner"
)

// Module registers all bundled runner types.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.Register("passthrough", func() runner.Runner { return &passthroughRunner{} })
	r.Register("add", func() runner.Runner { return &addRunner{} })
	r.Register("counter", func() runner.Runner { return &counterRunner{} })
	r.Register("delay", func() runner.Runner { return &delayRunner{} })
	r.Register("fail", func() runner.Runner { return &failRunner{} })
}
