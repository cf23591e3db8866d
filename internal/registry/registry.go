package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vk/flowgridgo/internal/runner"
	"github.com/vk/flowgridgo/internal/schema"
)

// Factory constructs a fresh runner instance for one node invocation.
type Factory func() runner.Runner

// Module is the interface a collection of runners implements to be
// registered as a unit at startup.
type Module interface {
	Register(r *Registry)
}

// Registry holds the runner factories and memoized schemas for a single
// application instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	schemas   map[string]schema.Schema
}

// New creates and initializes an empty Registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		schemas:   make(map[string]schema.Schema),
	}
}

// Register binds a runner type token to its factory. Registering a token
// twice panics: it is a startup wiring bug, not a runtime condition.
func (r *Registry) Register(runnerType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[runnerType]; exists {
		panic(fmt.Sprintf("runner type %q already registered", runnerType))
	}
	slog.Debug("Registering runner type.", "type", runnerType)
	r.factories[runnerType] = f
}

// Instantiate returns a fresh runner for the given type token.
func (r *Registry) Instantiate(runnerType string) (runner.Runner, error) {
	r.mu.RLock()
	f, ok := r.factories[runnerType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown runner type %q", runnerType)
	}
	return f(), nil
}

// Schema returns the declared schema for a runner type. The first lookup
// instantiates the runner to read its declaration; later lookups hit the
// memo, keeping per-run validation sub-millisecond.
func (r *Registry) Schema(runnerType string) (schema.Schema, error) {
	r.mu.RLock()
	s, ok := r.schemas[runnerType]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	inst, err := r.Instantiate(runnerType)
	if err != nil {
		return schema.Schema{}, err
	}
	s = inst.Schema()

	r.mu.Lock()
	r.schemas[runnerType] = s
	r.mu.Unlock()
	return s, nil
}

// DeclaresInput implements graph.SchemaSource.
func (r *Registry) DeclaresInput(runnerType, key string) (bool, error) {
	s, err := r.Schema(runnerType)
	if err != nil {
		return false, err
	}
	return s.DeclaresInput(key), nil
}

// DeclaresOutput implements graph.SchemaSource.
func (r *Registry) DeclaresOutput(runnerType, key string) (bool, error) {
	s, err := r.Schema(runnerType)
	if err != nil {
		return false, err
	}
	return s.DeclaresOutput(key), nil
}

// Types returns the registered type tokens in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
