// Package app wires the engine's pieces together for the CLI: logger
// construction, runner registration, workflow loading, and a single run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/vk/flowgridgo/internal/builtin"
	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/engine"
	"github.com/vk/flowgridgo/internal/hclspec"
	"github.com/vk/flowgridgo/internal/metrics"
	"github.com/vk/flowgridgo/internal/params"
	"github.com/vk/flowgridgo/internal/registry"
)

// Config holds everything an App instance needs to run.
type Config struct {
	WorkflowPath string

	LogFormat string
	LogLevel  string

	MaxConcurrentNodes int
	WorkerPoolSize     int
	Validation         string
	CycleTimeout       time.Duration
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	if _, err := params.ParseMode(cfg.Validation); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	metrics  *metrics.Metrics
}

// coreModules are registered when the caller supplies none.
var coreModules = []registry.Module{builtin.Module{}}

// New constructs a fully initialized App with its own isolated logger and
// registry.
func New(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Runner modules registered.", "types", len(reg.Types()))

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		metrics:  metrics.New(),
	}
}

// Run loads the workflow definition and executes it once, printing a
// per-node summary.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	g, err := hclspec.Load(ctx, cfg.WorkflowPath)
	if err != nil {
		return fmt.Errorf("loading workflow: %w", err)
	}

	mode, err := params.ParseMode(cfg.Validation)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx, g, a.registry, nil, engine.Options{
		MaxConcurrentNodes:  cfg.MaxConcurrentNodes,
		ParameterValidation: mode,
		WorkerPoolSize:      cfg.WorkerPoolSize,
		DefaultCycleTimeout: cfg.CycleTimeout,
		Metrics:             a.metrics,
	})
	if err != nil {
		return err
	}

	a.printSummary(result)
	if failed := result.Failed(); len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("run %s finished with %d failed node(s): %v", result.RunID, len(failed), failed)
	}
	return nil
}

func (a *App) printSummary(result *engine.Result) {
	ids := make([]string, 0, len(result.Results))
	for id := range result.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(a.outW, "run %s completed in %s\n", result.RunID, result.TotalDuration.Round(time.Millisecond))
	for _, id := range ids {
		nr := result.Results[id]
		switch {
		case nr.Err != nil:
			fmt.Fprintf(a.outW, "  %s: error (%s): %v\n", id, nr.ErrKind, nr.Err)
		case nr.CycleStatus != "":
			fmt.Fprintf(a.outW, "  %s: ok, cycle %s after %d iteration(s)\n", id, nr.CycleStatus, nr.Iterations)
		default:
			fmt.Fprintf(a.outW, "  %s: ok\n", id)
		}
	}
}
