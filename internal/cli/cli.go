package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/flowgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("flowgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
FlowGridGo - A declarative workflow execution engine with cyclic sub-graphs.

Usage:
  flowgridgo [options] [WORKFLOW_PATH]

Arguments:
  WORKFLOW_PATH
    Path to a single .hcl workflow file.

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Path to the workflow file.")
	wFlag := flagSet.String("w", "", "Path to the workflow file (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	maxConcurrentFlag := flagSet.Int("max-concurrent", 8, "Maximum number of nodes dispatched concurrently within a wave.")
	workersFlag := flagSet.Int("workers", 0, "Size of the synchronous runner worker pool. 0 follows max-concurrent.")
	validationFlag := flagSet.String("validation", "strict", "Parameter validation mode. Options: 'off', 'warn', 'strict', 'debug'.")
	cycleTimeoutFlag := flagSet.Duration("cycle-timeout", 5*time.Minute, "Default wall-clock limit for cycles that declare none.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *workflowFlag != "" {
		path = *workflowFlag
	} else if *wFlag != "" {
		path = *wFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Workflow path determined.", "path", path)

	if path == "" {
		slog.Debug("No workflow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		WorkflowPath:       path,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
		MaxConcurrentNodes: *maxConcurrentFlag,
		WorkerPoolSize:     *workersFlag,
		Validation:         strings.ToLower(*validationFlag),
		CycleTimeout:       *cycleTimeoutFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
