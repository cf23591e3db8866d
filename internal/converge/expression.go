package converge

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression is a boolean predicate over named metrics, compiled once at
// build time. References to names outside Vars fail compilation, so an
// undefined name is a build-time error rather than a runtime surprise.
type Expression struct {
	source  string
	vars    []string
	program *vm.Program
}

// NewExpression compiles source against the declared variable names.
func NewExpression(source string, vars []string) (*Expression, error) {
	env := make(map[string]any, len(vars))
	for _, name := range vars {
		env[name] = float64(0)
	}
	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling convergence expression %q: %w", source, err)
	}
	return &Expression{source: source, vars: vars, program: program}, nil
}

// Eval implements Condition. The predicate is undecided (unsatisfied) until
// every declared variable has a recorded value.
func (e *Expression) Eval(s StateView) (bool, error) {
	env := make(map[string]any, len(e.vars))
	for _, name := range e.vars {
		v, ok := s.Metric(name)
		if !ok {
			return false, nil
		}
		env[name] = v
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating convergence expression %q: %w", e.source, err)
	}
	satisfied, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("convergence expression %q produced %T, want bool", e.source, out)
	}
	return satisfied, nil
}

// Describe implements Condition.
func (e *Expression) Describe() string {
	return fmt.Sprintf("expression(%s)", e.source)
}
