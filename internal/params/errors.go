package params

import "fmt"

// MissingRequiredParameterError reports a required parameter no source
// could supply. It is a build-time error: strict mode raises it before any
// node executes.
type MissingRequiredParameterError struct {
	NodeID string
	Param  string
}

func (e *MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("node %q: required parameter %q has no value from any source", e.NodeID, e.Param)
}

// Kind returns the machine-readable error kind.
func (e *MissingRequiredParameterError) Kind() string { return "missing_required_parameter" }

// ParameterTypeError reports a supplied value that does not conform to the
// declared parameter type.
type ParameterTypeError struct {
	NodeID   string
	Param    string
	Expected string
	Actual   string
}

func (e *ParameterTypeError) Error() string {
	return fmt.Sprintf("node %q: parameter %q: expected %s, got %s", e.NodeID, e.Param, e.Expected, e.Actual)
}

// Kind returns the machine-readable error kind.
func (e *ParameterTypeError) Kind() string { return "parameter_type" }
