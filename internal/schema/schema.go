// Package schema defines the parameter contract a runner declares to the
// engine: which inputs it accepts, their cty types, whether they are
// required, and which outputs it produces. The resolver and the graph
// validator consume these declarations; runners never see raw,
// undeclared values.
package schema

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// ParamSpec describes a single declared input parameter.
type ParamSpec struct {
	// Type is the cty type the resolved value must conform to.
	Type cty.Type

	// Required marks parameters that must be supplied by at least one
	// source (static config, edge value, runtime override, or default).
	Required bool

	// Default is used when no other source supplies a value. A NilVal
	// default means "no default".
	Default cty.Value

	// Description is free-form documentation, surfaced in diagnostics.
	Description string
}

// HasDefault reports whether the spec carries a usable default value.
func (p ParamSpec) HasDefault() bool {
	return p.Default != cty.NilVal
}

// OutputSpec describes a single declared output value.
type OutputSpec struct {
	Type        cty.Type
	Description string
}

// Schema is the full declared contract of a runner type.
type Schema struct {
	Params  map[string]ParamSpec
	Outputs map[string]OutputSpec
}

// ParamNames returns the declared parameter names in sorted order, for
// deterministic iteration in validation and diagnostics.
func (s Schema) ParamNames() []string {
	names := make([]string, 0, len(s.Params))
	for name := range s.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeclaresInput reports whether the schema declares an input with the given name.
func (s Schema) DeclaresInput(name string) bool {
	_, ok := s.Params[name]
	return ok
}

// DeclaresOutput reports whether the schema declares an output with the given name.
func (s Schema) DeclaresOutput(name string) bool {
	_, ok := s.Outputs[name]
	return ok
}
