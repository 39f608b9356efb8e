package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Argument is a single step input attribute. HCL-backed arguments stay
// unevaluated until execution so they can reference upstream outputs;
// imported YAML arguments are plain literals.
type Argument interface {
	// Value evaluates the argument. evalCtx may be nil for literals.
	Value(evalCtx *hcl.EvalContext) (cty.Value, error)
	// References returns the names of steps the argument's expression
	// refers to, used for implicit dependency linking.
	References() []string
}

// staticArgument wraps a literal value produced by a non-expression format.
type staticArgument struct {
	val cty.Value
}

// StaticArgument wraps a literal cty value as an Argument.
func StaticArgument(v cty.Value) Argument {
	return staticArgument{val: v}
}

func (a staticArgument) Value(_ *hcl.EvalContext) (cty.Value, error) {
	return a.val, nil
}

func (a staticArgument) References() []string {
	return nil
}
