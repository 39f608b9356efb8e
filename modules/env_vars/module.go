// Package env_vars implements the step type that exposes the process
// environment to workflow expressions.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input is empty because this step takes no arguments.
type Input struct{}

// OnRunEnvVars is the handler for the 'env_vars' step type.
func OnRunEnvVars(ctx context.Context, input *Input) (cty.Value, error) {
	envMap := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && pair[0] != "" {
			envMap[pair[0]] = cty.StringVal(pair[1])
		}
	}
	if len(envMap) == 0 {
		return cty.ObjectVal(map[string]cty.Value{
			"all": cty.MapValEmpty(cty.String),
		}), nil
	}
	return cty.ObjectVal(map[string]cty.Value{
		"all": cty.MapVal(envMap),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("env_vars", &registry.RegisteredStep{
		Description: "Exposes the process environment as a step output.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunEnvVars,
	})
}
