package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
)

// ValidateModel performs a strict parity check between loaded workflows and
// the registered step contracts: every step type must exist, every argument
// must be declared by the module, and required arguments must be present.
func (r *Registry) ValidateModel(ctx context.Context, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, wf := range model.Workflows {
		for _, step := range wf.Steps {
			registered, ok := r.steps[step.Type]
			if !ok {
				errs = append(errs, fmt.Sprintf("workflow '%s', step '%s': unknown step type '%s'", wf.Name, step.Name, step.Type))
				continue
			}

			for argName := range step.Arguments {
				if _, declared := registered.inputs[argName]; !declared {
					errs = append(errs, fmt.Sprintf("workflow '%s', step '%s': step type '%s' does not accept argument '%s'", wf.Name, step.Name, step.Type, argName))
				}
			}
			for argName, input := range registered.inputs {
				if input.optional {
					continue
				}
				if _, present := step.Arguments[argName]; !present {
					errs = append(errs, fmt.Sprintf("workflow '%s', step '%s': required argument '%s' is missing", wf.Name, step.Name, argName))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("workflow validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	logger.Debug("Registry validation passed.", "step_types", len(r.steps))
	return nil
}
