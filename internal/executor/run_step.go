package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/dag"
	"github.com/vk/pipewright/internal/stepctx"
)

// runStepNode evaluates a step's arguments against the run's eval context
// and dispatches to the registered handler.
func (e *Executor) runStepNode(ctx context.Context, node *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("step", node.ID)
	logger.Info("▶️ Starting step")

	registered, ok := e.registry.Step(node.Step.Type)
	if !ok {
		return fmt.Errorf("unknown step type '%s'", node.Step.Type)
	}

	evalCtx := e.buildEvalContext(node)
	args := make(map[string]cty.Value, len(node.Step.Arguments))
	for name, arg := range node.Step.Arguments {
		val, err := arg.Value(evalCtx)
		if err != nil {
			return fmt.Errorf("failed to evaluate argument '%s' for step '%s': %w", name, node.ID, err)
		}
		args[name] = val
	}

	input := registered.NewInput()
	if err := registered.DecodeInput(input, args); err != nil {
		return fmt.Errorf("failed to decode arguments for step '%s': %w", node.ID, err)
	}

	stepCtx := stepctx.WithRunInfo(ctx, e.runInfo(node))
	stepCtx = ctxlog.WithLogger(stepCtx, logger)

	fn := reflect.ValueOf(registered.Fn)
	results := fn.Call([]reflect.Value{reflect.ValueOf(stepCtx), reflect.ValueOf(input)})
	if errResult := results[1].Interface(); errResult != nil {
		return errResult.(error)
	}

	node.Output = results[0].Interface().(cty.Value)
	e.recordPathDirs(node.Output)
	logger.Info("✅ Finished step")
	return nil
}

// buildEvalContext exposes the event and completed upstream outputs to the
// step's argument expressions. Only direct dependencies are visible; they
// are guaranteed Done before this node is scheduled.
func (e *Executor) buildEvalContext(node *dag.Node) *hcl.EvalContext {
	steps := make(map[string]cty.Value)
	for _, dep := range node.Deps {
		if dep.State() == dag.Done && dep.Output != cty.NilVal {
			steps[dep.Step.Name] = dep.Output
		}
	}

	variables := map[string]cty.Value{
		"event": e.event.ToCty(),
	}
	if len(steps) > 0 {
		variables["step"] = cty.ObjectVal(steps)
	}
	if len(node.Workflow.Env) > 0 {
		envVals := make(map[string]cty.Value, len(node.Workflow.Env))
		for k, v := range node.Workflow.Env {
			envVals[k] = cty.StringVal(v)
		}
		variables["env"] = cty.MapVal(envVals)
	}

	return &hcl.EvalContext{Variables: variables}
}
