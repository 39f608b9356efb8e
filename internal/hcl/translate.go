package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/schema"
)

// translateWorkflow converts the HCL-specific workflow schema into the
// agnostic model.
func translateWorkflow(wf *schema.Workflow) (*config.Workflow, error) {
	out := &config.Workflow{
		Name: wf.Name,
		Env:  wf.Env,
	}
	if wf.On != nil && wf.On.Push != nil {
		out.On = &config.Trigger{Branches: wf.On.Push.Branches}
	}
	for _, s := range wf.Steps {
		step, err := translateStep(s)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wf.Name, err)
		}
		out.Steps = append(out.Steps, step)
	}
	return out, nil
}

// translateStep converts the HCL-specific step schema into the agnostic model.
func translateStep(s *schema.Step) (*config.Step, error) {
	step := &config.Step{
		Type:      s.Type,
		Name:      s.Name,
		Arguments: make(map[string]config.Argument),
		Env:       s.Env,
	}
	// A present-but-empty depends_on list is meaningful: it detaches the
	// step from the implicit sequential chain. Only copy when declared.
	if s.DependsOn != nil {
		step.DependsOn = *s.DependsOn
		if step.DependsOn == nil {
			step.DependsOn = []string{}
		}
	}
	if s.Arguments != nil {
		attrs, diags := s.Arguments.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("step %q: invalid arguments block: %w", s.Name, diags)
		}
		for name, attr := range attrs {
			step.Arguments[name] = exprArgument{expr: attr.Expr}
		}
	}
	return step, nil
}

// exprArgument keeps a step attribute as an unevaluated HCL expression so it
// can reference upstream outputs through the run's eval context.
type exprArgument struct {
	expr hcl.Expression
}

func (a exprArgument) Value(evalCtx *hcl.EvalContext) (cty.Value, error) {
	val, diags := a.expr.Value(evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return val, nil
}

// References extracts step names from traversals of the form
// `step.<name>.<output>`.
func (a exprArgument) References() []string {
	var refs []string
	for _, traversal := range a.expr.Variables() {
		if traversal.RootName() != "step" || len(traversal) < 2 {
			continue
		}
		if attr, ok := traversal[1].(hcl.TraverseAttr); ok {
			refs = append(refs, attr.Name)
		}
	}
	return refs
}
