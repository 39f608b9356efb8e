// Package schema declares the HCL surface of workflow files. These structs
// are decode targets only; the hcl package translates them into the
// format-agnostic config model.
package schema

import "github.com/hashicorp/hcl/v2"

// StepArgs captures the raw body of a step's 'arguments' block so its
// attributes can be kept as unevaluated expressions.
type StepArgs struct {
	Body hcl.Body `hcl:",remain"`
}

// Step represents a `step "<type>" "<name>"` block inside a workflow.
type Step struct {
	Type      string            `hcl:"step_type,label"`
	Name      string            `hcl:"name,label"`
	Arguments *StepArgs         `hcl:"arguments,block"`
	DependsOn *[]string         `hcl:"depends_on,optional"`
	Env       map[string]string `hcl:"env,optional"`
}

// Push represents the `push` block of a workflow trigger.
type Push struct {
	Branches []string `hcl:"branches,optional"`
}

// On represents the `on` trigger block of a workflow.
type On struct {
	Push *Push `hcl:"push,block"`
}

// Workflow represents a top-level `workflow "<name>"` block.
type Workflow struct {
	Name  string            `hcl:"name,label"`
	On    *On               `hcl:"on,block"`
	Env   map[string]string `hcl:"env,optional"`
	Steps []*Step           `hcl:"step,block"`
}

// File represents the top-level structure of a workflow definition file.
type File struct {
	Workflows []*Workflow `hcl:"workflow,block"`
	Body      hcl.Body    `hcl:",remain"`
}
