package config

import (
	"fmt"
	"path"
)

// Model is the root of all loaded workflow configuration.
type Model struct {
	Workflows []*Workflow
}

// Workflow is a declarative job definition triggered by repository events.
type Workflow struct {
	// Name identifies the workflow in logs and CLI selection.
	Name string
	// On filters which push events trigger the workflow. A nil trigger
	// matches every push.
	On *Trigger
	// Env is merged into the environment of every shell step in the run.
	Env map[string]string
	// Steps in declaration order. Declaration order matters: a step with no
	// explicit or implicit dependency chains onto the step before it.
	Steps []*Step
}

// Trigger describes the push-event filter of a workflow.
type Trigger struct {
	// Branches holds glob-style branch patterns (path.Match syntax). A
	// bare "*" or "**" matches every branch, including slashed ones.
	// Empty means any branch.
	Branches []string
}

// Matches reports whether a push to the given branch triggers the workflow.
// path.Match never lets "*" cross a "/", so the match-any patterns are
// handled up front; branch names like "feature/login" must not silently
// fall through a catch-all filter.
func (t *Trigger) Matches(branch string) bool {
	if t == nil || len(t.Branches) == 0 {
		return true
	}
	for _, pattern := range t.Branches {
		if pattern == "*" || pattern == "**" {
			return true
		}
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// Step is a runnable instance of a registered step type.
type Step struct {
	// Type names the registered step module, e.g. "shell" or "archive".
	Type string
	// Name is the unique instance name within the workflow.
	Name string
	// Arguments holds the step's input attributes, still unevaluated so
	// that expressions can reference upstream step outputs.
	Arguments map[string]Argument
	// DependsOn lists names of steps that must complete first. nil means
	// "chain onto the previous step"; an explicitly empty list detaches
	// the step so it can run as a root.
	DependsOn []string
	// Env is merged over the workflow env for this step only.
	Env map[string]string
}

// Validate checks structural invariants that hold for every format.
func (m *Model) Validate() error {
	seenWorkflows := make(map[string]struct{})
	for _, wf := range m.Workflows {
		if wf.Name == "" {
			return fmt.Errorf("workflow with empty name")
		}
		if _, dup := seenWorkflows[wf.Name]; dup {
			return fmt.Errorf("duplicate workflow name %q", wf.Name)
		}
		seenWorkflows[wf.Name] = struct{}{}

		seenSteps := make(map[string]struct{})
		for _, step := range wf.Steps {
			if step.Type == "" || step.Name == "" {
				return fmt.Errorf("workflow %q: step with empty type or name", wf.Name)
			}
			if _, dup := seenSteps[step.Name]; dup {
				return fmt.Errorf("workflow %q: duplicate step name %q", wf.Name, step.Name)
			}
			seenSteps[step.Name] = struct{}{}
		}
	}
	return nil
}
