// Package ghaimport translates GitHub-Actions-style workflow YAML into the
// native config model, so existing workflow files can run unchanged. Only
// the subset of the Actions format that maps onto registered step modules
// is accepted: checkout, setup-node, upload-artifact and plain run scripts.
package ghaimport

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/vk/pipewright/internal/config"
)

type ghaStep struct {
	Name             string         `yaml:"name"`
	Uses             string         `yaml:"uses"`
	Run              string         `yaml:"run"`
	With             map[string]any `yaml:"with"`
	Env              map[string]any `yaml:"env"`
	WorkingDirectory string         `yaml:"working-directory"`
}

type ghaJob struct {
	RunsOn any       `yaml:"runs-on"`
	Steps  []ghaStep `yaml:"steps"`
}

type ghaWorkflow struct {
	Name string            `yaml:"name"`
	On   yaml.Node         `yaml:"on"`
	Env  map[string]any    `yaml:"env"`
	Jobs map[string]ghaJob `yaml:"jobs"`
	// jobsOrder preserves document order of the jobs mapping.
	jobsOrder yaml.Node
}

// Translate converts the YAML source of one Actions workflow file into
// config workflows, one per job.
func Translate(src []byte) ([]*config.Workflow, error) {
	var raw ghaWorkflow
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	var doc struct {
		Jobs yaml.Node `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	raw.jobsOrder = doc.Jobs

	if len(raw.Jobs) == 0 {
		return nil, fmt.Errorf("workflow has no jobs")
	}

	trigger, err := translateTrigger(&raw.On)
	if err != nil {
		return nil, err
	}

	baseName := raw.Name
	if baseName == "" {
		baseName = "imported"
	}

	var workflows []*config.Workflow
	for _, jobID := range jobIDsInOrder(&raw.jobsOrder, raw.Jobs) {
		job := raw.Jobs[jobID]
		name := baseName
		if len(raw.Jobs) > 1 {
			name = baseName + "/" + jobID
		}
		wf := &config.Workflow{
			Name: slug(name),
			On:   trigger,
			Env:  stringifyMap(raw.Env),
		}
		names := make(map[string]int)
		for i, s := range job.Steps {
			step, err := translateStep(s, i, names)
			if err != nil {
				return nil, fmt.Errorf("job %q: %w", jobID, err)
			}
			wf.Steps = append(wf.Steps, step)
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// translateTrigger handles the three YAML shapes of `on`: a scalar, a list
// of event names, or a mapping with per-event filters.
func translateTrigger(node *yaml.Node) (*config.Trigger, error) {
	switch node.Kind {
	case 0:
		return nil, fmt.Errorf("workflow has no trigger")
	case yaml.ScalarNode:
		if node.Value != "push" {
			return nil, fmt.Errorf("unsupported trigger %q: only push events are supported", node.Value)
		}
		return &config.Trigger{}, nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Value == "push" {
				return &config.Trigger{}, nil
			}
		}
		return nil, fmt.Errorf("unsupported trigger list: only push events are supported")
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value != "push" {
				continue
			}
			var filter struct {
				Branches []string `yaml:"branches"`
			}
			if err := node.Content[i+1].Decode(&filter); err != nil {
				return nil, fmt.Errorf("invalid push trigger filter: %w", err)
			}
			return &config.Trigger{Branches: filter.Branches}, nil
		}
		return nil, fmt.Errorf("unsupported trigger mapping: only push events are supported")
	default:
		return nil, fmt.Errorf("unsupported trigger syntax")
	}
}

// translateStep maps a single Actions step onto a registered step module.
func translateStep(s ghaStep, index int, names map[string]int) (*config.Step, error) {
	switch {
	case s.Uses != "":
		action := s.Uses
		if at := strings.IndexByte(action, '@'); at >= 0 {
			action = action[:at]
		}
		switch action {
		case "actions/checkout":
			return newStep("checkout", s.Name, "checkout", names, map[string]cty.Value{}), nil
		case "actions/setup-node":
			args := map[string]cty.Value{}
			if v, ok := s.With["node-version"]; ok {
				args["version"] = cty.StringVal(fmt.Sprint(v))
			}
			return newStep("setup_runtime", s.Name, "setup-node", names, args), nil
		case "actions/upload-artifact":
			args := map[string]cty.Value{}
			if v, ok := s.With["name"]; ok {
				args["name"] = cty.StringVal(fmt.Sprint(v))
			}
			if v, ok := s.With["path"]; ok {
				args["source"] = cty.StringVal(fmt.Sprint(v))
			}
			return newStep("artifact", s.Name, "upload-artifact", names, args), nil
		default:
			return nil, fmt.Errorf("step %d: unsupported action %q", index+1, s.Uses)
		}

	case s.Run != "":
		var lines []string
		for _, line := range strings.Split(s.Run, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("step %d: empty run script", index+1)
		}
		values := make([]cty.Value, len(lines))
		for i, line := range lines {
			values[i] = cty.StringVal(line)
		}
		args := map[string]cty.Value{"run": cty.ListVal(values)}
		if s.WorkingDirectory != "" {
			args["working_dir"] = cty.StringVal(s.WorkingDirectory)
		}
		if env := stringifyMap(s.Env); len(env) > 0 {
			envVals := make(map[string]cty.Value, len(env))
			for k, v := range env {
				envVals[k] = cty.StringVal(v)
			}
			args["env"] = cty.MapVal(envVals)
		}
		return newStep("shell", s.Name, "run", names, args), nil

	default:
		return nil, fmt.Errorf("step %d: has neither 'uses' nor 'run'", index+1)
	}
}

// newStep builds a config step with a unique, slugged instance name.
func newStep(stepType, name, fallback string, names map[string]int, args map[string]cty.Value) *config.Step {
	base := slug(name)
	if base == "" {
		base = fallback
	}
	names[base]++
	if n := names[base]; n > 1 {
		base = fmt.Sprintf("%s-%d", base, n)
	}

	arguments := make(map[string]config.Argument, len(args))
	for k, v := range args {
		arguments[k] = config.StaticArgument(v)
	}
	return &config.Step{
		Type:      stepType,
		Name:      base,
		Arguments: arguments,
	}
}

// jobIDsInOrder walks the raw jobs mapping to preserve declaration order;
// it falls back to sorted IDs if the node shape is unexpected.
func jobIDsInOrder(node *yaml.Node, jobs map[string]ghaJob) []string {
	var ids []string
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if _, ok := jobs[node.Content[i].Value]; ok {
				ids = append(ids, node.Content[i].Value)
			}
		}
	}
	if len(ids) != len(jobs) {
		ids = ids[:0]
		for id := range jobs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	return ids
}

// stringifyMap flattens YAML scalar values (bools, numbers) into strings.
func stringifyMap(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// slug normalizes a human step name into an identifier-safe instance name.
func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '/':
			sb.WriteRune(r)
		case r == ' ' || r == '.':
			sb.WriteRune('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
