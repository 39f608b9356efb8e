package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeWorkflow(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadNativeWorkflowFile(t *testing.T) {
	path := writeWorkflow(t, "build.hcl", `
workflow "pocovidscreen-ui" {
  on {
    push {
      branches = ["main", "release/*"]
    }
  }

  env = {
    NODE_ENV = "production"
  }

  step "checkout" "source" {
    arguments {
      depth = 1
    }
  }

  step "shell" "build" {
    arguments {
      working_dir = "pocovidscreen/resources/ui"
      run         = ["npm install", "npm run production"]
    }
  }

  step "artifact" "upload" {
    arguments {
      name   = "build.tar.gz"
      source = step.bundle.path
    }
  }
}
`)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, model.Workflows, 1)

	wf := model.Workflows[0]
	require.Equal(t, "pocovidscreen-ui", wf.Name)
	require.Equal(t, []string{"main", "release/*"}, wf.On.Branches)
	require.Equal(t, map[string]string{"NODE_ENV": "production"}, wf.Env)
	require.Len(t, wf.Steps, 3)

	checkoutStep := wf.Steps[0]
	require.Equal(t, "checkout", checkoutStep.Type)
	require.Equal(t, "source", checkoutStep.Name)
	depth, err := checkoutStep.Arguments["depth"].Value(nil)
	require.NoError(t, err)
	require.True(t, cty.NumberIntVal(1).RawEquals(depth))

	buildStep := wf.Steps[1]
	require.Equal(t, "shell", buildStep.Type)
	runVal, err := buildStep.Arguments["run"].Value(nil)
	require.NoError(t, err)
	require.Equal(t, 2, runVal.LengthInt())

	uploadStep := wf.Steps[2]
	require.Equal(t, []string{"bundle"}, uploadStep.Arguments["source"].References(),
		"expression arguments must expose their step references")
	require.Empty(t, uploadStep.Arguments["name"].References())
}

func TestLoadDependsOnSemantics(t *testing.T) {
	path := writeWorkflow(t, "deps.hcl", `
workflow "deps" {
  step "shell" "a" {
    arguments {
      run = ["true"]
    }
  }

  step "shell" "b" {
    arguments {
      run = ["true"]
    }
  }

  step "shell" "c" {
    depends_on = []
    arguments {
      run = ["true"]
    }
  }

  step "shell" "d" {
    depends_on = ["a"]
    arguments {
      run = ["true"]
    }
  }
}
`)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	steps := model.Workflows[0].Steps

	require.Nil(t, steps[0].DependsOn)
	require.Nil(t, steps[1].DependsOn, "undeclared depends_on must stay nil for sequential chaining")
	require.NotNil(t, steps[2].DependsOn)
	require.Empty(t, steps[2].DependsOn, "an empty depends_on list must survive translation")
	require.Equal(t, []string{"a"}, steps[3].DependsOn)
}

func TestLoadMultipleWorkflowsPerFile(t *testing.T) {
	path := writeWorkflow(t, "multi.hcl", `
workflow "first" {
  step "shell" "run" {
    arguments {
      run = ["true"]
    }
  }
}

workflow "second" {
  step "shell" "run" {
    arguments {
      run = ["true"]
    }
  }
}
`)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, model.Workflows, 2)
	require.Equal(t, "first", model.Workflows[0].Name)
	require.Equal(t, "second", model.Workflows[1].Name)
}

func TestLoadImportsYAMLWorkflows(t *testing.T) {
	path := writeWorkflow(t, "ci.yml", `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: echo hello
`)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, model.Workflows, 1)
	require.Equal(t, "ci", model.Workflows[0].Name)
	require.Equal(t, "shell", model.Workflows[0].Steps[0].Type)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Run("syntactically invalid HCL", func(t *testing.T) {
		path := writeWorkflow(t, "bad.hcl", `workflow "broken" {`)
		_, err := NewLoader().Load(context.Background(), path)
		require.ErrorContains(t, err, "failed to parse HCL file")
	})

	t.Run("duplicate step names", func(t *testing.T) {
		path := writeWorkflow(t, "dup.hcl", `
workflow "dup" {
  step "shell" "run" {
    arguments {
      run = ["true"]
    }
  }
  step "archive" "run" {
    arguments {
      source = "a"
      dest   = "b"
    }
  }
}
`)
		_, err := NewLoader().Load(context.Background(), path)
		require.ErrorContains(t, err, "invalid workflow configuration")
	})

	t.Run("empty directory loads an empty model", func(t *testing.T) {
		model, err := NewLoader().Load(context.Background(), t.TempDir())
		require.NoError(t, err)
		require.Empty(t, model.Workflows)
	})
}
