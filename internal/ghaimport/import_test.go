package ghaimport

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/config"
)

// argValue evaluates an imported literal argument.
func argValue(t *testing.T, step *config.Step, name string) cty.Value {
	t.Helper()
	arg, ok := step.Arguments[name]
	require.True(t, ok, "step %q has no argument %q", step.Name, name)
	val, err := arg.Value(nil)
	require.NoError(t, err)
	return val
}

func TestTranslateBuildWorkflow(t *testing.T) {
	src := []byte(`
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v2
      - name: Use Node.js
        uses: actions/setup-node@v1
        with:
          node-version: 12.x
      - name: npm build
        working-directory: pocovidscreen/resources/ui
        run: |
          npm install
          npm update
          npm run production
        env:
          CI: true
      - name: Upload artifact
        uses: actions/upload-artifact@v2
        with:
          name: build.tar.gz
          path: pocovidscreen/web_root/build.tar.gz
`)

	workflows, err := Translate(src)
	require.NoError(t, err)
	require.Len(t, workflows, 1)

	wf := workflows[0]
	require.Equal(t, "ci", wf.Name)
	require.Equal(t, []string{"main"}, wf.On.Branches)
	require.Len(t, wf.Steps, 4)

	got := make([][2]string, 0, len(wf.Steps))
	for _, s := range wf.Steps {
		got = append(got, [2]string{s.Type, s.Name})
	}
	want := [][2]string{
		{"checkout", "checkout"}, // unnamed steps fall back to the action name
		{"setup_runtime", "use-node-js"},
		{"shell", "npm-build"},
		{"artifact", "upload-artifact"},
	}
	require.Empty(t, cmp.Diff(want, got))

	node := wf.Steps[1]
	require.Equal(t, cty.StringVal("12.x"), argValue(t, node, "version"))

	build := wf.Steps[2]
	require.Equal(t, cty.StringVal("pocovidscreen/resources/ui"), argValue(t, build, "working_dir"))
	run := argValue(t, build, "run")
	require.Equal(t, 3, run.LengthInt())
	require.Equal(t, cty.StringVal("npm install"), run.Index(cty.NumberIntVal(0)))
	env := argValue(t, build, "env")
	require.Equal(t, cty.StringVal("true"), env.Index(cty.StringVal("CI")),
		"YAML booleans must be flattened to strings")

	upload := wf.Steps[3]
	require.Equal(t, cty.StringVal("build.tar.gz"), argValue(t, upload, "name"))
	require.Equal(t, cty.StringVal("pocovidscreen/web_root/build.tar.gz"), argValue(t, upload, "source"))

	// Imported steps rely on declaration-order chaining, never explicit deps.
	for _, step := range wf.Steps {
		require.Nil(t, step.DependsOn)
	}
}

func TestTranslateTriggerShapes(t *testing.T) {
	job := `
jobs:
  build:
    steps:
      - run: echo ok
`

	t.Run("scalar push", func(t *testing.T) {
		workflows, err := Translate([]byte("on: push\n" + job))
		require.NoError(t, err)
		require.NotNil(t, workflows[0].On)
		require.Empty(t, workflows[0].On.Branches)
	})

	t.Run("event list containing push", func(t *testing.T) {
		workflows, err := Translate([]byte("on: [push, workflow_dispatch]\n" + job))
		require.NoError(t, err)
		require.NotNil(t, workflows[0].On)
	})

	t.Run("mapping with branch filter", func(t *testing.T) {
		workflows, err := Translate([]byte("on:\n  push:\n    branches: [main, dev]\n" + job))
		require.NoError(t, err)
		require.Equal(t, []string{"main", "dev"}, workflows[0].On.Branches)
	})

	t.Run("missing trigger", func(t *testing.T) {
		_, err := Translate([]byte(job))
		require.ErrorContains(t, err, "no trigger")
	})

	t.Run("non-push scalar", func(t *testing.T) {
		_, err := Translate([]byte("on: pull_request\n" + job))
		require.ErrorContains(t, err, "only push events are supported")
	})

	t.Run("mapping without push", func(t *testing.T) {
		_, err := Translate([]byte("on:\n  schedule:\n    - cron: '0 0 * * *'\n" + job))
		require.ErrorContains(t, err, "only push events are supported")
	})
}

func TestTranslateMultipleJobs(t *testing.T) {
	src := []byte(`
name: CI
on: push
jobs:
  lint:
    steps:
      - run: echo lint
  build:
    steps:
      - run: echo build
`)

	workflows, err := Translate(src)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	require.Equal(t, "ci/lint", workflows[0].Name, "job order must follow the document")
	require.Equal(t, "ci/build", workflows[1].Name)
}

func TestTranslateStepNameCollisions(t *testing.T) {
	src := []byte(`
on: push
jobs:
  build:
    steps:
      - name: Run tests
        run: echo one
      - name: Run tests
        run: echo two
`)

	workflows, err := Translate(src)
	require.NoError(t, err)
	steps := workflows[0].Steps
	require.Equal(t, "run-tests", steps[0].Name)
	require.Equal(t, "run-tests-2", steps[1].Name)
}

func TestTranslateRejectsUnsupportedSteps(t *testing.T) {
	t.Run("unknown action", func(t *testing.T) {
		_, err := Translate([]byte(`
on: push
jobs:
  build:
    steps:
      - uses: docker/build-push-action@v5
`))
		require.ErrorContains(t, err, "unsupported action")
	})

	t.Run("step with neither uses nor run", func(t *testing.T) {
		_, err := Translate([]byte(`
on: push
jobs:
  build:
    steps:
      - name: mystery
`))
		require.ErrorContains(t, err, "neither 'uses' nor 'run'")
	})

	t.Run("workflow without jobs", func(t *testing.T) {
		_, err := Translate([]byte("on: push\njobs: {}\n"))
		require.ErrorContains(t, err, "no jobs")
	})

	t.Run("invalid YAML", func(t *testing.T) {
		_, err := Translate([]byte("on: [push\n"))
		require.ErrorContains(t, err, "failed to parse workflow YAML")
	})
}
