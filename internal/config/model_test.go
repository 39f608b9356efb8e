package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerMatches(t *testing.T) {
	testCases := []struct {
		name    string
		trigger *Trigger
		branch  string
		want    bool
	}{
		{"nil trigger matches anything", nil, "main", true},
		{"empty branches matches anything", &Trigger{}, "feature/x", true},
		{"exact match", &Trigger{Branches: []string{"main"}}, "main", true},
		{"exact mismatch", &Trigger{Branches: []string{"main"}}, "develop", false},
		{"glob match", &Trigger{Branches: []string{"release/*"}}, "release/v2", true},
		{"glob mismatch", &Trigger{Branches: []string{"release/*"}}, "main", false},
		{"any of several patterns", &Trigger{Branches: []string{"main", "hotfix-*"}}, "hotfix-42", true},
		{"star matches everything", &Trigger{Branches: []string{"*"}}, "main", true},
		{"star matches slash-containing branch", &Trigger{Branches: []string{"*"}}, "feature/login", true},
		{"double star matches slash-containing branch", &Trigger{Branches: []string{"**"}}, "release/v2/hotfix", true},
		{"glob still stops at separators", &Trigger{Branches: []string{"feature-*"}}, "feature-a/b", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.trigger.Matches(tc.branch))
		})
	}
}

func TestModelValidate(t *testing.T) {
	step := func(stepType, name string) *Step {
		return &Step{Type: stepType, Name: name}
	}

	t.Run("accepts a well-formed model", func(t *testing.T) {
		m := &Model{Workflows: []*Workflow{
			{Name: "build", Steps: []*Step{step("shell", "install"), step("shell", "test")}},
			{Name: "deploy", Steps: []*Step{step("shell", "install")}},
		}}
		require.NoError(t, m.Validate())
	})

	t.Run("rejects duplicate workflow names", func(t *testing.T) {
		m := &Model{Workflows: []*Workflow{{Name: "build"}, {Name: "build"}}}
		require.ErrorContains(t, m.Validate(), `duplicate workflow name "build"`)
	})

	t.Run("rejects empty workflow name", func(t *testing.T) {
		m := &Model{Workflows: []*Workflow{{Name: ""}}}
		require.ErrorContains(t, m.Validate(), "empty name")
	})

	t.Run("rejects duplicate step names within a workflow", func(t *testing.T) {
		m := &Model{Workflows: []*Workflow{
			{Name: "build", Steps: []*Step{step("shell", "run"), step("archive", "run")}},
		}}
		require.ErrorContains(t, m.Validate(), `duplicate step name "run"`)
	})

	t.Run("allows the same step name in different workflows", func(t *testing.T) {
		m := &Model{Workflows: []*Workflow{
			{Name: "a", Steps: []*Step{step("shell", "run")}},
			{Name: "b", Steps: []*Step{step("shell", "run")}},
		}}
		require.NoError(t, m.Validate())
	})

	t.Run("rejects step with empty type", func(t *testing.T) {
		m := &Model{Workflows: []*Workflow{
			{Name: "build", Steps: []*Step{step("", "install")}},
		}}
		require.ErrorContains(t, m.Validate(), "empty type or name")
	})
}
