package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertStepRan checks the log output within a HarnessResult to confirm that
// a specific step has completed. It abstracts the underlying node ID format,
// making tests more resilient to internal refactoring.
func AssertStepRan(t *testing.T, result *HarnessResult, stepType, stepName string) {
	t.Helper()

	expectedLogSubstring := fmt.Sprintf("step=step.%s.%s", stepType, stepName)
	require.True(t,
		strings.Contains(result.LogOutput, expectedLogSubstring),
		"expected log output for step '%s.%s' was not found in logs", stepType, stepName,
	)
}

// AssertStepSkipped checks that a step was skipped due to upstream failure.
func AssertStepSkipped(t *testing.T, result *HarnessResult, stepType, stepName string) {
	t.Helper()

	nodeID := fmt.Sprintf("step.%s.%s", stepType, stepName)
	require.Contains(t, result.LogOutput, "Skipping dependent node due to upstream failure.",
		"expected a skip message in logs")
	require.Contains(t, result.LogOutput, nodeID,
		"expected skipped step '%s' to appear in logs", nodeID)
}

// FindArtifact locates a retained artifact by name under the harness's
// artifacts directory and returns its path.
func FindArtifact(t *testing.T, result *HarnessResult, name string) string {
	t.Helper()

	var found string
	err := filepath.WalkDir(result.Artifacts, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
		}
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, found, "artifact %q not found under %s", name, result.Artifacts)
	return found
}
