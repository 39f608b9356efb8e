// Package testutil provides a standardized harness for integration tests:
// it materializes workflow files in a temporary directory, runs the app
// against them with a captured logger, and exposes the results.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/app"
	"github.com/vk/pipewright/internal/hcl"
	"github.com/vk/pipewright/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Workspace string
	Artifacts string
}

// RunWorkflowTest writes the given workflow files into a temp directory,
// runs the app end to end, and returns logs, error and directory layout.
// Modules defaults to the compiled-in core set when none are given.
func RunWorkflowTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunWorkflowTestWithContext(context.Background(), t, files, modules...)
}

// RunWorkflowTestWithContext is RunWorkflowTest with a caller-provided context.
func RunWorkflowTestWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	workflowDir := filepath.Join(tmpDir, "workflows")
	workspace := filepath.Join(tmpDir, "workspace")
	artifacts := filepath.Join(tmpDir, "artifacts")
	require.NoError(t, os.MkdirAll(workflowDir, 0o755))
	require.NoError(t, os.MkdirAll(workspace, 0o755))

	for name, content := range files {
		filePath := filepath.Join(workflowDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	appConfig := &app.Config{
		WorkflowPath: workflowDir,
		Workspace:    workspace,
		ArtifactsDir: artifacts,
		Repo:         "file://test-repo",
		Ref:          "refs/heads/main",
		SHA:          "",
		LogLevel:     "debug",
		LogFormat:    "text",
		WorkerCount:  4,
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hcl.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
		}
	}

	runErr := testApp.Run(ctx)

	if os.Getenv("PIPEWRIGHT_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		Workspace: workspace,
		Artifacts: artifacts,
	}
}
