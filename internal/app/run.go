package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/dag"
	"github.com/vk/pipewright/internal/event"
	"github.com/vk/pipewright/internal/executor"
)

// Run executes every loaded workflow whose trigger matches the push event.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	push := event.NewPush(a.config.Repo, a.config.Ref, a.config.SHA)
	a.logger.Info("Push event accepted.", "run_id", push.RunID, "ref", push.Ref, "sha", push.SHA)

	workspace, cleanup, err := a.prepareWorkspace(push)
	if err != nil {
		return err
	}
	defer cleanup()

	matched := 0
	for _, wf := range a.model.Workflows {
		wfLogger := a.logger.With("workflow", wf.Name)
		if !wf.On.Matches(push.Branch()) {
			wfLogger.Info("Workflow trigger does not match push branch, skipping.", "branch", push.Branch())
			continue
		}
		matched++

		wfLogger.Debug("Building dependency graph...")
		graph, err := dag.Build(ctx, wf, a.registry)
		if err != nil {
			return fmt.Errorf("failed to build dependency graph for workflow '%s': %w", wf.Name, err)
		}
		wfLogger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

		if len(graph.Nodes) == 0 {
			wfLogger.Warn("Workflow has no steps, nothing to execute.")
			continue
		}

		wfLogger.Info("🚀 Starting workflow execution...", "steps", len(graph.Nodes), "workers", a.config.WorkerCount)
		exec := executor.New(graph, a.config.WorkerCount, a.registry, push, workspace, filepath.Join(a.config.ArtifactsDir, push.RunID))
		if err := exec.Run(ctx); err != nil {
			return fmt.Errorf("workflow '%s' failed: %w", wf.Name, err)
		}
		wfLogger.Info("🏁 Workflow finished.")
	}

	if matched == 0 {
		a.logger.Warn("No workflow matched the push event.", "branch", push.Branch())
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// prepareWorkspace resolves the run's working directory. A configured path
// is reused as-is; otherwise a temporary directory is created and removed
// when the run ends.
func (a *App) prepareWorkspace(push *event.Push) (string, func(), error) {
	if a.config.Workspace != "" {
		if err := os.MkdirAll(a.config.Workspace, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create workspace: %w", err)
		}
		return a.config.Workspace, func() {}, nil
	}

	workspace, err := os.MkdirTemp("", "pipewright-"+push.RunID[:8]+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(workspace); err != nil {
			a.logger.Warn("Failed to remove workspace.", "path", workspace, "error", err)
		}
	}
	return workspace, cleanup, nil
}
