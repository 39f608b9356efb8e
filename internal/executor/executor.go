// Package executor runs a workflow's dependency graph on a pool of
// concurrent workers with fail-fast, skip-dependents semantics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/dag"
	"github.com/vk/pipewright/internal/event"
	"github.com/vk/pipewright/internal/registry"
	"github.com/vk/pipewright/internal/stepctx"
)

// Executor orchestrates the end-to-end execution of one workflow graph.
type Executor struct {
	graph      *dag.Graph
	numWorkers int
	registry   *registry.Registry
	event      *event.Push
	workspace  string
	artifacts  string
	wg         sync.WaitGroup

	// pathDirs accumulates bin directories exported by completed steps,
	// in completion order. Guarded by pathMu; a step's dependents only
	// get scheduled after its output has been recorded here.
	pathMu   sync.Mutex
	pathDirs []string
}

// New creates an executor for a built graph. workspace is the run's working
// directory; artifacts receives locally retained artifacts.
func New(graph *dag.Graph, numWorkers int, reg *registry.Registry, ev *event.Push, workspace, artifacts string) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{
		graph:      graph,
		numWorkers: numWorkers,
		registry:   reg,
		event:      ev,
		workspace:  workspace,
		artifacts:  artifacts,
	}
}

// Run executes the entire graph concurrently and returns an error if any
// node fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *dag.Node, len(e.graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("Initializing executor, finding root nodes...")
	rootNodeCount := 0
	for _, node := range e.graph.Nodes {
		if node.DepCount() == 0 {
			logger.Debug("Found root node.", "nodeID", node.ID)
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	logger.Debug("Waiting for all nodes to complete...")
	e.wg.Wait()
	close(readyChan)

	var failedNodes []string
	var rootCauseError error
	for _, node := range e.graph.Nodes {
		if node.State() != dag.Failed {
			continue
		}
		logger.Error("Node failed execution.", "nodeID", node.ID, "error", node.Error)
		// A "skipped" error is a symptom, not a cause.
		if node.Error != nil && !strings.HasPrefix(node.Error.Error(), "skipped") && !errors.Is(node.Error, context.Canceled) {
			failedNodes = append(failedNodes, node.ID)
			if rootCauseError == nil {
				rootCauseError = node.Error
			}
		}
	}

	if rootCauseError != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	return nil
}

// skipDependents recursively marks all downstream nodes as failed and
// decrements the WaitGroup.
func (e *Executor) skipDependents(ctx context.Context, node *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		if dependent.Skip(fmt.Errorf("skipped due to upstream failure of '%s'", node.ID), &e.wg) {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", dependent.ID, "dependency", node.ID)
			e.skipDependents(ctx, dependent)
		}
	}
}

// runInfo assembles the per-step execution environment.
func (e *Executor) runInfo(node *dag.Node) *stepctx.RunInfo {
	env := make(map[string]string)
	for k, v := range node.Workflow.Env {
		env[k] = v
	}
	for k, v := range node.Step.Env {
		env[k] = v
	}
	e.pathMu.Lock()
	pathDirs := append([]string(nil), e.pathDirs...)
	e.pathMu.Unlock()
	return &stepctx.RunInfo{
		Event:        e.event,
		Workspace:    e.workspace,
		ArtifactsDir: e.artifacts,
		Env:          env,
		PathDirs:     pathDirs,
	}
}

// recordPathDirs captures the bin_dir attribute of a completed step's
// output so runtimes provisioned mid-run end up on the PATH of every
// later shell step.
func (e *Executor) recordPathDirs(output cty.Value) {
	if output == cty.NilVal || !output.Type().IsObjectType() || !output.Type().HasAttribute("bin_dir") {
		return
	}
	dir := output.GetAttr("bin_dir")
	if dir.Type() != cty.String || dir.IsNull() || dir.AsString() == "" {
		return
	}
	e.pathMu.Lock()
	e.pathDirs = append(e.pathDirs, dir.AsString())
	e.pathMu.Unlock()
}
