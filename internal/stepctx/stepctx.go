// Package stepctx carries per-run information from the executor to step
// modules through context.Context, mirroring how loggers travel via ctxlog.
package stepctx

import (
	"context"

	"github.com/vk/pipewright/internal/event"
)

// RunInfo is the execution environment shared by every step of one run.
type RunInfo struct {
	// Event is the push that triggered the run.
	Event *event.Push
	// Workspace is the job's disposable working directory. Relative step
	// paths resolve against it.
	Workspace string
	// ArtifactsDir receives artifacts when no upload endpoint is set.
	ArtifactsDir string
	// Env is the workflow-level environment merged with the step's own.
	Env map[string]string
	// PathDirs lists bin directories of runtimes provisioned earlier in
	// the run; shell steps prepend them to PATH.
	PathDirs []string
}

type key struct{}

var runInfoKey = key{}

// WithRunInfo returns a new context with the run info embedded.
func WithRunInfo(ctx context.Context, info *RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey, info)
}

// FromContext extracts the run info. Steps are only ever invoked by the
// executor, which always sets it; a missing value is a programmer error.
func FromContext(ctx context.Context) *RunInfo {
	info, ok := ctx.Value(runInfoKey).(*RunInfo)
	if !ok {
		panic("stepctx: run info missing from context")
	}
	return info
}
