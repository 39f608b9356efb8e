// Package checkout implements the step type that materializes the
// repository working tree at the commit carried by the push event.
package checkout

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/registry"
	"github.com/vk/pipewright/internal/stepctx"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'checkout' step. All arguments are
// optional: the defaults come from the triggering push event.
type Input struct {
	Repo  string `cty:"repo,optional"`
	Ref   string `cty:"ref,optional"`
	SHA   string `cty:"sha,optional"`
	Path  string `cty:"path,optional"`
	Depth int    `cty:"depth,optional"`
}

// OnRunCheckout is the handler for the 'checkout' step type.
func OnRunCheckout(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	info := stepctx.FromContext(ctx)

	repo := input.Repo
	if repo == "" {
		repo = info.Event.Repo
	}
	if repo == "" {
		return cty.NilVal, fmt.Errorf("checkout requires a repository: none in arguments or push event")
	}
	ref := input.Ref
	if ref == "" {
		ref = info.Event.Ref
	}
	sha := input.SHA
	if sha == "" {
		sha = info.Event.SHA
	}

	dest := info.Workspace
	if input.Path != "" {
		dest = filepath.Join(dest, input.Path)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create checkout directory: %w", err)
	}

	logger.Info("Checking out repository", "repo", repo, "ref", ref, "sha", sha, "dest", dest)

	if sha != "" {
		// Fetch the exact commit the push points at.
		if err := runGit(ctx, dest, "init", "--quiet"); err != nil {
			return cty.NilVal, err
		}
		fetchArgs := []string{"fetch", "--quiet"}
		if input.Depth > 0 {
			fetchArgs = append(fetchArgs, fmt.Sprintf("--depth=%d", input.Depth))
		}
		fetchArgs = append(fetchArgs, repo, sha)
		if err := runGit(ctx, dest, fetchArgs...); err != nil {
			return cty.NilVal, err
		}
		if err := runGit(ctx, dest, "checkout", "--quiet", sha); err != nil {
			return cty.NilVal, err
		}
	} else {
		// No commit known: clone the branch head instead.
		cloneArgs := []string{"clone", "--quiet"}
		if input.Depth > 0 {
			cloneArgs = append(cloneArgs, fmt.Sprintf("--depth=%d", input.Depth))
		}
		if branch := strings.TrimPrefix(ref, "refs/heads/"); branch != "" {
			cloneArgs = append(cloneArgs, "--branch", branch)
		}
		cloneArgs = append(cloneArgs, repo, ".")
		if err := runGit(ctx, dest, cloneArgs...); err != nil {
			return cty.NilVal, err
		}
	}

	resolved, err := gitOutput(ctx, dest, "rev-parse", "HEAD")
	if err != nil {
		return cty.NilVal, err
	}

	outPath := input.Path
	if outPath == "" {
		outPath = "."
	}
	logger.Info("Checkout complete", "sha", resolved)
	return cty.ObjectVal(map[string]cty.Value{
		"path": cty.StringVal(outPath),
		"sha":  cty.StringVal(resolved),
	}), nil
}

// runGit executes a git command in dir, surfacing stderr on failure.
func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// gitOutput executes a git command in dir and returns its trimmed stdout.
func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("checkout", &registry.RegisteredStep{
		Description: "Fetches the repository working tree at the triggering commit.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunCheckout,
	})
}
