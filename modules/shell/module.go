// Package shell implements the step type that runs build commands. The
// commands execute as a single `sh -e` script so that `cd` persists between
// lines and the first non-zero exit aborts the step, matching ordinary CI
// exit-code propagation.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/registry"
	"github.com/vk/pipewright/internal/stepctx"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'shell' step.
type Input struct {
	Run        []string          `cty:"run"`
	WorkingDir string            `cty:"working_dir,optional"`
	Env        map[string]string `cty:"env,optional"`
}

// stderrTailLimit bounds how much captured stderr is attached to errors.
const stderrTailLimit = 2048

// stderrTail returns the last portion of captured stderr. A long capture is
// cut at the limit and then advanced to the next line boundary, or at least
// to the next rune boundary, so the error never opens mid-line or mid-rune.
func stderrTail(s string) string {
	if len(s) <= stderrTailLimit {
		return strings.TrimSpace(s)
	}
	tail := s[len(s)-stderrTailLimit:]
	if i := strings.IndexByte(tail, '\n'); i >= 0 && i+1 < len(tail) {
		tail = tail[i+1:]
	} else {
		for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
			tail = tail[1:]
		}
	}
	return strings.TrimSpace(tail)
}

// OnRunShell is the handler for the 'shell' step type.
func OnRunShell(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	info := stepctx.FromContext(ctx)

	if len(input.Run) == 0 {
		return cty.NilVal, fmt.Errorf("shell step requires at least one command")
	}

	dir := info.Workspace
	if input.WorkingDir != "" {
		dir = filepath.Join(dir, input.WorkingDir)
	}

	script := strings.Join(input.Run, "\n")
	logger.Info("Running shell script", "commands", len(input.Run), "dir", dir)

	cmd := exec.CommandContext(ctx, "sh", "-e", "-c", script)
	cmd.Dir = dir
	cmd.Env = mergedEnv(info.Env, input.Env, info.PathDirs)

	var stderr bytes.Buffer
	cmd.Stdout = logWriter{logger: logger}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return cty.NilVal, fmt.Errorf("shell script failed: %w\nstderr: %s", err, stderrTail(stderr.String()))
	}

	return cty.ObjectVal(map[string]cty.Value{
		"commands": cty.NumberIntVal(int64(len(input.Run))),
	}), nil
}

// mergedEnv layers the process environment, run env and step env, always
// forcing CI=true the way hosted CI runners do. Bin directories of runtimes
// provisioned earlier in the run are prepended to PATH so later steps find
// their tools.
func mergedEnv(runEnv, stepEnv map[string]string, pathDirs []string) []string {
	merged := make(map[string]string)
	for _, entry := range os.Environ() {
		if pair := strings.SplitN(entry, "=", 2); len(pair) == 2 {
			merged[pair[0]] = pair[1]
		}
	}
	for k, v := range runEnv {
		merged[k] = v
	}
	for k, v := range stepEnv {
		merged[k] = v
	}
	merged["CI"] = "true"
	if len(pathDirs) > 0 {
		path := strings.Join(pathDirs, string(os.PathListSeparator))
		if existing := merged["PATH"]; existing != "" {
			path += string(os.PathListSeparator) + existing
		}
		merged["PATH"] = path
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

// logWriter forwards command stdout to the step logger line by line.
type logWriter struct {
	logger *slog.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.logger.Info("| " + line)
		}
	}
	return len(p), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("shell", &registry.RegisteredStep{
		Description: "Runs a list of shell commands in the job workspace.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunShell,
	})
}
