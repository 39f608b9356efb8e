// Package artifact implements the step type that persists a build artifact.
// With an upload URL the file is PUT to the artifact store; without one it
// is retained in the run's local artifacts directory.
package artifact

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/registry"
	"github.com/vk/pipewright/internal/stepctx"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// httpClient is shared across uploads to reuse TCP connections.
var httpClient = &http.Client{}

// Input defines the arguments for the 'artifact' step.
type Input struct {
	// Name is the artifact name recorded with the upload.
	Name string `cty:"name"`
	// Source is the file to persist, relative to the workspace.
	Source string `cty:"source"`
	// UploadURL is the endpoint receiving the artifact. Empty selects
	// local retention under the run's artifacts directory.
	UploadURL string `cty:"upload_url,optional"`
}

// OnRunArtifact is the handler for the 'artifact' step type.
func OnRunArtifact(ctx context.Context, input *Input) (cty.Value, error) {
	info := stepctx.FromContext(ctx)

	source := filepath.Join(info.Workspace, input.Source)
	// The artifact must exist before any upload is attempted.
	stat, err := os.Stat(source)
	if err != nil {
		return cty.NilVal, fmt.Errorf("artifact source %q: %w", input.Source, err)
	}
	if stat.IsDir() {
		return cty.NilVal, fmt.Errorf("artifact source %q is a directory; archive it first", input.Source)
	}

	if input.UploadURL == "" {
		return retainLocally(ctx, input, source, stat.Size(), info.ArtifactsDir)
	}
	return upload(ctx, input, source, stat.Size())
}

// upload performs the HTTP PUT against the artifact store.
func upload(ctx context.Context, input *Input, source string, size int64) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("artifact", input.Name)

	file, err := os.Open(source)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to open artifact %q: %w", source, err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, input.UploadURL, file)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(source))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Artifact-Name", input.Name)
	req.ContentLength = size

	logger.Info("Uploading artifact", "source", source, "size", size, "contentType", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return cty.NilVal, fmt.Errorf("artifact upload failed with status: %s", resp.Status)
	}

	logger.Info("Successfully uploaded artifact", "status", resp.Status)
	return cty.ObjectVal(map[string]cty.Value{
		"name":     cty.StringVal(input.Name),
		"size":     cty.NumberIntVal(size),
		"status":   cty.StringVal(resp.Status),
		"uploaded": cty.True,
	}), nil
}

// retainLocally copies the artifact into the run's artifacts directory.
func retainLocally(ctx context.Context, input *Input, source string, size int64, artifactsDir string) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("artifact", input.Name)

	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	dest := filepath.Join(artifactsDir, input.Name)

	in, err := os.Open(source)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to open artifact %q: %w", source, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create artifact copy %q: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return cty.NilVal, fmt.Errorf("failed to retain artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return cty.NilVal, fmt.Errorf("failed to retain artifact: %w", err)
	}

	logger.Info("Artifact retained locally", "path", dest, "size", size)
	return cty.ObjectVal(map[string]cty.Value{
		"name":     cty.StringVal(input.Name),
		"size":     cty.NumberIntVal(size),
		"status":   cty.StringVal("retained"),
		"uploaded": cty.False,
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("artifact", &registry.RegisteredStep{
		Description: "Persists a build artifact by upload or local retention.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunArtifact,
	})
}
