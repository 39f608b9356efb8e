// Package setup_runtime implements the step type that provisions a pinned
// language runtime into the job workspace: download a tar.gz distribution,
// extract it, and expose its bin directory to later steps.
package setup_runtime

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/registry"
	"github.com/vk/pipewright/internal/stepctx"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// httpClient is shared across downloads to reuse TCP connections.
var httpClient = &http.Client{}

// Input defines the arguments for the 'setup_runtime' step. Either a full
// distribution URL or a Node.js version must be given.
type Input struct {
	URL     string `cty:"url,optional"`
	Version string `cty:"version,optional"`
	Dest    string `cty:"dest,optional"`
	// SHA256 optionally pins the archive's checksum; the download is
	// verified before anything is extracted.
	SHA256 string `cty:"sha256,optional"`
}

// nodeDistURL is the download pattern used when only a version is given.
const nodeDistURL = "https://nodejs.org/dist/v%s/node-v%s-linux-x64.tar.gz"

// OnRunSetupRuntime is the handler for the 'setup_runtime' step type.
func OnRunSetupRuntime(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	info := stepctx.FromContext(ctx)

	url := input.URL
	if url == "" {
		if input.Version == "" {
			return cty.NilVal, fmt.Errorf("setup_runtime requires either 'url' or 'version'")
		}
		url = fmt.Sprintf(nodeDistURL, input.Version, input.Version)
	}

	dest := input.Dest
	if dest == "" {
		dest = ".runtime"
	}
	destDir := filepath.Join(info.Workspace, dest)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	logger.Info("Downloading runtime", "url", url, "dest", destDir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to download runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cty.NilVal, fmt.Errorf("runtime download failed with status: %s", resp.Status)
	}

	// Spool the archive to disk first so the checksum can be verified
	// before a single byte is extracted.
	tmp, err := os.CreateTemp("", "pipewright-runtime-*.tar.gz")
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to stage runtime archive: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body); err != nil {
		return cty.NilVal, fmt.Errorf("failed to download runtime: %w", err)
	}
	if input.SHA256 != "" {
		got := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(got, input.SHA256) {
			return cty.NilVal, fmt.Errorf("runtime archive checksum mismatch: got %s, want %s", got, strings.ToLower(input.SHA256))
		}
		logger.Debug("Runtime archive checksum verified.", "sha256", got)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return cty.NilVal, fmt.Errorf("failed to extract runtime: %w", err)
	}

	binDir, err := extractTarGz(tmp, destDir)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to extract runtime: %w", err)
	}

	logger.Info("Runtime provisioned", "binDir", binDir)
	return cty.ObjectVal(map[string]cty.Value{
		"path":    cty.StringVal(destDir),
		"bin_dir": cty.StringVal(binDir),
	}), nil
}

// extractTarGz unpacks a gzip tarball into destDir and returns the first
// bin directory it encounters, or destDir when the archive has none.
func extractTarGz(r io.Reader, destDir string) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	binDir := ""
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		rel := filepath.Clean(filepath.FromSlash(header.Name))
		if rel == "." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || filepath.IsAbs(rel) {
			continue
		}
		target := filepath.Join(destDir, rel)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()); err != nil {
				return "", err
			}
			if binDir == "" && filepath.Base(target) == "bin" {
				binDir = target
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, header.FileInfo().Mode().Perm())
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return "", err
			}
			if err := f.Close(); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", err
			}
			// Replace any stale link left by a previous extraction.
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return "", err
			}
		}
	}

	if binDir == "" {
		binDir = destDir
	}
	return binDir, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("setup_runtime", &registry.RegisteredStep{
		Description: "Downloads and extracts a language runtime distribution.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunSetupRuntime,
	})
}
