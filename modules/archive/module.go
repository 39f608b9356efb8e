// Package archive implements the step type that packs a build output
// directory into a gzip-compressed tarball.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/registry"
	"github.com/vk/pipewright/internal/stepctx"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'archive' step.
type Input struct {
	// Source is the directory to archive, relative to the workspace.
	Source string `cty:"source"`
	// Dest is the tarball path, relative to the workspace.
	Dest string `cty:"dest"`
}

// OnRunArchive is the handler for the 'archive' step type.
func OnRunArchive(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	info := stepctx.FromContext(ctx)

	source := filepath.Join(info.Workspace, input.Source)
	dest := filepath.Join(info.Workspace, input.Dest)

	srcInfo, err := os.Stat(source)
	if err != nil {
		return cty.NilVal, fmt.Errorf("archive source %q: %w", input.Source, err)
	}
	if !srcInfo.IsDir() {
		return cty.NilVal, fmt.Errorf("archive source %q is not a directory", input.Source)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create archive directory: %w", err)
	}

	size, err := writeTarball(ctx, source, dest)
	if err != nil {
		return cty.NilVal, err
	}

	logger.Info("Archive created", "path", dest, "size", size)
	// The reported path is workspace-relative so downstream steps can
	// feed it straight back into their own arguments.
	return cty.ObjectVal(map[string]cty.Value{
		"path": cty.StringVal(input.Dest),
		"size": cty.NumberIntVal(size),
	}), nil
}

// writeTarball streams the contents of sourceDir into a gzip tarball at
// destPath and returns the tarball's size in bytes.
func writeTarball(ctx context.Context, sourceDir, destPath string) (int64, error) {
	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive %q: %w", destPath, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		// The tarball itself may live inside the directory being
		// archived; never pack it into itself.
		if path == destPath {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() || !fi.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return 0, fmt.Errorf("failed to archive %q: %w", sourceDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	stat, err := os.Stat(destPath)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("archive", &registry.RegisteredStep{
		Description: "Creates a gzip-compressed tar archive of a directory.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunArchive,
	})
}
