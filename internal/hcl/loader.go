// Package hcl loads workflow definitions. HCL is the native format;
// GitHub-Actions-style YAML files found next to it are translated through
// the ghaimport package so both formats land in the same config model.
package hcl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/fsutil"
	"github.com/vk/pipewright/internal/ghaimport"
	"github.com/vk/pipewright/internal/schema"
)

// Loader reads .hcl, .yml and .yaml workflow files into the config model.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader returns a ready-to-use workflow loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := &config.Model{}

	for _, root := range paths {
		files, err := fsutil.FindFilesByExtension(root, ".hcl", ".yml", ".yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow path %q: %w", root, err)
		}
		if len(files) == 0 {
			logger.Warn("No workflow files found in path.", "path", root)
			continue
		}

		for _, filePath := range files {
			var workflows []*config.Workflow
			switch {
			case strings.HasSuffix(filePath, ".hcl"):
				workflows, err = l.loadHCLFile(filePath)
			default:
				workflows, err = l.loadYAMLFile(filePath)
			}
			if err != nil {
				return nil, err
			}
			logger.Debug("Loaded workflow file.", "file", filePath, "workflows", len(workflows))
			model.Workflows = append(model.Workflows, workflows...)
		}
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow configuration: %w", err)
	}
	logger.Info("Workflows loaded successfully.", "count", len(model.Workflows))
	return model, nil
}

// loadHCLFile parses and translates a single native workflow file.
func (l *Loader) loadHCLFile(filePath string) ([]*config.Workflow, error) {
	hclFile, diags := l.parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
	}

	var file schema.File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &file); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode workflow file %s: %w", filePath, diags)
	}

	workflows := make([]*config.Workflow, 0, len(file.Workflows))
	for _, wf := range file.Workflows {
		translated, err := translateWorkflow(wf)
		if err != nil {
			return nil, fmt.Errorf("invalid workflow in %s: %w", filePath, err)
		}
		workflows = append(workflows, translated)
	}
	return workflows, nil
}

// loadYAMLFile routes a GitHub-Actions-style workflow through the importer.
func (l *Loader) loadYAMLFile(filePath string) ([]*config.Workflow, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", filePath, err)
	}
	workflows, err := ghaimport.Translate(src)
	if err != nil {
		return nil, fmt.Errorf("failed to import workflow file %s: %w", filePath, err)
	}
	return workflows, nil
}
