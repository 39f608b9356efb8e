package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath points at a workflow file or a directory of them.
	WorkflowPath string
	// Workspace is the run's working directory. Empty selects a fresh
	// temporary directory per run.
	Workspace string
	// ArtifactsDir receives locally retained artifacts. It lives outside
	// the disposable workspace so artifacts survive the run.
	ArtifactsDir string

	// Repo, Ref and SHA describe the push event that triggered the run.
	Repo string
	Ref  string
	SHA  string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	if cfg.Ref == "" {
		cfg.Ref = "refs/heads/main"
	}
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = "artifacts"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !logFormats[cfg.LogFormat] {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	return &cfg, nil
}
