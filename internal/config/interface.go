package config

import "context"

// Loader translates workflow files from a concrete format into the model.
type Loader interface {
	// Load reads every workflow definition reachable from the given paths
	// (files or directories) and returns the merged, validated model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
