// Package config defines the format-agnostic workflow model. Loaders for
// concrete formats (HCL natively, GitHub-Actions-style YAML via import)
// translate their schemas into this model; everything downstream of loading
// (graph construction, execution) depends only on this package.
package config
