package app

import (
	"github.com/vk/pipewright/internal/registry"
	"github.com/vk/pipewright/modules/archive"
	"github.com/vk/pipewright/modules/artifact"
	"github.com/vk/pipewright/modules/checkout"
	"github.com/vk/pipewright/modules/env_vars"
	"github.com/vk/pipewright/modules/setup_runtime"
	"github.com/vk/pipewright/modules/shell"
)

// coreModules is the definitive list of all step modules that are compiled
// into the pipewright binary.
var coreModules = []registry.Module{
	&checkout.Module{},
	&setup_runtime.Module{},
	&shell.Module{},
	&archive.Module{},
	&artifact.Module{},
	&env_vars.Module{},
}
