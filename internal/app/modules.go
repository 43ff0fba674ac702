package app

import (
	"github.com/vlm/flowforge/executors/concat"
	"github.com/vlm/flowforge/executors/httpfetch"
	"github.com/vlm/flowforge/executors/static"
	"github.com/vlm/flowforge/executors/template"
	"github.com/vlm/flowforge/internal/registry"
)

// coreModules is the definitive list of executor packs compiled into the
// flowforge binary.
var coreModules = []registry.Module{
	&static.Module{},
	&concat.Module{},
	&template.Module{},
	&httpfetch.Module{},
}
