// Package static provides the 'static' executor: it writes fixed content
// from the node's params into every declared output. Mostly used to seed
// root artifacts and in flow smoke tests.
package static

import (
	"context"

	"github.com/vlm/flowforge/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register wires the executor into the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("static", Run)
}

// Run is the handler for the 'static' executor.
func Run(ctx context.Context, inv *registry.Invocation) ([]registry.OutputFile, error) {
	content, err := registry.OptionalStringParam(inv.Params, "content", "")
	if err != nil {
		return nil, err
	}

	outputs := make([]registry.OutputFile, 0, len(inv.Outputs))
	for _, out := range inv.Outputs {
		if err := inv.Sandbox.WriteFile(ctx, inv.ProjectID, out.Path, []byte(content)); err != nil {
			return nil, err
		}
		outputs = append(outputs, registry.OutputFile{ArtifactID: out.ArtifactID, Path: out.Path, TypeTag: out.TypeTag})
	}
	return outputs, nil
}
