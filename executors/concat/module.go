// Package concat provides the 'concat' executor: it joins all resolved
// inputs, in alias order, into a single output file.
package concat

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/vlm/flowforge/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register wires the executor into the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("concat", Run)
}

// Run is the handler for the 'concat' executor.
func Run(ctx context.Context, inv *registry.Invocation) ([]registry.OutputFile, error) {
	if len(inv.Outputs) != 1 {
		return nil, fmt.Errorf("concat requires exactly one declared output, got %d", len(inv.Outputs))
	}
	separator, err := registry.OptionalStringParam(inv.Params, "separator", "\n")
	if err != nil {
		return nil, err
	}

	aliases := make([]string, 0, len(inv.Inputs))
	for alias := range inv.Inputs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	var buf bytes.Buffer
	for i, alias := range aliases {
		if i > 0 {
			buf.WriteString(separator)
		}
		buf.Write(inv.Inputs[alias])
	}

	out := inv.Outputs[0]
	if err := inv.Sandbox.WriteFile(ctx, inv.ProjectID, out.Path, buf.Bytes()); err != nil {
		return nil, err
	}
	return []registry.OutputFile{{ArtifactID: out.ArtifactID, Path: out.Path, TypeTag: out.TypeTag}}, nil
}
