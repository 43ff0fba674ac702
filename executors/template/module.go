// Package template provides the 'template' executor: it renders a Go
// text/template from the node's params over the resolved inputs. Input
// contents are exposed as .Inputs[alias] strings, params as .Params.
package template

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/vlm/flowforge/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register wires the executor into the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("template", Run)
}

type renderContext struct {
	Inputs map[string]string
	Params map[string]any
}

// Run is the handler for the 'template' executor.
func Run(ctx context.Context, inv *registry.Invocation) ([]registry.OutputFile, error) {
	if len(inv.Outputs) != 1 {
		return nil, fmt.Errorf("template requires exactly one declared output, got %d", len(inv.Outputs))
	}
	source, err := registry.StringParam(inv.Params, "template")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(inv.NodeID).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	rc := renderContext{Inputs: make(map[string]string, len(inv.Inputs)), Params: inv.Params}
	for alias, data := range inv.Inputs {
		rc.Inputs[alias] = string(data)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, rc); err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}

	out := inv.Outputs[0]
	if err := inv.Sandbox.WriteFile(ctx, inv.ProjectID, out.Path, buf.Bytes()); err != nil {
		return nil, err
	}
	return []registry.OutputFile{{ArtifactID: out.ArtifactID, Path: out.Path, TypeTag: out.TypeTag}}, nil
}
