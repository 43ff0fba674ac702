// Package httpfetch provides the 'http_fetch' executor: it downloads a URL
// into the sandbox at the declared output path.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// httpClient is shared across executions to reuse TCP connections.
var httpClient = &http.Client{}

// Register wires the executor into the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("http_fetch", Run)
}

// Run is the handler for the 'http_fetch' executor.
func Run(ctx context.Context, inv *registry.Invocation) ([]registry.OutputFile, error) {
	logger := ctxlog.FromContext(ctx).With("executor", "http_fetch")

	if len(inv.Outputs) != 1 {
		return nil, fmt.Errorf("http_fetch requires exactly one declared output, got %d", len(inv.Outputs))
	}
	url, err := registry.StringParam(inv.Params, "url")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	logger.Debug("Fetched URL.", "url", url, "bytes", len(body))

	out := inv.Outputs[0]
	if err := inv.Sandbox.WriteFile(ctx, inv.ProjectID, out.Path, body); err != nil {
		return nil, err
	}
	return []registry.OutputFile{{ArtifactID: out.ArtifactID, Path: out.Path, TypeTag: out.TypeTag}}, nil
}
