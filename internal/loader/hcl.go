package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/flow"
)

// hclRoot decodes the top-level blocks of one flow file.
type hclRoot struct {
	Flows []*hclFlow `hcl:"flow,block"`
}

type hclFlow struct {
	ID    string     `hcl:"id,label"`
	Nodes []*hclNode `hcl:"node,block"`
}

type hclNode struct {
	ID       string         `hcl:"id,label"`
	Executor string         `hcl:"executor"`
	Timeout  string         `hcl:"timeout,optional"`
	Params   hcl.Expression `hcl:"params,optional"`
	Inputs   []*hclInput    `hcl:"input,block"`
	Outputs  []*hclOutput   `hcl:"output,block"`
	OnError  *hclOnError    `hcl:"on_error,block"`
}

type hclInput struct {
	Artifact string `hcl:"artifact"`
	Alias    string `hcl:"alias,optional"`
}

type hclOutput struct {
	Artifact string `hcl:"artifact"`
	Path     string `hcl:"path"`
	Type     string `hcl:"type,optional"`
}

type hclOnError struct {
	Strategy    string `hcl:"strategy"`
	RetryCount  int    `hcl:"retry_count,optional"`
	OnExhausted string `hcl:"on_exhausted,optional"`
}

// loadHCL parses one HCL flow file into definitions.
func (l *Loader) loadHCL(ctx context.Context, path string) ([]*flow.Definition, error) {
	ctxlog.FromContext(ctx).Debug("Parsing HCL flow file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing HCL: %w", diags)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding HCL: %w", diags)
	}

	defs := make([]*flow.Definition, 0, len(root.Flows))
	for _, f := range root.Flows {
		def, err := translateHCLFlow(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func translateHCLFlow(f *hclFlow) (*flow.Definition, error) {
	def := &flow.Definition{ID: f.ID}
	for _, n := range f.Nodes {
		node := &flow.Node{
			ID:          n.ID,
			ExecutorRef: n.Executor,
		}
		for _, in := range n.Inputs {
			alias := in.Alias
			if alias == "" {
				alias = in.Artifact
			}
			node.Inputs = append(node.Inputs, flow.Input{ArtifactID: in.Artifact, Alias: alias})
		}
		for _, out := range n.Outputs {
			node.Outputs = append(node.Outputs, flow.Output{ArtifactID: out.Artifact, Path: out.Path, TypeTag: out.Type})
		}
		if n.OnError != nil {
			node.OnError = flow.OnError{
				Strategy:    flow.Strategy(n.OnError.Strategy),
				RetryCount:  n.OnError.RetryCount,
				OnExhausted: flow.Strategy(n.OnError.OnExhausted),
			}
		}
		if n.Timeout != "" {
			d, err := time.ParseDuration(n.Timeout)
			if err != nil {
				return nil, fmt.Errorf("flow %q node %q: invalid timeout: %w", f.ID, n.ID, err)
			}
			node.Timeout = d
		}
		params, err := decodeParams(n.Params)
		if err != nil {
			return nil, fmt.Errorf("flow %q node %q: %w", f.ID, n.ID, err)
		}
		node.Params = params
		def.Nodes = append(def.Nodes, node)
	}
	return def, nil
}

// decodeParams statically evaluates the params expression and converts the
// resulting cty value into plain Go values the executor can consume.
func decodeParams(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating params: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	converted, err := ctyToGo(val)
	if err != nil {
		return nil, fmt.Errorf("converting params: %w", err)
	}
	params, ok := converted.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("params must be an object, got %T", converted)
	}
	return params, nil
}
