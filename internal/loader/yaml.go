package loader

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/flow"
)

// yamlFlow mirrors the HCL schema for teams that keep flows in YAML.
type yamlFlow struct {
	ID    string      `yaml:"id"`
	Nodes []*yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	ID       string         `yaml:"id"`
	Executor string         `yaml:"executor"`
	Timeout  string         `yaml:"timeout"`
	Params   map[string]any `yaml:"params"`
	Inputs   []*yamlInput   `yaml:"inputs"`
	Outputs  []*yamlOutput  `yaml:"outputs"`
	OnError  *yamlOnError   `yaml:"on_error"`
}

type yamlInput struct {
	Artifact string `yaml:"artifact"`
	Alias    string `yaml:"alias"`
}

type yamlOutput struct {
	Artifact string `yaml:"artifact"`
	Path     string `yaml:"path"`
	Type     string `yaml:"type"`
}

type yamlOnError struct {
	Strategy    string `yaml:"strategy"`
	RetryCount  int    `yaml:"retry_count"`
	OnExhausted string `yaml:"on_exhausted"`
}

type yamlRoot struct {
	Flows []*yamlFlow `yaml:"flows"`
}

// loadYAML parses one YAML flow file into definitions.
func (l *Loader) loadYAML(ctx context.Context, path string) ([]*flow.Definition, error) {
	ctxlog.FromContext(ctx).Debug("Parsing YAML flow file.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var root yamlRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding YAML: %w", err)
	}

	defs := make([]*flow.Definition, 0, len(root.Flows))
	for _, f := range root.Flows {
		def, err := translateYAMLFlow(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func translateYAMLFlow(f *yamlFlow) (*flow.Definition, error) {
	def := &flow.Definition{ID: f.ID}
	for _, n := range f.Nodes {
		node := &flow.Node{
			ID:          n.ID,
			ExecutorRef: n.Executor,
			Params:      n.Params,
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
		def.Nodes = append(def.Nodes, node)
	}
	return def, nil
}
