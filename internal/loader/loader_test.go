package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlm/flowforge/internal/flow"
)

func writeFlowFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const reportHCL = `
flow "report" {
  node "fetch" {
    executor = "http_fetch"
    timeout  = "30s"
    params = {
      url = "https://example.com/data.json"
    }
    output {
      artifact = "raw"
      path     = "raw.json"
      type     = "json"
    }
  }

  node "render" {
    executor = "template"
    params = {
      template = "got {{ len .Inputs }} inputs"
    }
    input {
      artifact = "raw"
      alias    = "data"
    }
    output {
      artifact = "report"
      path     = "report.txt"
    }
    on_error {
      strategy     = "retry"
      retry_count  = 2
      on_exhausted = "skip"
    }
  }
}
`

func TestLoad_HCL(t *testing.T) {
	t.Parallel()
	path := writeFlowFile(t, "report.hcl", reportHCL)

	defs, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "report", def.ID)
	assert.True(t, def.Validated())
	require.Len(t, def.Nodes, 2)

	fetch := def.Node("fetch")
	require.NotNil(t, fetch)
	assert.Equal(t, "http_fetch", fetch.ExecutorRef)
	assert.Equal(t, 30*time.Second, fetch.Timeout)
	assert.Equal(t, "https://example.com/data.json", fetch.Params["url"])
	require.Len(t, fetch.Outputs, 1)
	assert.Equal(t, flow.Output{ArtifactID: "raw", Path: "raw.json", TypeTag: "json"}, fetch.Outputs[0])
	// The default policy is filled in during validation.
	assert.Equal(t, flow.StrategyTerminate, fetch.OnError.Strategy)

	render := def.Node("render")
	require.NotNil(t, render)
	require.Len(t, render.Inputs, 1)
	assert.Equal(t, flow.Input{ArtifactID: "raw", Alias: "data"}, render.Inputs[0])
	assert.Equal(t, flow.OnError{Strategy: flow.StrategyRetry, RetryCount: 2, OnExhausted: flow.StrategySkip}, render.OnError)

	assert.Equal(t, []flow.Edge{{From: "fetch", To: "render", ArtifactID: "raw"}}, def.Edges())
}

const reportYAML = `
flows:
  - id: report
    nodes:
      - id: fetch
        executor: http_fetch
        timeout: 30s
        params:
          url: https://example.com/data.json
        outputs:
          - artifact: raw
            path: raw.json
            type: json
      - id: render
        executor: template
        inputs:
          - artifact: raw
        outputs:
          - artifact: report
            path: report.txt
        on_error:
          strategy: skip
`

func TestLoad_YAML(t *testing.T) {
	t.Parallel()
	path := writeFlowFile(t, "report.yaml", reportYAML)

	defs, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "report", def.ID)
	assert.True(t, def.Validated())

	fetch := def.Node("fetch")
	require.NotNil(t, fetch)
	assert.Equal(t, 30*time.Second, fetch.Timeout)
	assert.Equal(t, "https://example.com/data.json", fetch.Params["url"])

	render := def.Node("render")
	require.NotNil(t, render)
	// Alias defaults to the artifact id.
	assert.Equal(t, flow.Input{ArtifactID: "raw", Alias: "raw"}, render.Inputs[0])
	assert.Equal(t, flow.StrategySkip, render.OnError.Strategy)
}

func TestLoad_Directory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`
flow "alpha" {
  node "gen" {
    executor = "static"
    output {
      artifact = "a"
      path     = "a.txt"
    }
  }
}
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(`
flows:
  - id: beta
    nodes:
      - id: gen
        executor: static
        outputs:
          - artifact: b
            path: b.txt
`), 0o600))
	// Non-flow files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o600))

	defs, err := New().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	ids := []string{defs[0].ID, defs[1].ID}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, ids)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing path", func(t *testing.T) {
		t.Parallel()
		_, err := New().Load(ctx, filepath.Join(t.TempDir(), "nope.hcl"))
		require.Error(t, err)
	})

	t.Run("malformed HCL", func(t *testing.T) {
		t.Parallel()
		path := writeFlowFile(t, "broken.hcl", `flow "x" { node "y" {`)
		_, err := New().Load(ctx, path)
		require.Error(t, err)
	})

	t.Run("invalid timeout", func(t *testing.T) {
		t.Parallel()
		path := writeFlowFile(t, "timeout.hcl", `
flow "x" {
  node "y" {
    executor = "static"
    timeout  = "soon"
    output {
      artifact = "a"
      path     = "a.txt"
    }
  }
}
`)
		_, err := New().Load(ctx, path)
		require.ErrorContains(t, err, "invalid timeout")
	})

	t.Run("structurally invalid flow", func(t *testing.T) {
		t.Parallel()
		path := writeFlowFile(t, "dangling.yaml", `
flows:
  - id: dangling
    nodes:
      - id: user
        executor: static
        inputs:
          - artifact: nowhere
`)
		_, err := New().Load(ctx, path)
		var refErr *flow.DanglingReferenceError
		require.ErrorAs(t, err, &refErr)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()
		path := writeFlowFile(t, "flow.toml", `x = 1`)
		_, err := New().Load(ctx, path)
		require.ErrorContains(t, err, "unsupported flow file extension")
	})
}
