package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// A flow file with a syntax error makes app.NewApp panic during loading;
	// run must recover it into a clean error.
	invalidHCL := `
		flow "report" {
			node "gen" {
		// Missing closing braces here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0o600)
	require.NoError(t, err, "failed to set up test file")

	out := &bytes.Buffer{}
	runErr := run(out, []string{filePath})

	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")
	assert.True(t, strings.Contains(runErr.Error(), "application startup panicked"), "the error should indicate a recovered panic")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})
	require.NoError(t, err, "the help flag is a clean exit")
}

func TestRun_OneShotFlow(t *testing.T) {
	t.Parallel()

	flowHCL := `
flow "hello" {
  node "seed" {
    executor = "static"
    params = {
      content = "hello world"
    }
    output {
      artifact = "greeting"
      path     = "greeting.txt"
    }
  }

  node "shout" {
    executor = "template"
    params = {
      template = "{{.Inputs.greeting}}!!!"
    }
    input {
      artifact = "greeting"
    }
    output {
      artifact = "loud-greeting"
      path     = "loud.txt"
    }
  }
}
`
	tempDir := t.TempDir()
	flowPath := filepath.Join(tempDir, "hello.hcl")
	require.NoError(t, os.WriteFile(flowPath, []byte(flowHCL), 0o600))

	out := &bytes.Buffer{}
	err := run(out, []string{
		"-sandbox-root", filepath.Join(tempDir, "sandbox"),
		"-log-level", "error",
		flowPath,
	})
	require.NoError(t, err)

	// The report lists both nodes as completed.
	assert.Contains(t, out.String(), "seed")
	assert.Contains(t, out.String(), "shout")
	assert.Contains(t, out.String(), "completed")

	// The rendered artifact landed in the project sandbox.
	matches, err := filepath.Glob(filepath.Join(tempDir, "sandbox", "default", "*", "loud.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world!!!", string(data))
}

func TestRun_FailingFlowReturnsError(t *testing.T) {
	t.Parallel()

	flowHCL := `
flow "broken" {
  node "fetch" {
    executor = "http_fetch"
    params = {
      url = "http://127.0.0.1:1/unreachable"
    }
    output {
      artifact = "raw"
      path     = "raw.json"
    }
  }
}
`
	tempDir := t.TempDir()
	flowPath := filepath.Join(tempDir, "broken.hcl")
	require.NoError(t, os.WriteFile(flowPath, []byte(flowHCL), 0o600))

	out := &bytes.Buffer{}
	err := run(out, []string{
		"-sandbox-root", filepath.Join(tempDir, "sandbox"),
		"-log-level", "error",
		flowPath,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution failed")
}
