// Package loader reads flow definitions from declarative files. Two source
// formats are supported, dispatched by extension: HCL (.hcl) and YAML
// (.yaml/.yml). Every loaded definition is validated before it is returned;
// the loader never hands out a flow the scheduler could not legally run.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/flow"
)

// Loader discovers and parses flow definition files.
type Loader struct{}

// New creates a loader.
func New() *Loader {
	return &Loader{}
}

// Load parses every flow file under the given paths (files or directories)
// and returns the validated definitions.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*flow.Definition, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findFlowFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered flow files.", "count", len(files))

	var defs []*flow.Definition
	for _, file := range files {
		parsed, err := l.loadFile(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
		defs = append(defs, parsed...)
	}

	for _, d := range defs {
		if _, err := flow.Validate(d); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) ([]*flow.Definition, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return l.loadHCL(ctx, path)
	case ".yaml", ".yml":
		return l.loadYAML(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported flow file extension: %s", path)
	}
}

// findFlowFiles expands paths into the flat list of flow files: a file path
// is taken as-is, a directory is walked recursively.
func findFlowFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(d.Name())) {
			case ".hcl", ".yaml", ".yml":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
