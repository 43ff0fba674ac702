package sandbox

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vlm/flowforge/internal/ctxlog"
)

// LocalDir stores each project namespace as <root>/<workspace>/<project>.
// It tracks which workspace currently holds each project so reads and
// writes stay valid across relocations.
type LocalDir struct {
	root string

	mu         sync.RWMutex
	workspaces map[string]string // projectID -> workspaceID
}

// NewLocalDir creates a sandbox rooted at dir.
func NewLocalDir(dir string) *LocalDir {
	return &LocalDir{root: dir, workspaces: make(map[string]string)}
}

// Init implements Sandbox.
func (s *LocalDir) Init(ctx context.Context, projectID, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.workspaces[projectID]; ok && ws != workspaceID {
		return fmt.Errorf("sandbox: project %q already initialized in workspace %q", projectID, ws)
	}
	if err := os.MkdirAll(filepath.Join(s.root, workspaceID, projectID), 0o755); err != nil {
		return err
	}
	s.workspaces[projectID] = workspaceID
	return nil
}

// ReadFile implements Sandbox.
func (s *LocalDir) ReadFile(ctx context.Context, projectID, path string) ([]byte, error) {
	full, err := s.resolve(projectID, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

// WriteFile implements Sandbox.
func (s *LocalDir) WriteFile(ctx context.Context, projectID, path string, data []byte) error {
	full, err := s.resolve(projectID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// List implements Sandbox.
func (s *LocalDir) List(ctx context.Context, projectID string) ([]string, error) {
	base, err := s.projectDir(projectID)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Relocate implements Sandbox. The rename is atomic on a single filesystem;
// on failure the namespace stays where it was.
func (s *LocalDir) Relocate(ctx context.Context, projectID, targetWorkspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.workspaces[projectID]
	if !ok {
		return fmt.Errorf("sandbox: unknown project %q", projectID)
	}
	if ws == targetWorkspaceID {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(s.root, targetWorkspaceID), 0o755); err != nil {
		return err
	}
	oldDir := filepath.Join(s.root, ws, projectID)
	newDir := filepath.Join(s.root, targetWorkspaceID, projectID)
	if err := os.Rename(oldDir, newDir); err != nil {
		return err
	}
	s.workspaces[projectID] = targetWorkspaceID
	ctxlog.FromContext(ctx).Debug("Sandbox relocated.", "project_id", projectID, "workspace_id", targetWorkspaceID)
	return nil
}

func (s *LocalDir) projectDir(projectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[projectID]
	if !ok {
		return "", fmt.Errorf("sandbox: unknown project %q", projectID)
	}
	return filepath.Join(s.root, ws, projectID), nil
}

// resolve joins a relative path onto the project dir and rejects anything
// that would escape it.
func (s *LocalDir) resolve(projectID, path string) (string, error) {
	base, err := s.projectDir(projectID)
	if err != nil {
		return "", err
	}
	if path == "" || filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(base, clean), nil
}
