// Package sandbox defines the project-scoped file namespace shared by all
// nodes of one project. The orchestrator never interprets file contents;
// it only moves bytes between the sandbox and node executors.
package sandbox

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a path does not exist in the project namespace.
var ErrNotFound = errors.New("sandbox: file not found")

// ErrInvalidPath is returned when a path would escape the project namespace.
var ErrInvalidPath = errors.New("sandbox: invalid path")

// Sandbox is the storage contract the orchestrator consumes. Paths are
// always relative to the project namespace; isolation between projects is
// the implementation's job.
type Sandbox interface {
	// Init creates the namespace for a project inside a workspace. It is
	// idempotent.
	Init(ctx context.Context, projectID, workspaceID string) error
	// ReadFile returns the contents of a file in the project namespace.
	ReadFile(ctx context.Context, projectID, path string) ([]byte, error)
	// WriteFile creates or replaces a file in the project namespace.
	WriteFile(ctx context.Context, projectID, path string, data []byte) error
	// List returns the relative paths of every file in the namespace.
	List(ctx context.Context, projectID string) ([]string, error)
	// Relocate moves the whole namespace to another workspace. Used by
	// project transfer; a failure here must leave the namespace usable in
	// its original workspace.
	Relocate(ctx context.Context, projectID, targetWorkspaceID string) error
}
