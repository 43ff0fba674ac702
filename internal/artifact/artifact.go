// Package artifact holds the versioned registry of work-products produced
// by flow nodes. A registered version is immutable; re-execution of the
// producing node appends version N+1 and never touches version N.
package artifact

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no matching artifact (or version) exists.
var ErrNotFound = errors.New("artifact: not found")

// Artifact is one immutable version of a work-product. (ProjectID, ID,
// Version) is the primary key.
type Artifact struct {
	ProjectID  string    `json:"project_id"`
	ID         string    `json:"artifact_id"`
	Version    int       `json:"version"`
	Path       string    `json:"path"`
	TypeTag    string    `json:"type_tag"`
	ProducedBy string    `json:"produced_by"`
	DependsOn  []string  `json:"depends_on,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Spec carries everything Register needs to mint a new version.
type Spec struct {
	ID         string
	Path       string
	TypeTag    string
	ProducedBy string
	DependsOn  []string
}

// Registry is the sole owner of artifact records. All components read it;
// only the scheduler writes to it, on behalf of completed nodes.
type Registry interface {
	// Register appends a new version for (projectID, spec.ID) and returns
	// its number: prior max + 1, or 1 if none exists. It never overwrites
	// an existing version.
	Register(ctx context.Context, projectID string, spec Spec) (int, error)
	// Get returns the latest version, or ErrNotFound.
	Get(ctx context.Context, projectID, artifactID string) (*Artifact, error)
	// GetVersion returns one specific version, or ErrNotFound.
	GetVersion(ctx context.Context, projectID, artifactID string, version int) (*Artifact, error)
	// ListByProject returns every registered version in insertion order.
	ListByProject(ctx context.Context, projectID string) ([]*Artifact, error)
}
