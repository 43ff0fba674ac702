package artifact

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry is an in-process Registry used by one-shot CLI runs and
// tests. Registration is serialized by a single mutex, which is more than
// the invariants require (distinct artifact ids need no mutual exclusion)
// but keeps the insertion-order log trivially correct.
type MemoryRegistry struct {
	mu       sync.RWMutex
	versions map[string][]*Artifact // key: projectID + "/" + artifactID
	byOrder  map[string][]*Artifact // key: projectID, insertion order
	now      func() time.Time
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		versions: make(map[string][]*Artifact),
		byOrder:  make(map[string][]*Artifact),
		now:      time.Now,
	}
}

func key(projectID, artifactID string) string {
	return projectID + "/" + artifactID
}

// Register implements Registry.
func (r *MemoryRegistry) Register(ctx context.Context, projectID string, spec Spec) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(projectID, spec.ID)
	a := &Artifact{
		ProjectID:  projectID,
		ID:         spec.ID,
		Version:    len(r.versions[k]) + 1,
		Path:       spec.Path,
		TypeTag:    spec.TypeTag,
		ProducedBy: spec.ProducedBy,
		DependsOn:  append([]string(nil), spec.DependsOn...),
		CreatedAt:  r.now(),
	}
	r.versions[k] = append(r.versions[k], a)
	r.byOrder[projectID] = append(r.byOrder[projectID], a)
	return a.Version, nil
}

// Get implements Registry.
func (r *MemoryRegistry) Get(ctx context.Context, projectID, artifactID string) (*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vs := r.versions[key(projectID, artifactID)]
	if len(vs) == 0 {
		return nil, ErrNotFound
	}
	return clone(vs[len(vs)-1]), nil
}

// GetVersion implements Registry.
func (r *MemoryRegistry) GetVersion(ctx context.Context, projectID, artifactID string, version int) (*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vs := r.versions[key(projectID, artifactID)]
	if version < 1 || version > len(vs) {
		return nil, ErrNotFound
	}
	return clone(vs[version-1]), nil
}

// ListByProject implements Registry.
func (r *MemoryRegistry) ListByProject(ctx context.Context, projectID string) ([]*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := r.byOrder[projectID]
	out := make([]*Artifact, len(ordered))
	for i, a := range ordered {
		out[i] = clone(a)
	}
	return out, nil
}

// clone copies a record so callers can never mutate a registered version.
func clone(a *Artifact) *Artifact {
	c := *a
	c.DependsOn = append([]string(nil), a.DependsOn...)
	return &c
}
