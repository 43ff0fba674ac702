package project

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vlm/flowforge/internal/artifact"
	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/flow"
	"github.com/vlm/flowforge/internal/sandbox"
	"github.com/vlm/flowforge/internal/scheduler"
)

// Manager owns project records and binds each project to one validated
// flow definition and one sandbox namespace. It is the only component that
// mutates project state, and it does so solely from flow-run outcomes and
// the explicit lifecycle operations below.
type Manager struct {
	store     Store
	flows     *flow.Catalog
	artifacts artifact.Registry
	sandbox   sandbox.Sandbox
	exec      scheduler.Executor

	mu      sync.RWMutex
	live    map[string]*scheduler.Scheduler
	reports map[string]*scheduler.Report
}

// NewManager wires a manager with its collaborators.
func NewManager(store Store, flows *flow.Catalog, artifacts artifact.Registry, sb sandbox.Sandbox, exec scheduler.Executor) *Manager {
	return &Manager{
		store:     store,
		flows:     flows,
		artifacts: artifacts,
		sandbox:   sb,
		exec:      exec,
		live:      make(map[string]*scheduler.Scheduler),
		reports:   make(map[string]*scheduler.Report),
	}
}

// CreateProject creates an active project bound to a validated flow and
// initializes its sandbox namespace.
func (m *Manager) CreateProject(ctx context.Context, projectType, title, workspaceID, flowID string) (*Project, error) {
	if _, ok := m.flows.Get(flowID); !ok {
		return nil, &UnknownFlowError{FlowID: flowID}
	}
	now := time.Now()
	p := &Project{
		ID:              uuid.NewString(),
		Type:            projectType,
		Title:           title,
		HomeWorkspaceID: workspaceID,
		FlowID:          flowID,
		State:           StateActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.sandbox.Init(ctx, p.ID, workspaceID); err != nil {
		return nil, fmt.Errorf("initializing sandbox for project %q: %w", p.ID, err)
	}
	if err := m.store.Create(ctx, p); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Project created.", "project_id", p.ID, "flow_id", flowID, "workspace_id", workspaceID)
	return p, nil
}

// TransferProject atomically moves a project to another workspace. The
// workspace-id change and the sandbox relocation succeed or fail together:
// if relocation fails, the record is rolled back before returning, so the
// transfer is never observable as a partial state.
func (m *Manager) TransferProject(ctx context.Context, projectID, targetWorkspaceID string) error {
	logger := ctxlog.FromContext(ctx)
	p, err := m.store.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if p.HomeWorkspaceID == targetWorkspaceID {
		return nil
	}

	previous := p.HomeWorkspaceID
	p.HomeWorkspaceID = targetWorkspaceID
	p.UpdatedAt = time.Now()
	if err := m.store.Update(ctx, p); err != nil {
		return &TransferError{ProjectID: projectID, Target: targetWorkspaceID, Cause: err}
	}

	if err := m.sandbox.Relocate(ctx, projectID, targetWorkspaceID); err != nil {
		logger.Error("Sandbox relocation failed; rolling back workspace change.", "project_id", projectID, "error", err)
		p.HomeWorkspaceID = previous
		p.UpdatedAt = time.Now()
		if rbErr := m.store.Update(ctx, p); rbErr != nil {
			// The record still points at the new workspace while the files
			// stayed in the old one; surface both problems loudly.
			return &TransferError{ProjectID: projectID, Target: targetWorkspaceID,
				Cause: fmt.Errorf("relocation failed (%v) and rollback failed: %w", err, rbErr)}
		}
		return &TransferError{ProjectID: projectID, Target: targetWorkspaceID, Cause: err}
	}

	logger.Info("Project transferred.", "project_id", projectID, "workspace_id", targetWorkspaceID)
	return nil
}

// PauseProject suspends an active project. Paused projects refuse new runs.
func (m *Manager) PauseProject(ctx context.Context, projectID string) error {
	return m.transition(ctx, projectID, StateActive, StatePaused)
}

// ResumeProject reactivates a paused project.
func (m *Manager) ResumeProject(ctx context.Context, projectID string) error {
	return m.transition(ctx, projectID, StatePaused, StateActive)
}

// ArchiveProject marks a project archived. Archived projects are retained
// forever; nothing is deleted.
func (m *Manager) ArchiveProject(ctx context.Context, projectID string) error {
	p, err := m.store.Get(ctx, projectID)
	if err != nil {
		return err
	}
	p.Archived = true
	p.UpdatedAt = time.Now()
	return m.store.Update(ctx, p)
}

func (m *Manager) transition(ctx context.Context, projectID string, from, to State) error {
	p, err := m.store.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if p.State != from {
		return fmt.Errorf("project %q is %s, expected %s", projectID, p.State, from)
	}
	p.State = to
	p.UpdatedAt = time.Now()
	return m.store.Update(ctx, p)
}

// RunFlow executes the project's flow and applies the terminal outcome to
// the project state. This is the sole path by which a project becomes
// completed or failed.
func (m *Manager) RunFlow(ctx context.Context, projectID string, opts scheduler.Options) (*scheduler.Report, error) {
	p, err := m.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Archived || (p.State != StateActive && p.State != StateFailed) {
		return nil, fmt.Errorf("project %q is not runnable (state %s)", projectID, p.State)
	}
	def, ok := m.flows.Get(p.FlowID)
	if !ok {
		return nil, &UnknownFlowError{FlowID: p.FlowID}
	}

	sched, err := scheduler.New(def, m.artifacts, m.sandbox, m.exec, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, inFlight := m.live[projectID]; inFlight {
		m.mu.Unlock()
		return nil, fmt.Errorf("project %q already has a run in flight", projectID)
	}
	m.live[projectID] = sched
	m.mu.Unlock()

	report, runErr := sched.Run(ctx, projectID)

	m.mu.Lock()
	delete(m.live, projectID)
	m.reports[projectID] = report
	m.mu.Unlock()

	if report.Succeeded() {
		p.State = StateCompleted
	} else {
		p.State = StateFailed
	}
	p.UpdatedAt = time.Now()
	if err := m.store.Update(ctx, p); err != nil {
		return report, err
	}
	return report, runErr
}

// Status is the UI-facing view of one project.
type Status struct {
	Project   *Project                        `json:"project"`
	Nodes     map[string]scheduler.NodeStatus `json:"nodes,omitempty"`
	Artifacts []*artifact.Artifact            `json:"artifacts"`
}

// GetProjectStatus returns the project record, the per-node run states of
// the live run (or the last finished one), and the artifact history.
func (m *Manager) GetProjectStatus(ctx context.Context, projectID string) (*Status, error) {
	p, err := m.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var nodes map[string]scheduler.NodeStatus
	m.mu.RLock()
	if sched, ok := m.live[projectID]; ok {
		nodes = sched.Snapshot()
	} else if report, ok := m.reports[projectID]; ok {
		nodes = report.Nodes
	}
	m.mu.RUnlock()

	artifacts, err := m.artifacts.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Status{Project: p, Nodes: nodes, Artifacts: artifacts}, nil
}

// ListProjects returns all project records.
func (m *Manager) ListProjects(ctx context.Context) ([]*Project, error) {
	return m.store.List(ctx)
}
