package project

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlm/flowforge/internal/artifact"
	"github.com/vlm/flowforge/internal/flow"
	"github.com/vlm/flowforge/internal/registry"
	"github.com/vlm/flowforge/internal/sandbox"
	"github.com/vlm/flowforge/internal/scheduler"
)

// echoExecutor writes the node id into each declared output.
type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, inv *registry.Invocation) ([]registry.OutputFile, error) {
	outputs := make([]registry.OutputFile, 0, len(inv.Outputs))
	for _, out := range inv.Outputs {
		if err := inv.Sandbox.WriteFile(ctx, inv.ProjectID, out.Path, []byte(inv.NodeID)); err != nil {
			return nil, err
		}
		outputs = append(outputs, registry.OutputFile{ArtifactID: out.ArtifactID, Path: out.Path})
	}
	return outputs, nil
}

// failingExecutor always fails so runs end in the failed state.
type failingExecutor struct{}

func (failingExecutor) Execute(ctx context.Context, inv *registry.Invocation) ([]registry.OutputFile, error) {
	return nil, errors.New("executor broke")
}

func testFlows(t *testing.T) *flow.Catalog {
	t.Helper()
	c := flow.NewCatalog()
	require.NoError(t, c.Add(&flow.Definition{
		ID: "pipeline",
		Nodes: []*flow.Node{
			{ID: "gen", ExecutorRef: "echo", Outputs: []flow.Output{{ArtifactID: "report", Path: "report.txt"}}},
			{ID: "use", ExecutorRef: "echo",
				Inputs:  []flow.Input{{ArtifactID: "report", Alias: "report"}},
				Outputs: []flow.Output{{ArtifactID: "final", Path: "final.txt"}}},
		},
	}))
	return c
}

func newTestManager(t *testing.T, exec scheduler.Executor) *Manager {
	t.Helper()
	return NewManager(NewMemoryStore(), testFlows(t), artifact.NewMemoryRegistry(), sandbox.NewLocalDir(t.TempDir()), exec)
}

func TestCreateProject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t, echoExecutor{})

	p, err := m.CreateProject(ctx, "deliverable", "Quarterly report", "ws-1", "pipeline")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, StateActive, p.State)
	assert.Equal(t, "ws-1", p.HomeWorkspaceID)
	assert.False(t, p.Archived)

	t.Run("unknown flow", func(t *testing.T) {
		_, err := m.CreateProject(ctx, "deliverable", "Broken", "ws-1", "no-such-flow")
		var ufe *UnknownFlowError
		require.ErrorAs(t, err, &ufe)
		assert.Equal(t, "no-such-flow", ufe.FlowID)
	})
}

func TestRunFlow_AppliesOutcomeToProjectState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success completes the project", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, echoExecutor{})
		p, err := m.CreateProject(ctx, "deliverable", "T", "ws-1", "pipeline")
		require.NoError(t, err)

		report, err := m.RunFlow(ctx, p.ID, scheduler.Options{})
		require.NoError(t, err)
		assert.True(t, report.Succeeded())

		got, err := m.store.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, got.State)
	})

	t.Run("failure fails the project and allows re-run", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, failingExecutor{})
		p, err := m.CreateProject(ctx, "deliverable", "T", "ws-1", "pipeline")
		require.NoError(t, err)

		_, err = m.RunFlow(ctx, p.ID, scheduler.Options{})
		require.Error(t, err)

		got, err := m.store.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, StateFailed, got.State)

		// Failed projects stay runnable.
		_, err = m.RunFlow(ctx, p.ID, scheduler.Options{})
		require.Error(t, err, "executor still broken")
	})

	t.Run("paused and archived projects refuse runs", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, echoExecutor{})
		p, err := m.CreateProject(ctx, "deliverable", "T", "ws-1", "pipeline")
		require.NoError(t, err)

		require.NoError(t, m.PauseProject(ctx, p.ID))
		_, err = m.RunFlow(ctx, p.ID, scheduler.Options{})
		assert.Error(t, err)

		require.NoError(t, m.ResumeProject(ctx, p.ID))
		require.NoError(t, m.ArchiveProject(ctx, p.ID))
		_, err = m.RunFlow(ctx, p.ID, scheduler.Options{})
		assert.Error(t, err)
	})

	t.Run("unknown project", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, echoExecutor{})
		_, err := m.RunFlow(ctx, "ghost", scheduler.Options{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPauseResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t, echoExecutor{})
	p, err := m.CreateProject(ctx, "deliverable", "T", "ws-1", "pipeline")
	require.NoError(t, err)

	require.NoError(t, m.PauseProject(ctx, p.ID))
	// Pausing twice is an invalid transition.
	assert.Error(t, m.PauseProject(ctx, p.ID))
	// Resuming an active project is too.
	require.NoError(t, m.ResumeProject(ctx, p.ID))
	assert.Error(t, m.ResumeProject(ctx, p.ID))
}

func TestTransferProject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("moves record and sandbox together", func(t *testing.T) {
		t.Parallel()
		sb := sandbox.NewLocalDir(t.TempDir())
		m := NewManager(NewMemoryStore(), testFlows(t), artifact.NewMemoryRegistry(), sb, echoExecutor{})
		p, err := m.CreateProject(ctx, "deliverable", "T", "ws-old", "pipeline")
		require.NoError(t, err)
		require.NoError(t, sb.WriteFile(ctx, p.ID, "kept.txt", []byte("x")))

		require.NoError(t, m.TransferProject(ctx, p.ID, "ws-new"))

		got, err := m.store.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "ws-new", got.HomeWorkspaceID)

		// Files still reachable through the project namespace.
		_, err = sb.ReadFile(ctx, p.ID, "kept.txt")
		assert.NoError(t, err)
	})

	t.Run("same workspace is a no-op", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, echoExecutor{})
		p, err := m.CreateProject(ctx, "deliverable", "T", "ws-1", "pipeline")
		require.NoError(t, err)
		assert.NoError(t, m.TransferProject(ctx, p.ID, "ws-1"))
	})

	t.Run("rolls back the record when relocation fails", func(t *testing.T) {
		t.Parallel()
		sb := &brokenRelocateSandbox{LocalDir: sandbox.NewLocalDir(t.TempDir())}
		m := NewManager(NewMemoryStore(), testFlows(t), artifact.NewMemoryRegistry(), sb, echoExecutor{})
		p, err := m.CreateProject(ctx, "deliverable", "T", "ws-old", "pipeline")
		require.NoError(t, err)

		err = m.TransferProject(ctx, p.ID, "ws-new")
		var te *TransferError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, p.ID, te.ProjectID)

		// No partial state: the record still points at the old workspace.
		got, err := m.store.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "ws-old", got.HomeWorkspaceID)
	})
}

// brokenRelocateSandbox fails every relocation attempt.
type brokenRelocateSandbox struct {
	*sandbox.LocalDir
}

func (b *brokenRelocateSandbox) Relocate(ctx context.Context, projectID, targetWorkspaceID string) error {
	return errors.New("disk on fire")
}

func TestGetProjectStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t, echoExecutor{})
	p, err := m.CreateProject(ctx, "deliverable", "T", "ws-1", "pipeline")
	require.NoError(t, err)

	t.Run("before any run", func(t *testing.T) {
		status, err := m.GetProjectStatus(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, status.Project.ID)
		assert.Empty(t, status.Nodes)
		assert.Empty(t, status.Artifacts)
	})

	_, err = m.RunFlow(ctx, p.ID, scheduler.Options{})
	require.NoError(t, err)

	t.Run("after a run", func(t *testing.T) {
		status, err := m.GetProjectStatus(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, status.Project.State)
		require.Len(t, status.Nodes, 2)
		assert.Equal(t, scheduler.Completed, status.Nodes["gen"].State)
		require.Len(t, status.Artifacts, 2)
		assert.Equal(t, "report", status.Artifacts[0].ID)
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := m.GetProjectStatus(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	p := &Project{ID: "p1", Title: "first", State: StateActive}
	require.NoError(t, s.Create(ctx, p))
	assert.Error(t, s.Create(ctx, p), "duplicate id")

	// Store hands out copies, never shared pointers.
	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	got.Title = "mutated"
	again, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "first", again.Title)

	got.ID = "p1"
	got.Title = "updated"
	require.NoError(t, s.Update(ctx, got))
	again, err = s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "updated", again.Title)

	assert.ErrorIs(t, s.Update(ctx, &Project{ID: "ghost"}), ErrNotFound)
	_, err = s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
