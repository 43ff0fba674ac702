// Package project owns project lifecycle: creation, workspace transfer,
// state transitions, and the status surface the UI consumes.
package project

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a project's lifecycle state. Transitions between active and the
// terminal run states are driven exclusively by flow-run outcomes.
type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
	StatePaused    State = "paused"
	StateFailed    State = "failed"
)

// Project is a deliverable-scoped container binding one flow definition to
// one sandbox namespace. Projects are archived, never deleted.
type Project struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	HomeWorkspaceID string    `json:"home_workspace_id"`
	FlowID          string    `json:"flow_id"`
	State           State     `json:"state"`
	Archived        bool      `json:"archived"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ErrNotFound is returned when no project has the requested id.
var ErrNotFound = errors.New("project: not found")

// UnknownFlowError reports a flow_id that does not resolve to a validated
// flow definition.
type UnknownFlowError struct {
	FlowID string
}

func (e *UnknownFlowError) Error() string {
	return fmt.Sprintf("unknown flow %q", e.FlowID)
}

// TransferError reports a failed workspace transfer. The workspace id is
// guaranteed to be unchanged when this is returned.
type TransferError struct {
	ProjectID string
	Target    string
	Cause     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transferring project %q to workspace %q: %v", e.ProjectID, e.Target, e.Cause)
}

func (e *TransferError) Unwrap() error { return e.Cause }

// Store persists project records.
type Store interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	Update(ctx context.Context, p *Project) error
	List(ctx context.Context) ([]*Project, error)
}
