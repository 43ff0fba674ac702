// Package events publishes flow-run progress to UI and telemetry consumers.
// Emitters are fire-and-forget: a slow or absent consumer must never stall
// the scheduler's control loop.
package events

import (
	"context"
	"time"
)

// Type names one kind of run event.
type Type string

const (
	// TypeNodeState is emitted on every node run-state transition.
	TypeNodeState Type = "node_state"
	// TypeArtifact is emitted when a new artifact version is registered.
	TypeArtifact Type = "artifact_registered"
	// TypeFlowFinished is emitted once per run with the terminal outcome.
	TypeFlowFinished Type = "flow_finished"
)

// Event is the wire-level shape pushed to consumers.
type Event struct {
	Type      Type      `json:"type"`
	ProjectID string    `json:"project_id"`
	FlowID    string    `json:"flow_id,omitempty"`
	NodeID    string    `json:"node_id,omitempty"`
	State     string    `json:"state,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Artifact  string    `json:"artifact_id,omitempty"`
	Version   int       `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Emitter receives run events. Implementations must be safe for concurrent
// use and must not block.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Noop discards all events. It is the default when no consumer is wired.
type Noop struct{}

// Emit implements Emitter.
func (Noop) Emit(context.Context, Event) {}
