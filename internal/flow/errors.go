package flow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotValidated is returned when a definition is used before it passed
// validation. Execution of an unvalidated flow is never allowed.
var ErrNotValidated = errors.New("flow: definition has not been validated")

// ErrInvalid is the common kind behind every validation error, so callers
// can match the whole family with errors.Is.
var ErrInvalid = errors.New("flow: invalid definition")

// CycleError reports that the derived dependency graph is not a DAG. The
// Remaining field lists the nodes left unvisited by the topological sort,
// all of which sit on or behind a cycle.
type CycleError struct {
	FlowID    string
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("flow %q: dependency cycle involving nodes [%s]", e.FlowID, strings.Join(e.Remaining, ", "))
}

func (e *CycleError) Unwrap() error { return ErrInvalid }

// DanglingReferenceError reports a node input that no node in the same flow
// produces.
type DanglingReferenceError struct {
	FlowID     string
	NodeID     string
	ArtifactID string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("flow %q: node %q consumes artifact %q which no node produces", e.FlowID, e.NodeID, e.ArtifactID)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrInvalid }

// DuplicateWriterError reports two nodes declaring the same output artifact
// or the same output path, violating the single-writer invariant.
type DuplicateWriterError struct {
	FlowID     string
	ArtifactID string
	Path       string
	FirstNode  string
	SecondNode string
}

func (e *DuplicateWriterError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("flow %q: nodes %q and %q both write sandbox path %q", e.FlowID, e.FirstNode, e.SecondNode, e.Path)
	}
	return fmt.Sprintf("flow %q: nodes %q and %q both declare output artifact %q", e.FlowID, e.FirstNode, e.SecondNode, e.ArtifactID)
}

func (e *DuplicateWriterError) Unwrap() error { return ErrInvalid }

// DefinitionError reports a structural problem that precedes graph checks,
// such as a duplicate node id or a missing executor reference.
type DefinitionError struct {
	FlowID string
	NodeID string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("flow %q: node %q: %s", e.FlowID, e.NodeID, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return ErrInvalid }
