// Package registry resolves a flow node's executor_ref to the compiled Go
// handler that implements it. The scheduler stays fully agnostic to what a
// handler does; it only sees resolved inputs going in and declared outputs
// coming back.
package registry

import (
	"context"
	"fmt"

	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/flow"
	"github.com/vlm/flowforge/internal/sandbox"
)

// UnknownExecutorError reports an executor_ref no registered handler serves.
type UnknownExecutorError struct {
	Ref string
}

func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("unknown executor %q", e.Ref)
}

// Invocation is everything a handler receives for one node attempt.
type Invocation struct {
	ProjectID   string
	NodeID      string
	ExecutorRef string
	// Inputs maps each declared local alias to the resolved content of the
	// latest version of the referenced artifact.
	Inputs map[string][]byte
	// Params are the node's opaque settings from the flow definition.
	Params map[string]any
	// Outputs are the node's declared outputs; the handler must produce a
	// file in the sandbox for each one it reports back.
	Outputs []flow.Output
	// Sandbox is the project-scoped namespace the handler writes into.
	Sandbox sandbox.Sandbox
}

// OutputFile is one produced output the scheduler will register.
type OutputFile struct {
	ArtifactID string
	Path       string
	TypeTag    string
}

// Handler is the business logic behind one executor_ref.
type Handler func(ctx context.Context, inv *Invocation) ([]OutputFile, error)

// Module is implemented by compiled-in executor packs.
type Module interface {
	Register(r *Registry)
}

// Registry maps executor_refs to handlers for a single application instance.
type Registry struct {
	handlers map[string]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// RegisterHandler binds a handler to an executor_ref. Registering the same
// ref twice is a programmer error.
func (r *Registry) RegisterHandler(ref string, h Handler) {
	if _, exists := r.handlers[ref]; exists {
		panic(fmt.Sprintf("executor handler %q already registered", ref))
	}
	r.handlers[ref] = h
}

// Resolve returns the handler for an executor_ref.
func (r *Registry) Resolve(ref string) (Handler, error) {
	h, ok := r.handlers[ref]
	if !ok {
		return nil, &UnknownExecutorError{Ref: ref}
	}
	return h, nil
}

// Execute resolves and invokes the handler for inv.ExecutorRef. It is the
// node-executor adapter the scheduler consumes.
func (r *Registry) Execute(ctx context.Context, inv *Invocation) ([]OutputFile, error) {
	h, err := r.Resolve(inv.ExecutorRef)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Invoking executor handler.", "executor", inv.ExecutorRef, "node_id", inv.NodeID)
	return h(ctx, inv)
}

// ValidateRefs checks every node of a definition against the registered
// handlers so an unknown executor surfaces before any node runs.
func (r *Registry) ValidateRefs(def *flow.Definition) error {
	for _, n := range def.Nodes {
		if _, err := r.Resolve(n.ExecutorRef); err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
	}
	return nil
}
