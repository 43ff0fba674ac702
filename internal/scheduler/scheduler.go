package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vlm/flowforge/internal/artifact"
	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/events"
	"github.com/vlm/flowforge/internal/flow"
	"github.com/vlm/flowforge/internal/registry"
	"github.com/vlm/flowforge/internal/sandbox"
)

// State is a node's run state. It exists only for the duration of one run;
// a restarted run recovers completed nodes from the artifact registry.
type State int32

const (
	// Pending: waiting for input artifacts to be registered.
	Pending State = iota
	// Ready: all inputs registered, awaiting dispatch.
	Ready
	// Running: an attempt is in flight.
	Running
	// Completed: executor succeeded and all outputs are registered.
	Completed
	// Failed: executor failed under the terminate path.
	Failed
	// Skipped: the node failed under the skip policy, or an upstream skip
	// made it permanently unready.
	Skipped
)

var stateNames = map[State]string{
	Pending:   "pending",
	Ready:     "ready",
	Running:   "running",
	Completed: "completed",
	Failed:    "failed",
	Skipped:   "skipped",
}

func (s State) String() string { return stateNames[s] }

// MarshalJSON renders states as their lowercase names for API consumers.
func (s State) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Terminal reports whether a node in this state can still change.
func (s State) Terminal() bool { return s == Completed || s == Failed || s == Skipped }

// NodeStatus is the externally visible slice of a node's run state.
type NodeStatus struct {
	State    State  `json:"state"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Executor invokes a node's business logic given resolved inputs. The
// registry implements it; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, inv *registry.Invocation) ([]registry.OutputFile, error)
}

// Options tune one run.
type Options struct {
	// MaxParallel bounds concurrently running nodes. Zero means unbounded,
	// the default: node counts are tens, not thousands.
	MaxParallel int
	// Resume treats a node whose declared outputs all exist in the registry
	// as completed without executing it. Off by default: a fresh run
	// re-executes every node and bumps artifact versions.
	Resume bool
	// Emitter receives run events. Nil means no events.
	Emitter events.Emitter
	// DispatchOrder, when set, permutes the ready set before dispatch.
	// Dispatch order among simultaneously-ready nodes is deliberately
	// unspecified; the test suite randomizes it to keep flows honest.
	DispatchOrder func(ids []string)
	// RetryInitialInterval overrides the first backoff delay. Tests use
	// this to keep retry paths fast.
	RetryInitialInterval time.Duration
}

// Scheduler drives one flow run for one project: it tracks node readiness,
// dispatches ready nodes concurrently, registers produced artifacts, and
// re-evaluates readiness until the run reaches a terminal state. Readiness
// computation and dispatch decisions are serialized through a single
// control loop; only executor invocations run in parallel.
type Scheduler struct {
	def       *flow.Definition
	artifacts artifact.Registry
	sandbox   sandbox.Sandbox
	exec      Executor
	opts      Options
	emitter   events.Emitter

	mu        sync.Mutex
	states    map[string]*nodeRun
	projectID string
}

type nodeRun struct {
	node     *flow.Node
	state    State
	attempts int
	err      error
}

// Report is the outcome of one run.
type Report struct {
	ProjectID string
	FlowID    string
	Nodes     map[string]NodeStatus
	// Err is the root-cause error of a failed run: the first real node
	// failure, never a skip symptom.
	Err error
}

// Succeeded reports whether every node ended completed or skipped.
func (r *Report) Succeeded() bool {
	for _, ns := range r.Nodes {
		if ns.State != Completed && ns.State != Skipped {
			return false
		}
	}
	return true
}

// New builds a scheduler for a single run of def. The definition must have
// passed validation; execution of an unvalidated flow is never allowed.
func New(def *flow.Definition, reg artifact.Registry, sb sandbox.Sandbox, exec Executor, opts Options) (*Scheduler, error) {
	if def == nil || !def.Validated() {
		return nil, flow.ErrNotValidated
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.Noop{}
	}
	s := &Scheduler{
		def:       def,
		artifacts: reg,
		sandbox:   sb,
		exec:      exec,
		opts:      opts,
		emitter:   emitter,
		states:    make(map[string]*nodeRun, len(def.Nodes)),
	}
	for _, n := range def.Nodes {
		s.states[n.ID] = &nodeRun{node: n, state: Pending}
	}
	return s, nil
}

// Snapshot returns the current per-node run states. Safe to call from other
// goroutines while the run is in flight.
func (s *Scheduler) Snapshot() map[string]NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]NodeStatus, len(s.states))
	for id, nr := range s.states {
		out[id] = nodeStatus(nr)
	}
	return out
}

func nodeStatus(nr *nodeRun) NodeStatus {
	ns := NodeStatus{State: nr.state, Attempts: nr.attempts}
	if nr.err != nil {
		ns.Error = nr.err.Error()
	}
	return ns
}

// result is what a node goroutine reports back to the control loop.
type result struct {
	nodeID   string
	outputs  []registry.OutputFile
	attempts int
	err      error
}

// Run executes the flow for the given project. It returns the run report
// and, for a failed run, the root-cause error. Cancelling ctx stops
// dispatching new nodes and drains in-flight ones; a running node is never
// interrupted abruptly, because a half-written artifact would break the
// immutability invariant.
func (s *Scheduler) Run(ctx context.Context, projectID string) (*Report, error) {
	logger := ctxlog.FromContext(ctx).With("flow_id", s.def.ID, "project_id", projectID)
	ctx = ctxlog.WithLogger(ctx, logger)

	s.mu.Lock()
	s.projectID = projectID
	s.mu.Unlock()

	// available tracks artifact ids registered during (or recovered into)
	// this run. Readiness is defined over it.
	available := make(map[string]bool)

	if s.opts.Resume {
		s.recoverCompleted(ctx, projectID, available)
	}

	results := make(chan result)
	running := 0
	draining := false

	dispatch := func() {
		if draining {
			return
		}
		var ready []string
		for _, id := range s.def.Order() {
			nr := s.states[id]
			if nr.state == Pending && s.inputsAvailable(nr.node, available) {
				s.setState(ctx, id, Ready, 0, nil)
			}
			if nr.state == Ready {
				ready = append(ready, id)
			}
		}
		if s.opts.DispatchOrder != nil {
			s.opts.DispatchOrder(ready)
		}
		for _, id := range ready {
			if s.opts.MaxParallel > 0 && running >= s.opts.MaxParallel {
				break
			}
			nr := s.states[id]
			s.setState(ctx, id, Running, 0, nil)
			running++
			logger.Debug("Dispatching node.", "node_id", id)
			go s.runNode(ctx, projectID, nr.node, results)
		}
	}

	logger.Info("Starting flow run.", "nodes", len(s.def.Nodes))
	dispatch()

	done := ctx.Done()
	for running > 0 {
		select {
		case res := <-results:
			running--
			if s.consume(ctx, projectID, res, available) {
				draining = true
			}
			dispatch()
		case <-done:
			logger.Warn("Run cancelled; draining in-flight nodes.", "running", running)
			draining = true
			done = nil
		}
	}

	// Nodes promoted to Ready but never dispatched go back to Pending for
	// reporting purposes: they neither ran nor terminally failed.
	s.mu.Lock()
	for _, nr := range s.states {
		if nr.state == Ready {
			nr.state = Pending
		}
	}
	s.mu.Unlock()

	report := s.report(projectID)
	s.emitter.Emit(ctx, events.Event{
		Type:      events.TypeFlowFinished,
		ProjectID: projectID,
		FlowID:    s.def.ID,
		State:     outcome(report),
		Time:      time.Now(),
	})
	if report.Err != nil {
		logger.Error("Flow run failed.", "error", report.Err)
	} else {
		logger.Info("Flow run finished.", "outcome", outcome(report))
	}
	return report, report.Err
}

func outcome(r *Report) string {
	if r.Succeeded() {
		return "completed"
	}
	return "failed"
}

// consume folds one node result into the run state. It returns true when
// the run must drain (terminate path).
func (s *Scheduler) consume(ctx context.Context, projectID string, res result, available map[string]bool) (drain bool) {
	logger := ctxlog.FromContext(ctx).With("node_id", res.nodeID)
	nr := s.states[res.nodeID]

	if res.err == nil {
		if err := s.registerOutputs(ctx, projectID, nr.node, res.outputs, available); err != nil {
			// Registry failures are storage errors: fatal to this node and
			// routed through its error strategy like any execution error.
			logger.Error("Failed to register node outputs.", "error", err)
			res.err = err
		}
	}

	if res.err == nil {
		s.setState(ctx, res.nodeID, Completed, res.attempts, nil)
		logger.Debug("Node completed.", "attempts", res.attempts)
		return false
	}

	switch effectiveStrategy(nr.node) {
	case flow.StrategySkip:
		logger.Warn("Node failed; skipping per policy.", "error", res.err, "attempts", res.attempts)
		s.setState(ctx, res.nodeID, Skipped, res.attempts, res.err)
		s.propagateSkips(ctx, available)
		return false
	default:
		logger.Error("Node failed; terminating run.", "error", res.err, "attempts", res.attempts)
		s.setState(ctx, res.nodeID, Failed, res.attempts, res.err)
		return true
	}
}

// effectiveStrategy resolves what happens once a node's attempts (including
// any retries) are exhausted.
func effectiveStrategy(n *flow.Node) flow.Strategy {
	switch n.OnError.Strategy {
	case flow.StrategySkip:
		return flow.StrategySkip
	case flow.StrategyRetry:
		if n.OnError.OnExhausted == flow.StrategySkip {
			return flow.StrategySkip
		}
		return flow.StrategyTerminate
	default:
		return flow.StrategyTerminate
	}
}

// registerOutputs makes a completed node's artifacts visible to dependents.
// Registration is the only visibility path: dependents never observe
// sandbox files directly.
func (s *Scheduler) registerOutputs(ctx context.Context, projectID string, n *flow.Node, outputs []registry.OutputFile, available map[string]bool) error {
	dependsOn := make([]string, 0, len(n.Inputs))
	for _, in := range n.Inputs {
		dependsOn = append(dependsOn, in.ArtifactID)
	}
	for _, out := range outputs {
		version, err := s.artifacts.Register(ctx, projectID, artifact.Spec{
			ID:         out.ArtifactID,
			Path:       out.Path,
			TypeTag:    out.TypeTag,
			ProducedBy: n.ID,
			DependsOn:  dependsOn,
		})
		if err != nil {
			return err
		}
		available[out.ArtifactID] = true
		s.emitter.Emit(ctx, events.Event{
			Type:      events.TypeArtifact,
			ProjectID: projectID,
			FlowID:    s.def.ID,
			NodeID:    n.ID,
			Artifact:  out.ArtifactID,
			Version:   version,
			Time:      time.Now(),
		})
	}
	return nil
}

// propagateSkips marks every pending node that can no longer become ready.
// A pending node is stuck when one of its inputs is not available and the
// node that would produce it ended skipped. Runs to a fixpoint so skips
// cascade through the whole downstream cone.
func (s *Scheduler) propagateSkips(ctx context.Context, available map[string]bool) {
	for changed := true; changed; {
		changed = false
		for id, nr := range s.states {
			if nr.state != Pending {
				continue
			}
			for _, in := range nr.node.Inputs {
				if available[in.ArtifactID] {
					continue
				}
				producer, ok := s.def.Producer(in.ArtifactID)
				if !ok {
					continue
				}
				if s.states[producer].state == Skipped {
					s.setState(ctx, id, Skipped, 0, fmt.Errorf("upstream node %q was skipped", producer))
					changed = true
					break
				}
			}
		}
	}
}

// recoverCompleted implements restart recovery: a node whose declared
// outputs already exist in the registry is treated as completed without
// execution.
func (s *Scheduler) recoverCompleted(ctx context.Context, projectID string, available map[string]bool) {
	logger := ctxlog.FromContext(ctx)
	for _, n := range s.def.Nodes {
		if len(n.Outputs) == 0 {
			continue
		}
		complete := true
		for _, out := range n.Outputs {
			if _, err := s.artifacts.Get(ctx, projectID, out.ArtifactID); err != nil {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		logger.Info("Recovered node from registered artifacts.", "node_id", n.ID)
		s.setState(ctx, n.ID, Completed, 0, nil)
		for _, out := range n.Outputs {
			available[out.ArtifactID] = true
		}
	}
}

func (s *Scheduler) inputsAvailable(n *flow.Node, available map[string]bool) bool {
	for _, in := range n.Inputs {
		if !available[in.ArtifactID] {
			return false
		}
	}
	return true
}

// setState records a transition and emits the corresponding event. attempts
// of zero preserves the previous count.
func (s *Scheduler) setState(ctx context.Context, nodeID string, st State, attempts int, err error) {
	s.mu.Lock()
	nr := s.states[nodeID]
	nr.state = st
	if attempts > 0 {
		nr.attempts = attempts
	}
	nr.err = err
	snapshot := nodeStatus(nr)
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.Event{
		Type:      events.TypeNodeState,
		ProjectID: s.projectID,
		FlowID:    s.def.ID,
		NodeID:    nodeID,
		State:     st.String(),
		Attempt:   snapshot.Attempts,
		Error:     snapshot.Error,
		Time:      time.Now(),
	})
}

// report builds the terminal run report, surfacing the most granular
// failure: which node, which error.
func (s *Scheduler) report(projectID string) *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Report{ProjectID: projectID, FlowID: s.def.ID, Nodes: make(map[string]NodeStatus, len(s.states))}
	for id, nr := range s.states {
		r.Nodes[id] = nodeStatus(nr)
	}
	for _, id := range s.def.Order() {
		nr := s.states[id]
		if nr.state == Failed && nr.err != nil {
			r.Err = fmt.Errorf("node %q failed: %w", id, nr.err)
			break
		}
	}
	return r
}
