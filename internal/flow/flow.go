package flow

import "time"

// Definition is an immutable, named DAG template. It is loaded once,
// validated, and then referenced by every project that runs it.
type Definition struct {
	ID    string
	Nodes []*Node

	// Populated by Validate.
	edges     []Edge
	order     []string
	producers map[string]string
	byID      map[string]*Node
	validated bool
}

// Node is a single unit of work inside a flow. Its declared inputs and
// outputs are the only way it exchanges data with other nodes.
type Node struct {
	// ID is unique within the flow.
	ID string
	// ExecutorRef is an opaque identifier resolved by the executor registry.
	ExecutorRef string
	// Inputs declare the artifacts this node consumes. A node with no
	// inputs is a root and is ready the moment the run starts.
	Inputs []Input
	// Outputs declare the artifacts this node produces. Exactly one node
	// in a flow may produce a given artifact id.
	Outputs []Output
	// OnError selects the failure policy for this node.
	OnError OnError
	// Timeout bounds a single execution attempt. Zero means no timeout.
	Timeout time.Duration
	// Params are opaque, executor-specific settings decoded from the
	// flow source.
	Params map[string]any
}

// Input binds an upstream artifact to a local alias the executor sees.
type Input struct {
	ArtifactID string
	Alias      string
}

// Output declares an artifact the node produces and where it lands in the
// project sandbox.
type Output struct {
	ArtifactID string
	Path       string
	TypeTag    string
}

// Edge is derived, never authored: an edge (from, to, artifact) exists iff
// the artifact appears in from's outputs and in to's inputs.
type Edge struct {
	From       string
	To         string
	ArtifactID string
}

// Strategy names a node failure policy.
type Strategy string

const (
	// StrategyTerminate stops dispatching new nodes and drains the run.
	// It is the default.
	StrategyTerminate Strategy = "terminate"
	// StrategyRetry re-invokes the executor with exponential backoff.
	StrategyRetry Strategy = "retry"
	// StrategySkip marks the node skipped and transitively skips every
	// node that can no longer become ready.
	StrategySkip Strategy = "skip"
)

// OnError configures how a node failure is handled.
type OnError struct {
	Strategy Strategy
	// RetryCount bounds re-invocations under StrategyRetry.
	RetryCount int
	// OnExhausted applies when retries run out: StrategyTerminate or
	// StrategySkip.
	OnExhausted Strategy
}

// Validated reports whether this definition passed Validate.
func (d *Definition) Validated() bool { return d.validated }

// Edges returns the derived edge set. Empty until Validate succeeds.
func (d *Definition) Edges() []Edge { return d.edges }

// Order returns node ids in a topologically consistent order.
func (d *Definition) Order() []string { return d.order }

// Node returns the node with the given id, or nil.
func (d *Definition) Node(id string) *Node { return d.byID[id] }

// Producer returns the id of the node that outputs the given artifact.
func (d *Definition) Producer(artifactID string) (string, bool) {
	id, ok := d.producers[artifactID]
	return id, ok
}

// Dependents returns the ids of nodes that consume any output of the given
// node, deduplicated.
func (d *Definition) Dependents(nodeID string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range d.edges {
		if e.From != nodeID {
			continue
		}
		if _, ok := seen[e.To]; ok {
			continue
		}
		seen[e.To] = struct{}{}
		out = append(out, e.To)
	}
	return out
}
