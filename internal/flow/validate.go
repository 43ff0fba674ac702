package flow

import (
	"fmt"
	"sort"
)

// Validate derives the edge set from node input/output declarations and
// checks the structural invariants every runnable flow must satisfy:
// referential integrity, the single-writer invariant, and acyclicity.
// It returns the same definition with edges and a topologically consistent
// order populated. A definition that has not passed Validate must never
// reach the scheduler.
func Validate(d *Definition) (*Definition, error) {
	if d.ID == "" {
		return nil, &DefinitionError{FlowID: d.ID, Reason: "flow id must not be empty"}
	}

	byID := make(map[string]*Node, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return nil, &DefinitionError{FlowID: d.ID, Reason: "node id must not be empty"}
		}
		if n.ExecutorRef == "" {
			return nil, &DefinitionError{FlowID: d.ID, NodeID: n.ID, Reason: "executor reference must not be empty"}
		}
		if _, exists := byID[n.ID]; exists {
			return nil, &DefinitionError{FlowID: d.ID, NodeID: n.ID, Reason: "duplicate node id"}
		}
		byID[n.ID] = n
		normalizeOnError(n)
	}

	// Single-writer: one producer per artifact id, one writer per sandbox path.
	producers := make(map[string]string)
	paths := make(map[string]string)
	for _, n := range d.Nodes {
		for _, out := range n.Outputs {
			if out.ArtifactID == "" {
				return nil, &DefinitionError{FlowID: d.ID, NodeID: n.ID, Reason: "output artifact id must not be empty"}
			}
			if prev, ok := producers[out.ArtifactID]; ok {
				return nil, &DuplicateWriterError{FlowID: d.ID, ArtifactID: out.ArtifactID, FirstNode: prev, SecondNode: n.ID}
			}
			producers[out.ArtifactID] = n.ID
			if out.Path != "" {
				if prev, ok := paths[out.Path]; ok && prev != n.ID {
					return nil, &DuplicateWriterError{FlowID: d.ID, Path: out.Path, FirstNode: prev, SecondNode: n.ID}
				}
				paths[out.Path] = n.ID
			}
		}
	}

	// Referential integrity, then the derived edge set.
	var edges []Edge
	for _, n := range d.Nodes {
		for _, in := range n.Inputs {
			producer, ok := producers[in.ArtifactID]
			if !ok {
				return nil, &DanglingReferenceError{FlowID: d.ID, NodeID: n.ID, ArtifactID: in.ArtifactID}
			}
			edges = append(edges, Edge{From: producer, To: n.ID, ArtifactID: in.ArtifactID})
		}
	}

	order, err := topoSort(d, byID, edges)
	if err != nil {
		return nil, err
	}

	d.byID = byID
	d.producers = producers
	d.edges = edges
	d.order = order
	d.validated = true
	return d, nil
}

// normalizeOnError fills in policy defaults so the scheduler never has to
// interpret an empty strategy.
func normalizeOnError(n *Node) {
	if n.OnError.Strategy == "" {
		n.OnError.Strategy = StrategyTerminate
	}
	if n.OnError.Strategy == StrategyRetry && n.OnError.OnExhausted == "" {
		n.OnError.OnExhausted = StrategyTerminate
	}
}

// topoSort runs Kahn's algorithm over the derived graph. Any node left
// unvisited when the queue empties sits on a cycle.
func topoSort(d *Definition, byID map[string]*Node, edges []Edge) ([]string, error) {
	indegree := make(map[string]int, len(byID))
	dependents := make(map[string][]string, len(byID))
	seen := make(map[[2]string]struct{}, len(edges))
	for id := range byID {
		indegree[id] = 0
	}
	for _, e := range edges {
		// A node may consume several artifacts from the same producer;
		// that is still a single graph edge.
		key := [2]string{e.From, e.To}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		indegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(byID))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(byID) {
		var remaining []string
		for id, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{FlowID: d.ID, Remaining: remaining}
	}
	return order, nil
}

// MustValidate is a test and wiring convenience that panics on invalid
// definitions.
func MustValidate(d *Definition) *Definition {
	v, err := Validate(d)
	if err != nil {
		panic(fmt.Sprintf("flow: invalid definition %q: %v", d.ID, err))
	}
	return v
}
