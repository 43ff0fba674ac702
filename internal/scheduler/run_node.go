package scheduler

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/flow"
	"github.com/vlm/flowforge/internal/registry"
)

// runNode is the concurrent unit of work for one node. It resolves inputs,
// invokes the executor (retrying per policy), and reports exactly one
// result to the control loop. The attempt context is detached from run
// cancellation: cancelling a run stops new dispatches and new retries, but
// never interrupts an attempt already in flight.
func (s *Scheduler) runNode(ctx context.Context, projectID string, n *flow.Node, out chan<- result) {
	logger := ctxlog.FromContext(ctx).With("node_id", n.ID, "executor", n.ExecutorRef)

	var produced []registry.OutputFile
	attempts := 0

	op := func() error {
		attempts++
		if attempts > 1 {
			logger.Info("Retrying node.", "attempt", attempts)
		}

		inputs, err := s.resolveInputs(ctx, projectID, n)
		if err != nil {
			return err
		}

		attemptCtx := context.WithoutCancel(ctx)
		if n.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(attemptCtx, n.Timeout)
			defer cancel()
		}

		outputs, err := s.exec.Execute(attemptCtx, &registry.Invocation{
			ProjectID:   projectID,
			NodeID:      n.ID,
			ExecutorRef: n.ExecutorRef,
			Inputs:      inputs,
			Params:      n.Params,
			Outputs:     n.Outputs,
			Sandbox:     s.sandbox,
		})
		if err != nil {
			return err
		}
		if err := matchDeclaredOutputs(n, outputs); err != nil {
			// A declaration mismatch is a contract bug, not a transient
			// failure; retrying cannot fix it.
			return backoff.Permanent(err)
		}
		produced = outputs
		return nil
	}

	var err error
	if n.OnError.Strategy == flow.StrategyRetry && n.OnError.RetryCount > 0 {
		bo := backoff.NewExponentialBackOff()
		if s.opts.RetryInitialInterval > 0 {
			bo.InitialInterval = s.opts.RetryInitialInterval
		}
		err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(n.OnError.RetryCount)), ctx))
	} else {
		err = op()
	}

	out <- result{nodeID: n.ID, outputs: produced, attempts: attempts, err: err}
}

// resolveInputs reads the latest registered version of every declared input
// and loads its bytes from the sandbox. Re-runs always consume the newest
// upstream version.
func (s *Scheduler) resolveInputs(ctx context.Context, projectID string, n *flow.Node) (map[string][]byte, error) {
	inputs := make(map[string][]byte, len(n.Inputs))
	for _, in := range n.Inputs {
		a, err := s.artifacts.Get(ctx, projectID, in.ArtifactID)
		if err != nil {
			return nil, fmt.Errorf("resolving input %q: %w", in.ArtifactID, err)
		}
		data, err := s.sandbox.ReadFile(ctx, projectID, a.Path)
		if err != nil {
			return nil, fmt.Errorf("reading input %q from %q: %w", in.ArtifactID, a.Path, err)
		}
		inputs[in.Alias] = data
	}
	return inputs, nil
}

// matchDeclaredOutputs enforces the node contract: the executor must report
// exactly the outputs the node declares, no more, no fewer.
func matchDeclaredOutputs(n *flow.Node, outputs []registry.OutputFile) error {
	declared := make(map[string]bool, len(n.Outputs))
	for _, out := range n.Outputs {
		declared[out.ArtifactID] = true
	}
	seen := make(map[string]bool, len(outputs))
	for _, out := range outputs {
		if !declared[out.ArtifactID] {
			return fmt.Errorf("executor produced undeclared artifact %q", out.ArtifactID)
		}
		if seen[out.ArtifactID] {
			return fmt.Errorf("executor produced artifact %q twice", out.ArtifactID)
		}
		seen[out.ArtifactID] = true
	}
	for id := range declared {
		if !seen[id] {
			return fmt.Errorf("executor did not produce declared artifact %q", id)
		}
	}
	return nil
}
