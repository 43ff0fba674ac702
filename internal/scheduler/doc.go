// Package scheduler executes one validated flow for one project. It is the
// only subsystem with real concurrency coordination: a single control loop
// owns readiness computation and dispatch decisions, node attempts run as
// goroutines, and the artifact registry is the sole synchronization point
// between producers and consumers.
package scheduler
