// Package scheduler drives a workflow's steps to completion, running
// independent steps concurrently while honouring their dependency order.
//
// # How It Works
//
// Run builds the dependency graph, allocates a status table with one entry
// per step and creates one actor per step. Every actor is polled once; those
// without dependencies submit their step to the worker pool. Each finished
// step, whether it ran or was skipped, sends its index on the notification
// channel exactly once. The coordinator receives exactly N indices and, for
// each, polls the actors of that step's dependents. Once all N signals have
// arrived the pool is drained and every recorded outcome is copied back into
// its Step.
//
// # Failure Propagation
//
// An actor that finds a failed dependency records the synthetic
// step.DependencyNotMet outcome for its own step and signals completion
// without running anything. Its dependents see that failure on their next
// poll and repeat the same move, so a failure covers its whole downstream
// subgraph while unrelated branches keep running.
//
// # Thread-Safety
//
// All polls run on the coordinator goroutine. The only concurrency is between
// pool tasks and the coordinator, and every read or write of the status
// table that takes part in a scheduling decision happens under its single
// mutex. A poll's check-then-transition sequence is one critical section.
package scheduler
