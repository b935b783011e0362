// Package dag builds the dependency graph the scheduler walks. Nodes are the
// indices of the steps handed to Build; an edge runs from a dependency to
// the step that depends on it.
//
// Two kinds of edges exist. Explicit edges come from a step's `require`
// list. Implicit edges come from a `run_step` action: a step that runs the
// output of another step must wait for it, whether or not the author listed it.
//
// A Graph is immutable once Build returns and is safe to share between
// goroutines without synchronisation.
package dag
