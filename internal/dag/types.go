package dag

import "errors"

var (
	// ErrDuplicateName is returned when two steps share a name.
	ErrDuplicateName = errors.New("duplicate step name")
	// ErrUnknownDependency is returned when a step requires or references a name that does not exist.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrSelfReference is returned when a step depends on itself.
	ErrSelfReference = errors.New("self-referential dependency")
	// ErrCycle is returned when the dependency edges form a cycle.
	ErrCycle = errors.New("cycle detected")
)

// EdgeKind records why an edge exists.
type EdgeKind int

const (
	// Explicit edges come from a step's require list.
	Explicit EdgeKind = iota
	// Implicit edges come from a run_step reference.
	Implicit
)

func (k EdgeKind) String() string {
	if k == Implicit {
		return "implicit"
	}
	return "explicit"
}

// Graph is a directed acyclic graph over step indices.
type Graph struct {
	// names holds each node's step name, indexed by node.
	names []string
	// incoming[i] lists the dependencies of i in ascending order.
	incoming [][]int
	// outgoing[i] lists the dependents of i in ascending order.
	outgoing [][]int
	// kinds maps a (from, to) edge to the reason it exists.
	kinds map[edge]EdgeKind
}

type edge struct {
	from, to int
}
