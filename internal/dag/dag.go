package dag

import (
	"fmt"
	"sort"
	"strings"
)

// New creates a graph with one node per name and no edges.
func New(names []string) *Graph {
	g := &Graph{
		names:    append([]string(nil), names...),
		incoming: make([][]int, len(names)),
		outgoing: make([][]int, len(names)),
		kinds:    make(map[edge]EdgeKind),
	}
	return g
}

// AddEdge creates a directed edge from the `from` node to the `to` node,
// meaning `to` depends on `from`. Adding an existing edge is a no-op, except
// that an explicit declaration takes precedence over an implicit one.
func (g *Graph) AddEdge(from, to int, kind EdgeKind) error {
	if from < 0 || from >= len(g.names) {
		return fmt.Errorf("source node not found: %d", from)
	}
	if to < 0 || to >= len(g.names) {
		return fmt.Errorf("destination node not found: %d", to)
	}
	if from == to {
		return fmt.Errorf("%w: %s -> %s", ErrSelfReference, g.names[from], g.names[to])
	}

	e := edge{from: from, to: to}
	if existing, ok := g.kinds[e]; ok {
		if existing == Implicit && kind == Explicit {
			g.kinds[e] = Explicit
		}
		return nil
	}

	g.kinds[e] = kind
	g.incoming[to] = insertSorted(g.incoming[to], from)
	g.outgoing[from] = insertSorted(g.outgoing[from], to)
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.names)
}

// Name returns the step name of node i.
func (g *Graph) Name(i int) string {
	return g.names[i]
}

// Dependencies returns the incoming neighbours of i. The slice must not be modified.
func (g *Graph) Dependencies(i int) []int {
	return g.incoming[i]
}

// Dependents returns the outgoing neighbours of i. The slice must not be modified.
func (g *Graph) Dependents(i int) []int {
	return g.outgoing[i]
}

// Kind reports why the edge from -> to exists.
func (g *Graph) Kind(from, to int) (EdgeKind, bool) {
	k, ok := g.kinds[edge{from: from, to: to}]
	return k, ok
}

// Roots returns the nodes without dependencies, in index order.
func (g *Graph) Roots() []int {
	var roots []int
	for i := range g.names {
		if len(g.incoming[i]) == 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return len(g.kinds)
}

// DetectCycles returns an error wrapping ErrCycle naming the nodes of the
// first cycle found, walking nodes in index order.
func (g *Graph) DetectCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(g.names))
	var stack []int

	var visit func(n int) error
	visit = func(n int) error {
		state[n] = visiting
		stack = append(stack, n)
		for _, next := range g.outgoing[n] {
			switch state[next] {
			case visiting:
				return fmt.Errorf("%w: %s", ErrCycle, g.describeCycle(stack, next))
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for i := range g.names {
		if state[i] == unvisited {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// describeCycle renders the part of stack starting at the re-entered node.
func (g *Graph) describeCycle(stack []int, reentered int) string {
	start := 0
	for i, n := range stack {
		if n == reentered {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		parts = append(parts, g.names[n])
	}
	parts = append(parts, g.names[reentered])
	return strings.Join(parts, " -> ")
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
