package dag

import (
	"context"
	"fmt"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

// Build constructs a complete, validated dependency graph from an ordered
// list of steps. Node i corresponds to steps[i].
func Build(ctx context.Context, steps []*step.Step) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "step_count", len(steps))

	// First pass: one node per step, and the name lookup used for linking.
	lookup, err := Lookup(steps)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	graph := New(names)
	logger.Debug("Build: Node creation complete.", "node_count", graph.Len())

	// Second pass: link dependencies.
	for i, s := range steps {
		if err := linkExplicitDeps(ctx, graph, i, s, lookup); err != nil {
			return nil, err
		}
		if err := linkImplicitDeps(ctx, graph, i, s, lookup); err != nil {
			return nil, err
		}
	}
	logger.Debug("Build: Node linking complete.", "edge_count", graph.EdgeCount())

	if err := graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Graph construction successful.")
	return graph, nil
}

// Lookup maps every step name to its index, rejecting empty and duplicate names.
func Lookup(steps []*step.Step) (map[string]int, error) {
	lookup := make(map[string]int, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("step at position %d has no name", i)
		}
		if prev, exists := lookup[s.Name]; exists {
			return nil, fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateName, s.Name, prev, i)
		}
		lookup[s.Name] = i
	}
	return lookup, nil
}
