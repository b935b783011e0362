package dag

import (
	"context"
	"fmt"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

// linkImplicitDeps adds an edge from the step referenced by a run_step action,
// so the referenced output is always recorded before the reference is resolved.
func linkImplicitDeps(ctx context.Context, graph *Graph, index int, s *step.Step, lookup map[string]int) error {
	ref, ok := s.Run.Reference()
	if !ok {
		return nil
	}
	logger := ctxlog.FromContext(ctx).With("step", s.Name, "run_step", ref)

	depIndex, found := lookup[ref]
	if !found {
		return fmt.Errorf("%w: step %q runs the output of %q", ErrUnknownDependency, s.Name, ref)
	}
	logger.Debug("Linking implicit dependency.", "to_index", depIndex)
	if err := graph.AddEdge(depIndex, index, Implicit); err != nil {
		return fmt.Errorf("linking step %q: %w", s.Name, err)
	}
	return nil
}
