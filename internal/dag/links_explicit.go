package dag

import (
	"context"
	"fmt"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

// linkExplicitDeps resolves dependencies from a step's `require` list.
func linkExplicitDeps(ctx context.Context, graph *Graph, index int, s *step.Step, lookup map[string]int) error {
	baseLogger := ctxlog.FromContext(ctx)

	for _, name := range s.Require {
		logger := baseLogger.With("step", s.Name, "require", name)
		logger.Debug("Resolving explicit dependency.")

		depIndex, ok := lookup[name]
		if !ok {
			return fmt.Errorf("%w: step %q requires %q", ErrUnknownDependency, s.Name, name)
		}
		if err := graph.AddEdge(depIndex, index, Explicit); err != nil {
			return fmt.Errorf("linking step %q: %w", s.Name, err)
		}
	}
	return nil
}
