package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/fsutil"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

// ErrNoWorkflowFiles is returned when none of the given paths holds a
// workflow file.
var ErrNoWorkflowFiles = errors.New("no workflow files found")

type decodeFunc func(ctx context.Context, filename string, src []byte) ([]*step.Step, error)

var decoders = map[string]decodeFunc{
	".hcl":  decodeHCL,
	".yaml": decodeYAML,
	".yml":  decodeYAML,
}

// Extensions lists the file extensions Load picks up.
func Extensions() []string {
	return []string{".hcl", ".yaml", ".yml"}
}

// Load discovers workflow files under paths, parses them concurrently and
// returns their steps in discovery order. Paths that don't exist are skipped.
func Load(ctx context.Context, paths ...string) ([]*step.Step, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Workflow loader started.", "path_count", len(paths))

	files, err := fsutil.FindAll(paths, Extensions()...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %v", ErrNoWorkflowFiles, paths)
	}
	logger.Debug("Discovered workflow files.", "count", len(files))

	perFile := make([][]*step.Step, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		g.Go(func() error {
			steps, err := LoadFile(gctx, file)
			if err != nil {
				return err
			}
			perFile[i] = steps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var steps []*step.Step
	for _, s := range perFile {
		steps = append(steps, s...)
	}
	logger.Debug("Workflow loading complete.", "files", len(files), "steps", len(steps))
	return steps, nil
}

// LoadFile parses a single workflow file, choosing the format by extension.
func LoadFile(ctx context.Context, path string) ([]*step.Step, error) {
	decode, ok := decoders[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("unsupported workflow file %s", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return decode(ctx, path, src)
}
