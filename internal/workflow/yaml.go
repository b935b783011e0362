package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

type yamlRoot struct {
	Steps []*rawStep `yaml:"steps"`
}

// decodeYAML parses one YAML workflow file. Unknown keys are rejected and an
// empty document yields no steps.
func decodeYAML(ctx context.Context, filename string, src []byte) ([]*step.Step, error) {
	var root yamlRoot
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML file %s: %w", filename, err)
	}
	ctxlog.FromContext(ctx).Debug("Decoded YAML workflow file.", "file", filename, "steps", len(root.Steps))

	for i, r := range root.Steps {
		if r == nil {
			return nil, fmt.Errorf("%w in %s: entry %d is empty", ErrInvalidStep, filename, i)
		}
	}
	return translateAll(filename, root.Steps)
}
