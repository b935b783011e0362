package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/stepgridgo/internal/step"
)

// ErrInvalidStep is wrapped by every error describing a malformed step.
var ErrInvalidStep = errors.New("invalid step")

// rawStep is the format-agnostic shape of a step declaration. HCL fills it
// through gohcl, YAML through yaml.v3.
type rawStep struct {
	Name    string       `hcl:"name,label" yaml:"name"`
	Run     *string      `hcl:"run,optional" yaml:"run"`
	RunStep *string      `hcl:"run_step,optional" yaml:"run_step"`
	Require []string     `hcl:"require,optional" yaml:"require"`
	Expect  *rawExpect   `hcl:"expect,block" yaml:"expect"`
	Retry   *rawRetry    `hcl:"retry,block" yaml:"retry"`
	Filters []*rawFilter `hcl:"filter,block" yaml:"filters"`
}

type rawExpect struct {
	Kind  string `hcl:"kind" yaml:"kind"`
	Value string `hcl:"value,optional" yaml:"value"`
}

type rawRetry struct {
	Attempts int    `hcl:"attempts,optional" yaml:"attempts"`
	Delay    string `hcl:"delay,optional" yaml:"delay"`
}

type rawFilter struct {
	Kind    string `hcl:"kind,label" yaml:"kind"`
	Pattern string `hcl:"pattern,optional" yaml:"pattern"`
	Group   int    `hcl:"group,optional" yaml:"group"`
}

// translate validates a raw declaration and converts it into a step.
func (r *rawStep) translate(filename string) (*step.Step, error) {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w %q in %s: %s", ErrInvalidStep, r.Name, filename, fmt.Sprintf(format, args...))
	}

	if r.Name == "" {
		return nil, fmt.Errorf("%w in %s: step has no name", ErrInvalidStep, filename)
	}

	s := &step.Step{
		Name:    r.Name,
		Require: append([]string(nil), r.Require...),
	}

	switch {
	case r.Run != nil && r.RunStep != nil:
		return nil, fail("run and run_step are mutually exclusive")
	case r.Run != nil:
		s.Run = step.Shell(*r.Run)
	case r.RunStep != nil:
		if *r.RunStep == "" {
			return nil, fail("run_step must name a step")
		}
		s.Run = step.Ref(*r.RunStep)
	default:
		return nil, fail("one of run or run_step is required")
	}

	if r.Expect != nil {
		kind, err := step.ParseExpectKind(r.Expect.Kind)
		if err != nil {
			return nil, fail("%v", err)
		}
		s.Expect = step.ExpectType{Kind: kind, Value: r.Expect.Value}
	}

	if r.Retry != nil {
		if r.Retry.Attempts < 0 {
			return nil, fail("retry attempts must not be negative, got %d", r.Retry.Attempts)
		}
		s.Retry.Attempts = r.Retry.Attempts
		if r.Retry.Delay != "" {
			d, err := time.ParseDuration(r.Retry.Delay)
			if err != nil {
				return nil, fail("invalid retry delay: %v", err)
			}
			if d < 0 {
				return nil, fail("retry delay must not be negative, got %s", d)
			}
			s.Retry.Delay = d
		}
	}

	for i, f := range r.Filters {
		kind, err := step.ParseFilterKind(f.Kind)
		if err != nil {
			return nil, fail("filter %d: %v", i, err)
		}
		s.Filters = append(s.Filters, step.FilterType{Kind: kind, Pattern: f.Pattern, Group: f.Group})
	}

	return s, nil
}

func translateAll(filename string, raws []*rawStep) ([]*step.Step, error) {
	steps := make([]*step.Step, 0, len(raws))
	for _, r := range raws {
		s, err := r.translate(filename)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}
