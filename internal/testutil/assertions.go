package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stepgridgo/internal/step"
)

// FindStep returns the step named name, failing the test if it is missing.
func FindStep(t *testing.T, steps []*step.Step, name string) *step.Step {
	t.Helper()
	for _, s := range steps {
		if s.Name == name {
			return s
		}
	}
	require.FailNow(t, "step not found", "no step named %q", name)
	return nil
}

// AssertSucceeded checks that the named step has a successful outcome with
// the given output.
func AssertSucceeded(t *testing.T, steps []*step.Step, name, output string) {
	t.Helper()
	s := FindStep(t, steps, name)
	require.NotNil(t, s.Outcome, "step %q has no outcome", name)
	require.NoError(t, s.Outcome.Err, "step %q failed", name)
	require.Equal(t, output, s.Outcome.Output, "unexpected output for step %q", name)
}

// AssertSkipped checks that the named step failed with Dependency Not Met.
func AssertSkipped(t *testing.T, steps []*step.Step, name string) {
	t.Helper()
	s := FindStep(t, steps, name)
	require.NotNil(t, s.Outcome, "step %q has no outcome", name)
	require.ErrorIs(t, s.Outcome.Err, step.ErrDependencyNotMet, "step %q was not skipped", name)
	require.Equal(t, "Dependency Not Met", s.Outcome.Err.Error())
}

// AssertRanBefore checks that first finished executing before second started.
func AssertRanBefore(t *testing.T, exec *RecordingExecutor, first, second string) {
	t.Helper()
	a, ok := exec.Record(first)
	require.True(t, ok, "command %q never ran", first)
	b, ok := exec.Record(second)
	require.True(t, ok, "command %q never ran", second)
	require.False(t, b.Start.Before(a.End),
		"%q started at %v before %q finished at %v", second, b.Start, first, a.End)
}
