package integration_tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stepgridgo/internal/integration_tests/harness"
	"github.com/specialistvlad/stepgridgo/internal/testutil"
)

// TestDagConcurrency_FanOutExecutionTest validates that steps in a fan-out
// structure run concurrently once their shared dependency has finished.
func TestDagConcurrency_FanOutExecutionTest(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	gridHCL := `
		step "A" {
			run = "sleep A"
		}
		step "B" {
			run     = "sleep B"
			require = ["A"]
		}
		step "C" {
			run     = "sleep C"
			require = ["A"]
		}
		step "D" {
			run     = "sleep D"
			require = ["A"]
		}
	`
	// B, C and D only return once all three are running.
	fanOut := newBarrier(t, 3)
	exec := testutil.NewRecordingExecutor(t).
		On("sleep A", testutil.Response{Output: "A", Delay: 50 * time.Millisecond}).
		On("sleep B", testutil.Response{Output: "B", Hook: fanOut.arrive}).
		On("sleep C", testutil.Response{Output: "C", Hook: fanOut.arrive}).
		On("sleep D", testutil.Response{Output: "D", Hook: fanOut.arrive})

	// --- Act ---
	result := harness.Run(t, map[string]string{"main.hcl": gridHCL}, exec, nil)

	// --- Assert ---
	require.NoError(t, result.Err, "test run failed unexpectedly")
	require.Len(t, exec.Calls(), 4)
	require.Equal(t, "sleep A", exec.Calls()[0])
	for _, name := range []string{"B", "C", "D"} {
		testutil.AssertRanBefore(t, exec, "sleep A", "sleep "+name)
	}
}
