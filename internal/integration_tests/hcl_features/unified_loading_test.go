package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stepgridgo/internal/integration_tests/harness"
	"github.com/specialistvlad/stepgridgo/internal/testutil"
)

// TestHclFeatures_UnifiedLoading validates that HCL and YAML files in one
// directory form a single workflow whose steps may depend on each other.
func TestHclFeatures_UnifiedLoading(t *testing.T) {
	// --- Arrange ---
	t.Setenv("STEPGRID_TEST_TARGET", "staging")
	buildHCL := `
		step "build" {
			run = "build ${upper(env.STEPGRID_TEST_TARGET)}"
		}
	`
	deployYAML := `
steps:
  - name: deploy
    run: deploy
    require: [build]
`
	files := map[string]string{
		"a_build.hcl":          buildHCL,
		"nested/b_deploy.yaml": deployYAML,
	}
	exec := testutil.NewRecordingExecutor(t)

	// --- Act ---
	result := harness.Run(t, files, exec, nil)

	// --- Assert ---
	require.NoError(t, result.Err)
	require.Equal(t, []string{"build STAGING", "deploy"}, exec.Calls())
	require.Len(t, result.Steps, 2)
	require.Equal(t, "build STAGING", result.Step(t, "build").Output)
}
