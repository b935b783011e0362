// Package harness runs complete workflows through the application for the
// system tests under internal/integration_tests.
package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stepgridgo/internal/app"
	"github.com/specialistvlad/stepgridgo/internal/history"
	"github.com/specialistvlad/stepgridgo/internal/testutil"
)

// Result holds everything a system test may want to inspect after a run.
type Result struct {
	// Err is the error returned by App.Run.
	Err error
	// Output is the combined log and report output.
	Output *testutil.SafeBuffer
	// Steps are the step records persisted for the run, in index order.
	Steps []*history.StepRecord
	// Run is the persisted run, nil if the run never reached the history store.
	Run *history.Run
}

// Step returns the record of the step named name.
func (r *Result) Step(t *testing.T, name string) *history.StepRecord {
	t.Helper()
	for _, s := range r.Steps {
		if s.Name == name {
			return s
		}
	}
	require.FailNow(t, "step not recorded", "no record for step %q", name)
	return nil
}

// WriteFiles writes files (relative path → content) below a fresh temporary
// directory and returns it.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

// Run writes files to a temporary directory and runs it as a workflow with
// exec standing in for the shell. cfg may be nil. WorkflowPaths and
// HistoryPath are always set by the harness.
func Run(t *testing.T, files map[string]string, exec *testutil.RecordingExecutor, cfg *app.Config) *Result {
	t.Helper()

	dir := WriteFiles(t, files)
	if cfg == nil {
		cfg = &app.Config{WorkerCount: 4}
	}
	cfg.WorkflowPaths = []string{dir}
	cfg.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	cfg.LogLevel = "debug"
	cfg.NoColor = true

	validated, err := app.NewConfig(*cfg)
	require.NoError(t, err)

	out := &testutil.SafeBuffer{}
	var opts []app.Option
	if exec != nil {
		opts = append(opts, app.WithExecutor(exec))
	}
	testApp := app.NewApp(out, validated, opts...)

	t.Cleanup(func() {
		if os.Getenv("STEPGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), out.String())
		}
	})

	result := &Result{Output: out}
	result.Err = testApp.Run(context.Background())
	result.Run, result.Steps = readHistory(t, validated.HistoryPath)
	return result
}

func readHistory(t *testing.T, path string) (*history.Run, []*history.StepRecord) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	ctx := context.Background()
	store, err := history.Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	if len(runs) == 0 {
		return nil, nil
	}
	steps, err := store.Steps(ctx, runs[0].ID)
	require.NoError(t, err)
	return runs[0], steps
}
