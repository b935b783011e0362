package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stepgridgo/internal/dag"
	"github.com/specialistvlad/stepgridgo/internal/history"
	"github.com/specialistvlad/stepgridgo/internal/step"
	"github.com/specialistvlad/stepgridgo/internal/testutil"
)

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{WorkflowPaths: []string{"flows"}, LogFormat: "JSON"})
	require.NoError(t, err)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "info", cfg.LogLevel)

	testCases := []struct {
		name     string
		cfg      Config
		contains string
	}{
		{name: "no paths", cfg: Config{}, contains: "at least one workflow path"},
		{name: "bad format", cfg: Config{WorkflowPaths: []string{"x"}, LogFormat: "xml"}, contains: "log format"},
		{name: "bad level", cfg: Config{WorkflowPaths: []string{"x"}, LogLevel: "loud"}, contains: "log level"},
		{name: "negative workers", cfg: Config{WorkflowPaths: []string{"x"}, WorkerCount: -1}, contains: "worker count"},
		{name: "bad port", cfg: Config{WorkflowPaths: []string{"x"}, HealthcheckPort: 70000}, contains: "healthcheck port"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.ErrorContains(t, err, tc.contains)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "took", 1500*time.Millisecond)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"took":"1.5s"`)
}

// Test for: An end-to-end run through the real shell resolves references
// and records history.
func TestApp_RunShell(t *testing.T) {
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("/bin/sh is not available")
	}

	// --- Arrange ---
	dir := writeWorkflow(t, "main.hcl", `
		step "command" {
			run = "echo 'echo 42'"
			filter "trim" {}
		}
		step "answer" {
			run_step = "command"
			expect {
				kind  = "equals"
				value = "42\n"
			}
		}
	`)
	historyPath := filepath.Join(t.TempDir(), "state", "history.db")
	testApp, logs := setupAppTest(t, Config{WorkflowPaths: []string{dir}, HistoryPath: historyPath, NoColor: true})

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, logs.String(), "2 steps: 2 succeeded, 0 failed, 0 skipped")

	store, err := history.Open(context.Background(), historyPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, history.RunSucceeded, runs[0].Status)
	require.Equal(t, 2, runs[0].Succeeded)

	records, err := store.Steps(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Equal(t, "42\n", records[1].Output)
}

// Test for: Failed steps surface as ErrStepsFailed and a failed history entry.
func TestApp_RunWithFailures(t *testing.T) {
	dir := writeWorkflow(t, "flow.yaml", `
steps:
  - name: broken
    run: broken
  - name: downstream
    run: downstream
    require: [broken]
  - name: unrelated
    run: unrelated
`)
	historyPath := filepath.Join(t.TempDir(), "history.db")
	recorder := testutil.NewRecordingExecutor(t).
		On("broken", testutil.Response{Err: errors.New("exit status 2")})
	testApp, logs := setupAppTest(t,
		Config{WorkflowPaths: []string{dir}, HistoryPath: historyPath, NoColor: true},
		WithExecutor(recorder))

	err := testApp.Run(context.Background())

	require.ErrorIs(t, err, ErrStepsFailed)
	require.ErrorContains(t, err, "1 failed, 1 skipped")
	require.False(t, recorder.Called("downstream"))
	require.Contains(t, logs.String(), "skipped: Dependency Not Met")

	var out bytes.Buffer
	historyApp := NewApp(&out, &Config{WorkflowPaths: []string{dir}, HistoryPath: historyPath, NoColor: true})
	require.NoError(t, historyApp.History(context.Background(), 5))
	require.Contains(t, out.String(), "failed")
}

func TestApp_RunInvalidGraph(t *testing.T) {
	dir := writeWorkflow(t, "flow.hcl", `
		step "a" {
			run     = "a"
			require = ["b"]
		}
		step "b" {
			run     = "b"
			require = ["a"]
		}
	`)
	historyPath := filepath.Join(t.TempDir(), "history.db")
	recorder := testutil.NewRecordingExecutor(t)
	testApp, _ := setupAppTest(t, Config{WorkflowPaths: []string{dir}, HistoryPath: historyPath}, WithExecutor(recorder))

	err := testApp.Run(context.Background())

	require.ErrorIs(t, err, dag.ErrCycle)
	require.Empty(t, recorder.Calls())

	store, err := history.Open(context.Background(), historyPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, history.RunErrored, runs[0].Status)
	require.Contains(t, runs[0].Error, "cycle detected")
}

func TestApp_RunMissingWorkflow(t *testing.T) {
	testApp, _ := setupAppTest(t, Config{WorkflowPaths: []string{filepath.Join(t.TempDir(), "nothing")}})

	err := testApp.Run(context.Background())

	require.ErrorContains(t, err, "no workflow files found")
}

func TestApp_Validate(t *testing.T) {
	dir := writeWorkflow(t, "flow.hcl", `
		step "a" { run = "a" }
		step "b" { run_step = "a" }
		step "c" {
			run     = "c"
			require = ["a", "b"]
		}
	`)
	testApp, logs := setupAppTest(t, Config{WorkflowPaths: []string{dir}})

	graph, err := testApp.Validate(context.Background())

	require.NoError(t, err)
	require.Equal(t, 3, graph.Len())
	require.Contains(t, logs.String(), "Workflow is valid: 3 steps, 3 dependencies, 1 roots.")
}

func TestApp_HistoryDisabled(t *testing.T) {
	testApp, _ := setupAppTest(t, Config{WorkflowPaths: []string{"x"}})

	err := testApp.History(context.Background(), 10)

	require.ErrorContains(t, err, "history is disabled")
}

func TestApp_HealthEndpoints(t *testing.T) {
	testApp, _ := setupAppTest(t, Config{WorkflowPaths: []string{"x"}})
	testApp.tracker.start("run-1", 3)
	testApp.tracker.observe(step.Outcome{Output: "ok"})
	testApp.tracker.observe(step.DependencyNotMet())

	rec := httptest.NewRecorder()
	testApp.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", strings.TrimSpace(rec.Body.String()))

	rec = httptest.NewRecorder()
	testApp.statusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, Progress{RunID: "run-1", Running: true, Total: 3, Completed: 2, Skipped: 1}, got)
}
