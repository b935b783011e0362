package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/stepgridgo/internal/step"
)

// Response is the canned result a RecordingExecutor returns for a command.
type Response struct {
	Output string
	Err    error
	// Delay is slept before returning.
	Delay time.Duration
	// Hook, when set, runs before the delay. It may block.
	Hook func(ctx context.Context)
}

// ExecutionRecord holds the start and end times of one execution.
type ExecutionRecord struct {
	Run   step.RunType
	Start time.Time
	End   time.Time
}

// RecordingExecutor is a shared, self-contained executor for scheduler tests.
// It records every call and fails the test if a command is executed twice.
// Unknown commands succeed and echo the command as their output.
type RecordingExecutor struct {
	t         testing.TB
	mu        sync.Mutex
	responses map[string]Response
	records   map[string]*ExecutionRecord
	order     []string
}

// NewRecordingExecutor creates an executor bound to t.
func NewRecordingExecutor(t testing.TB) *RecordingExecutor {
	return &RecordingExecutor{
		t:         t,
		responses: make(map[string]Response),
		records:   make(map[string]*ExecutionRecord),
	}
}

// On registers the response for command.
func (r *RecordingExecutor) On(command string, resp Response) *RecordingExecutor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[command] = resp
	return r
}

// Execute implements the scheduler's executor contract.
func (r *RecordingExecutor) Execute(ctx context.Context, run step.RunType, _ step.ExpectType, _ []step.FilterType, _ step.RetryPolicy) step.Outcome {
	start := time.Now()

	r.mu.Lock()
	if _, dup := r.records[run.Value]; dup {
		r.t.Errorf("command %q executed more than once", run.Value)
	}
	rec := &ExecutionRecord{Run: run, Start: start}
	r.records[run.Value] = rec
	r.order = append(r.order, run.Value)
	resp, ok := r.responses[run.Value]
	r.mu.Unlock()

	if !ok {
		resp = Response{Output: run.Value}
	}
	if resp.Hook != nil {
		resp.Hook(ctx)
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	end := time.Now()
	r.mu.Lock()
	rec.End = end
	r.mu.Unlock()

	return step.Outcome{Output: resp.Output, Err: resp.Err, Duration: end.Sub(start)}
}

// Record returns the execution record for command.
func (r *RecordingExecutor) Record(command string) (ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[command]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// Called reports whether command was executed.
func (r *RecordingExecutor) Called(command string) bool {
	_, ok := r.Record(command)
	return ok
}

// Calls returns the executed commands in start order.
func (r *RecordingExecutor) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
