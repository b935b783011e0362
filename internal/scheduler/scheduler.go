package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/dag"
	"github.com/specialistvlad/stepgridgo/internal/pool"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

// ErrNotifyClosed is returned when the notification channel closes before
// every step has signalled.
var ErrNotifyClosed = errors.New("notification channel closed unexpectedly")

// Executor runs one resolved step action. It must always return an Outcome;
// failures are reported through Outcome.Err.
type Executor interface {
	Execute(ctx context.Context, run step.RunType, expect step.ExpectType, filters []step.FilterType, retry step.RetryPolicy) step.Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, run step.RunType, expect step.ExpectType, filters []step.FilterType, retry step.RetryPolicy) step.Outcome

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, run step.RunType, expect step.ExpectType, filters []step.FilterType, retry step.RetryPolicy) step.Outcome {
	return f(ctx, run, expect, filters, retry)
}

// Observer is called on the coordinator goroutine each time a step signals
// completion, in signal order.
type Observer func(ctx context.Context, index int, s *step.Step, outcome step.Outcome)

type options struct {
	workers  int
	exec     Executor
	observer Observer
	runID    string
}

// Option configures Run.
type Option func(*options)

// WithWorkers bounds the number of steps executing at once. Non-positive
// values select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithExecutor replaces the default shell executor.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.exec = e }
}

// WithObserver registers a completion callback.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// WithRunID sets the identifier attached to logs and spans. A random UUID is
// used otherwise.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// shared holds the handles every actor of a run points at.
type shared struct {
	graph  *dag.Graph
	table  *Table
	pool   *pool.Pool
	names  map[string]int
	notify chan<- int
	exec   Executor
}

// Run executes steps and records each step's outcome in steps[i].Outcome.
// A nil error means every step has an outcome, not that every step
// succeeded. Errors are returned only when the graph cannot be built, the
// run is interrupted through ctx, or the status table cannot be reclaimed.
func Run(ctx context.Context, steps []*step.Step, opts ...Option) error {
	o := options{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exec == nil {
		o.exec = step.NewShellExecutor()
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	ctx, logger := ctxlog.With(ctx, "run_id", o.runID)
	ctx, span := tracer.Start(ctx, "scheduler.Run",
		trace.WithAttributes(
			attribute.String("run.id", o.runID),
			attribute.Int("run.steps", len(steps)),
		),
	)
	defer span.End()

	inst := getInstruments(ctx)
	start := time.Now()

	err := run(ctx, steps, o, inst)
	inst.recordRun(ctx, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Run failed.", "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	logger.Debug("Run finished.", "duration", time.Since(start))
	return nil
}

func run(ctx context.Context, steps []*step.Step, o options, inst *instruments) error {
	logger := ctxlog.FromContext(ctx)

	graph, err := dag.Build(ctx, steps)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	names, err := dag.Lookup(steps)
	if err != nil {
		return fmt.Errorf("failed to index step names: %w", err)
	}

	n := len(steps)
	// Both buffers hold N entries: at most N tasks are ever submitted and
	// exactly N indices are ever sent, so neither send can block.
	notify := make(chan int, n)
	workers := pool.New(ctx, o.workers, n)
	defer workers.Close()

	sh := &shared{
		graph:  graph,
		table:  NewTable(n),
		pool:   workers,
		names:  names,
		notify: notify,
		exec:   o.exec,
	}
	actors := make([]*actor, n)
	for i, s := range steps {
		actors[i] = newActor(i, s, sh)
	}

	logger.Info("Starting run.", "steps", n, "edges", graph.EdgeCount(), "roots", len(graph.Roots()))
	for _, a := range actors {
		a.poll(ctx)
	}

	for received := 0; received < n; received++ {
		var finished int
		select {
		case idx, ok := <-notify:
			if !ok {
				return fmt.Errorf("after %d of %d signals: %w", received, n, ErrNotifyClosed)
			}
			finished = idx
		case <-ctx.Done():
			logger.Warn("Run interrupted, waiting for in-flight steps.", "received", received, "total", n)
			workers.Wait()
			return fmt.Errorf("run interrupted after %d of %d steps: %w", received, n, ctx.Err())
		}

		outcome := sh.table.Get(finished).Outcome
		inst.recordStep(ctx, steps[finished].Name, outcome)
		logStep(ctx, steps[finished].Name, outcome)
		if o.observer != nil {
			o.observer(ctx, finished, steps[finished], outcome)
		}

		for _, dependent := range graph.Dependents(finished) {
			actors[dependent].poll(ctx)
		}
	}

	workers.Wait()

	outcomes, err := sh.table.Drain()
	if err != nil {
		return fmt.Errorf("failed to reclaim status table: %w", err)
	}
	for i := range steps {
		outcome := outcomes[i]
		steps[i].Outcome = &outcome
	}
	return nil
}

func logStep(ctx context.Context, name string, outcome step.Outcome) {
	logger := ctxlog.FromContext(ctx).With("step", name, "duration", outcome.Duration)
	switch {
	case outcome.Skipped():
		logger.Debug("Step skipped.")
	case outcome.Failed():
		logger.Info("Step failed.", "error", outcome.Err)
	default:
		logger.Info("Step completed.")
	}
}
