package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/dag"
	"github.com/specialistvlad/stepgridgo/internal/pool"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

// ErrWorkerPanic wraps a panic recovered from an executor.
var ErrWorkerPanic = errors.New("executor panicked")

// actor decides, each time it is polled, whether its step may start, must be
// failed outright or should stay dormant.
type actor struct {
	index int
	name  string

	// Private copies of the step's configuration.
	run     step.RunType
	expect  step.ExpectType
	retry   step.RetryPolicy
	filters []step.FilterType

	graph  *dag.Graph
	table  *Table
	pool   *pool.Pool
	names  map[string]int
	notify chan<- int
	exec   Executor
}

func newActor(index int, s *step.Step, shared *shared) *actor {
	return &actor{
		index:   index,
		name:    s.Name,
		run:     s.Run,
		expect:  s.Expect,
		retry:   s.Retry,
		filters: append([]step.FilterType(nil), s.Filters...),
		graph:   shared.graph,
		table:   shared.table,
		pool:    shared.pool,
		names:   shared.names,
		notify:  shared.notify,
		exec:    shared.exec,
	}
}

// poll is idempotent and may be called any number of times. Everything it
// reads or writes in the table happens under one acquisition of the lock.
func (a *actor) poll(ctx context.Context) {
	logger := ctxlog.FromContext(ctx).With("step", a.name, "index", a.index)
	logger.Debug("Poll received.")

	t := a.table
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.drained || t.statuses[a.index].Phase == Completed {
		return
	}

	deps := a.graph.Dependencies(a.index)
	for _, dep := range deps {
		if st := t.statuses[dep]; st.Phase == Completed && st.Outcome.Failed() {
			logger.Warn("Skipping step due to upstream failure.", "dependency", a.graph.Name(dep))
			t.statuses[a.index] = Status{Phase: Completed, Outcome: step.DependencyNotMet()}
			a.notify <- a.index
			return
		}
	}
	for _, dep := range deps {
		if t.statuses[dep].Phase != Completed {
			logger.Debug("Dependency isn't completed, staying dormant.", "dependency", a.graph.Name(dep))
			return
		}
	}

	// InProgress is excluded so a redundant poll can never submit twice.
	if t.statuses[a.index].Phase != Outstanding {
		return
	}

	run := a.resolve(t.statuses)
	t.statuses[a.index].Phase = InProgress
	t.inflight++

	if err := a.pool.Submit(a.task(ctx, run)); err != nil {
		logger.Error("Failed to dispatch step.", "error", err)
		t.statuses[a.index] = Status{Phase: Completed, Outcome: step.Outcome{Err: fmt.Errorf("dispatching step: %w", err)}}
		t.inflight--
		a.notify <- a.index
		return
	}
	logger.Debug("Step dispatched.", "run", run.String())
}

// resolve rewrites a run_step action into the referenced step's recorded
// output. Callers hold the table lock and have checked that every dependency,
// the referenced step included, is Completed.
func (a *actor) resolve(statuses []Status) step.RunType {
	ref, ok := a.run.Reference()
	if !ok {
		return a.run
	}
	idx, found := a.names[ref]
	if !found {
		return a.run
	}
	if st := statuses[idx]; st.Phase == Completed {
		return step.Shell(st.Outcome.Output)
	}
	return a.run
}

// task builds the unit of work submitted to the pool. It is the only place
// a dispatched step signals completion.
func (a *actor) task(ctx context.Context, run step.RunType) func() {
	return func() {
		ctx, span := tracer.Start(ctx, "scheduler.Step",
			trace.WithAttributes(
				attribute.String("step.name", a.name),
				attribute.Int("step.index", a.index),
				attribute.String("step.run", run.String()),
			),
		)
		defer span.End()

		outcome := a.execute(ctx, run)
		if outcome.Failed() {
			span.RecordError(outcome.Err)
			span.SetStatus(codes.Error, outcome.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		if err := a.table.record(a.index, outcome); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to record step outcome.", "step", a.name, "error", err)
		}
		a.notify <- a.index
	}
}

// execute calls the executor, turning a panic into a failed outcome and
// poisoning the table so the run reports it.
func (a *actor) execute(ctx context.Context, run step.RunType) (outcome step.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: step %q: %v", ErrWorkerPanic, a.name, r)
			ctxlog.FromContext(ctx).Error("Executor panicked.", "step", a.name, "panic", r)
			a.table.poison(err)
			outcome = step.Outcome{Err: err}
		}
	}()
	return a.exec.Execute(ctx, run, a.expect, a.filters, a.retry)
}
