package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/dag"
	"github.com/specialistvlad/stepgridgo/internal/history"
	"github.com/specialistvlad/stepgridgo/internal/report"
	"github.com/specialistvlad/stepgridgo/internal/scheduler"
	"github.com/specialistvlad/stepgridgo/internal/step"
	"github.com/specialistvlad/stepgridgo/internal/workflow"
)

// ErrStepsFailed is returned by Run when the run finished but not every step
// succeeded.
var ErrStepsFailed = errors.New("not all steps succeeded")

// Run loads the workflow, executes it, records it in the history store and
// writes the report.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	ctx, logger := ctxlog.With(ctxlog.WithLogger(ctx, a.logger), "run_id", runID)
	logger.Debug("App.Run method started.")

	if err := a.startHealthcheckServer(ctx); err != nil {
		return err
	}
	defer a.closeHealthcheckServer(ctx)

	steps, err := workflow.Load(ctx, a.config.WorkflowPaths...)
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}
	if len(steps) == 0 {
		logger.Warn("No steps found in workflow, execution not required.")
		return nil
	}

	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if err := store.CreateRun(ctx, runID, strings.Join(a.config.WorkflowPaths, ","), time.Now()); err != nil {
			return err
		}
	}

	a.tracker.start(runID, len(steps))
	observer := func(ctx context.Context, index int, s *step.Step, outcome step.Outcome) {
		a.tracker.observe(outcome)
		if store == nil {
			return
		}
		if err := store.RecordStep(ctx, runID, index, s.Name, outcome); err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to record step in history.", "step", s.Name, "error", err)
		}
	}

	opts := []scheduler.Option{
		scheduler.WithRunID(runID),
		scheduler.WithWorkers(a.config.WorkerCount),
		scheduler.WithObserver(observer),
	}
	if a.executor != nil {
		opts = append(opts, scheduler.WithExecutor(a.executor))
	}

	logger.Info("Starting concurrent execution.", "steps", len(steps))
	runErr := scheduler.Run(ctx, steps, opts...)
	a.tracker.finish()

	var sum report.Summary
	if runErr == nil {
		sum, err = report.New(a.outW, a.config.NoColor).Steps(steps)
		if err != nil {
			logger.Warn("Failed to write report.", "error", err)
		}
	}

	if store != nil {
		status := history.RunSucceeded
		switch {
		case runErr != nil:
			status = history.RunErrored
		case !sum.OK():
			status = history.RunFailed
		}
		// The run's own context may already be cancelled.
		if err := store.FinishRun(context.WithoutCancel(ctx), runID, status, time.Now(), runErr); err != nil {
			logger.Warn("Failed to finish run in history.", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	logger.Info("Execution finished.", "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
	if !sum.OK() {
		return fmt.Errorf("%w: %d failed, %d skipped", ErrStepsFailed, sum.Failed, sum.Skipped)
	}
	return nil
}

// Validate loads the workflow and builds its dependency graph without
// executing anything.
func (a *App) Validate(ctx context.Context) (*dag.Graph, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	steps, err := workflow.Load(ctx, a.config.WorkflowPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	graph, err := dag.Build(ctx, steps)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	fmt.Fprintf(a.outW, "Workflow is valid: %d steps, %d dependencies, %d roots.\n",
		graph.Len(), graph.EdgeCount(), len(graph.Roots()))
	return graph, nil
}

// History writes the most recent recorded runs.
func (a *App) History(ctx context.Context, limit int) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if a.config.HistoryPath == "" {
		return errors.New("history is disabled: set --history or STEPGRID_HISTORY")
	}

	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	return report.New(a.outW, a.config.NoColor).Runs(runs)
}
