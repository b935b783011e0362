package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
	"github.com/specialistvlad/stepgridgo/internal/step"
)

var (
	tracer = otel.Tracer("stepgridgo.scheduler")
	meter  = otel.Meter("stepgridgo.scheduler")
)

// instruments groups the scheduler's metrics. Any instrument that failed to
// initialise is left nil and skipped.
type instruments struct {
	stepsCompleted metric.Int64Counter
	stepsFailed    metric.Int64Counter
	stepsSkipped   metric.Int64Counter
	stepDuration   metric.Float64Histogram
	runDuration    metric.Float64Histogram
}

var (
	metricsOnce sync.Once
	metrics     *instruments
)

// getInstruments lazily creates the metrics, logging creation errors once
// and continuing without the failed instruments.
func getInstruments(ctx context.Context) *instruments {
	metricsOnce.Do(func() {
		var initErrors []string
		inst := &instruments{}

		var err error
		inst.stepsCompleted, err = meter.Int64Counter("scheduler_steps_completed_total",
			metric.WithDescription("Number of steps that ran and succeeded"),
		)
		if err != nil {
			initErrors = append(initErrors, "steps_completed: "+err.Error())
		}

		inst.stepsFailed, err = meter.Int64Counter("scheduler_steps_failed_total",
			metric.WithDescription("Number of steps that ran and failed"),
		)
		if err != nil {
			initErrors = append(initErrors, "steps_failed: "+err.Error())
		}

		inst.stepsSkipped, err = meter.Int64Counter("scheduler_steps_skipped_total",
			metric.WithDescription("Number of steps skipped because a dependency failed"),
		)
		if err != nil {
			initErrors = append(initErrors, "steps_skipped: "+err.Error())
		}

		inst.stepDuration, err = meter.Float64Histogram("scheduler_step_duration_seconds",
			metric.WithDescription("Wall-clock duration of executed steps, retries included"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_duration: "+err.Error())
		}

		inst.runDuration, err = meter.Float64Histogram("scheduler_run_duration_seconds",
			metric.WithDescription("Wall-clock duration of a whole run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_duration: "+err.Error())
		}

		if len(initErrors) > 0 {
			ctxlog.FromContext(ctx).Error("Failed to initialize some scheduler metrics.",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
		metrics = inst
	})
	return metrics
}

func (i *instruments) recordStep(ctx context.Context, name string, outcome step.Outcome) {
	attrs := metric.WithAttributes(attribute.String("step", name))

	switch {
	case outcome.Skipped():
		if i.stepsSkipped != nil {
			i.stepsSkipped.Add(ctx, 1, attrs)
		}
		return
	case outcome.Failed():
		if i.stepsFailed != nil {
			i.stepsFailed.Add(ctx, 1, attrs)
		}
	default:
		if i.stepsCompleted != nil {
			i.stepsCompleted.Add(ctx, 1, attrs)
		}
	}
	if i.stepDuration != nil {
		i.stepDuration.Record(ctx, outcome.Duration.Seconds(), attrs)
	}
}

func (i *instruments) recordRun(ctx context.Context, d time.Duration) {
	if i.runDuration != nil {
		i.runDuration.Record(ctx, d.Seconds())
	}
}
