package signals

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// WorkflowID is fixed so at most one scheduled optimizer exists per
// namespace.
const WorkflowID = "signal-weight-optimizer"

// Activities exposes the optimizer to Temporal workers.
type Activities struct {
	Optimizer *Optimizer
}

// Optimize runs one optimization pass.
func (a *Activities) Optimize(ctx context.Context) (*Report, error) {
	report, err := a.Optimizer.Optimize(ctx)
	if err != nil {
		// A retry would see the same outcome or double-apply adjustments.
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrOptimizerBusy) || errors.Is(err, ErrNoActiveSet) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "optimizer_skip", err)
		}
		return nil, err
	}
	return report, nil
}

// OptimizeWorkflow runs the optimize activity with bounded retries.
func OptimizeWorkflow(ctx workflow.Context) (*Report, error) {
	logger := workflow.GetLogger(ctx)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	var report Report
	if err := workflow.ExecuteActivity(ctx, a.Optimize).Get(ctx, &report); err != nil {
		logger.Error("optimize activity failed", "error", err)
		return nil, err
	}

	logger.Info("optimize complete",
		"previous_version", report.PreviousVersion,
		"new_version", report.NewVersion,
		"changed", report.Changed,
	)
	return &report, nil
}

// Schedule starts the cron-scheduled optimizer workflow. When the
// workflow is already running the existing run is returned.
func Schedule(ctx context.Context, c client.Client, taskQueue, cron string) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID,
		TaskQueue:             taskQueue,
		CronSchedule:          cron,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, OptimizeWorkflow)
	if err != nil {
		return nil, eris.Wrap(err, "signals: schedule optimizer")
	}
	return run, nil
}
