package syncretry

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	defaultInterval     = 30 * time.Second
	defaultMaxTicks     = 500
	backlogInterval     = time.Second
	continueHistorySize = 10000
)

// Workflow sweeps the pending-sync ledger forever. A batch that leaves due rows behind
// is followed immediately by the next one.
func Workflow(ctx workflow.Context, in SweepInput) error {
	if in.Interval <= 0 {
		in.Interval = defaultInterval
	}
	if in.MaxTicks <= 0 {
		in.MaxTicks = defaultMaxTicks
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})
	logger := workflow.GetLogger(ctx)

	for tick := 1; ; tick++ {
		var out SweepResult
		if err := workflow.ExecuteActivity(ctx, ActivitySweep).Get(ctx, &out); err != nil {
			// The ledger is durable; a failed batch is retried on the next tick.
			logger.Warn("pending sync sweep failed", "error", err)
		}
		wait := in.Interval
		if out.Remaining > 0 {
			wait = backlogInterval
		}
		if err := workflow.Sleep(ctx, wait); err != nil {
			return err
		}
		if shouldContinueAsNew(ctx, tick, in.MaxTicks) {
			return workflow.NewContinueAsNewError(ctx, Workflow, in)
		}
	}
}

func shouldContinueAsNew(ctx workflow.Context, ticks, maxTicks int) bool {
	if maxTicks > 0 && ticks >= maxTicks {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistorySize
}
