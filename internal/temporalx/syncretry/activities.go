package syncretry

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

// Sweeper runs one batch over the pending-sync ledger.
type Sweeper interface {
	RunOnce(ctx context.Context) (int, error)
	Due(ctx context.Context) (int64, error)
}

type Activities struct {
	Log     *logger.Logger
	Sweeper Sweeper
}

func (a *Activities) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	if a == nil || a.Sweeper == nil {
		return res, fmt.Errorf("syncretry: activity not configured")
	}
	stop := heartbeat(ctx)
	defer stop()

	resolved, err := a.Sweeper.RunOnce(ctx)
	if err != nil {
		return res, err
	}
	res.Resolved = resolved
	remaining, err := a.Sweeper.Due(ctx)
	if err != nil {
		return res, err
	}
	res.Remaining = remaining
	if resolved > 0 && a.Log != nil {
		a.Log.Info("Pending syncs resolved", "resolved", resolved, "remaining", remaining)
	}
	return res, nil
}

func heartbeat(ctx context.Context) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
