package syncretry

import "time"

const (
	WorkflowName  = "pending_sync_sweep"
	WorkflowID    = "pending-sync-sweeper"
	ActivitySweep = "pending_sync_sweep_batch"
)

type SweepInput struct {
	Interval time.Duration `json:"interval"`
	// MaxTicks bounds history before the workflow continues as new.
	MaxTicks int `json:"max_ticks"`
}

type SweepResult struct {
	Resolved  int   `json:"resolved"`
	Remaining int64 `json:"remaining"`
}
