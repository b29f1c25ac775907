package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/coursetrack-backend/internal/platform/envutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
	"github.com/yungbote/coursetrack-backend/internal/temporalx"
	"github.com/yungbote/coursetrack-backend/internal/temporalx/syncretry"
)

// Options tune the worker and the sweep it keeps alive.
type Options struct {
	Concurrency  int
	StartMaxWait time.Duration
	Sweep        syncretry.SweepInput
}

// OptionsFromEnv reads WORKER_CONCURRENCY, TEMPORAL_WORKER_START_MAX_WAIT,
// SYNC_RETRY_INTERVAL and SYNC_RETRY_MAX_TICKS.
func OptionsFromEnv() Options {
	return Options{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		StartMaxWait: envutil.Duration("TEMPORAL_WORKER_START_MAX_WAIT", time.Minute),
		Sweep: syncretry.SweepInput{
			Interval: envutil.Duration("SYNC_RETRY_INTERVAL", 30*time.Second),
			MaxTicks: envutil.Int("SYNC_RETRY_MAX_TICKS", 500),
		},
	}
}

// Runner polls the sync task queue and owns the singleton sweep workflow.
type Runner struct {
	log     *logger.Logger
	tc      client.Client
	cfg     temporalx.Config
	opts    Options
	sweeper syncretry.Sweeper
}

func NewRunner(log *logger.Logger, tc client.Client, cfg temporalx.Config, sweeper syncretry.Sweeper, opts Options) (*Runner, error) {
	switch {
	case tc == nil:
		return nil, errors.New("temporal worker: no client")
	case sweeper == nil:
		return nil, errors.New("temporal worker: no sweeper")
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{log: log.Component("temporal_worker"), tc: tc, cfg: cfg, opts: opts, sweeper: sweeper}, nil
}

// Start begins polling and returns once the worker is up and the sweep is scheduled.
// The worker stops when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	var w worker.Worker
	err := temporalx.Retry(ctx, r.cfg, r.opts.StartMaxWait, func(attempt int) (bool, error) {
		w = r.build()
		err := w.Start()
		if err == nil {
			return false, nil
		}
		w.Stop()
		var missing *serviceerror.NamespaceNotFound
		if errors.As(err, &missing) {
			if !r.cfg.AutoRegisterNamespace {
				return false, fmt.Errorf("namespace %s does not exist: %w", r.cfg.Namespace, err)
			}
			if nsErr := temporalx.EnsureNamespace(ctx, r.log, r.cfg); nsErr != nil {
				r.log.Warn("namespace registration failed", "namespace", r.cfg.Namespace, "error", nsErr)
			}
		}
		r.log.Warn("worker start failed", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", err)
		return true, err
	})
	if err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	r.log.Info("worker polling", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	return r.scheduleSweep(ctx)
}

func (r *Runner) build() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.opts.Concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.opts.Concurrency,
	})
	acts := &syncretry.Activities{Log: r.log, Sweeper: r.sweeper}
	w.RegisterWorkflowWithOptions(syncretry.Workflow, workflow.RegisterOptions{Name: syncretry.WorkflowName})
	w.RegisterActivityWithOptions(acts.Sweep, activity.RegisterOptions{Name: syncretry.ActivitySweep})
	return w
}

// scheduleSweep starts the sweep under its fixed id; an already running sweep is reused.
func (r *Runner) scheduleSweep(ctx context.Context) error {
	run, err := r.tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        syncretry.WorkflowID,
		TaskQueue: r.cfg.TaskQueue,
	}, syncretry.WorkflowName, r.opts.Sweep)
	if err != nil {
		return fmt.Errorf("schedule pending sync sweep: %w", err)
	}
	r.log.Info("pending sync sweep scheduled", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
