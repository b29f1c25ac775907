package syncretry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/envutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

const defaultRunner = "local"

// Retrier re-runs one pending synchronisation and reschedules or clears its row.
type Retrier interface {
	RetryPending(ctx context.Context, row *types.PendingSync, runner string) error
}

type Config struct {
	// Runner labels retry metrics; "local" or "temporal".
	Runner      string
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	StaleLock   time.Duration
	Concurrency int
}

// ConfigFromEnv reads SYNC_RETRY_* settings.
func ConfigFromEnv() Config {
	return Config{
		Interval:    envutil.Duration("SYNC_RETRY_INTERVAL", 5*time.Second),
		BatchSize:   envutil.Int("SYNC_RETRY_BATCH", 20),
		MaxAttempts: envutil.Int("SYNC_RETRY_MAX_ATTEMPTS", 10),
		StaleLock:   envutil.Duration("SYNC_RETRY_STALE_LOCK", 5*time.Minute),
		Concurrency: envutil.Int("SYNC_RETRY_CONCURRENCY", 1),
	}
}

func (c Config) withDefaults() Config {
	if c.Runner == "" {
		c.Runner = defaultRunner
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.StaleLock <= 0 {
		c.StaleLock = 5 * time.Minute
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	return c
}

// Worker polls the pending-sync ledger. Start runs it in-process when Temporal is
// disabled; the Temporal sweep activity calls RunOnce directly.
type Worker struct {
	log     *logger.Logger
	pending repos.PendingSyncRepo
	retrier Retrier
	cfg     Config
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, pending repos.PendingSyncRepo, retrier Retrier, cfg Config) *Worker {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Worker{
		log:     baseLog.With("component", "SyncRetryWorker"),
		pending: pending,
		retrier: retrier,
		cfg:     cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting sync retry worker", "concurrency", w.cfg.Concurrency, "interval", w.cfg.Interval.String())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Sync retry loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Warn("Sync retry pass failed", "worker_id", workerID, "error", err)
			}
		}
	}
}

// RunOnce claims one batch of due rows and retries each. It returns how many rows
// resolved.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	rows, err := w.pending.ClaimDue(dbctx.New(ctx), w.now(), w.cfg.BatchSize, w.cfg.MaxAttempts, w.cfg.StaleLock)
	if err != nil {
		return 0, fmt.Errorf("claim pending syncs: %w", err)
	}
	resolved := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		if w.retry(ctx, row) {
			resolved++
		}
	}
	return resolved, nil
}

func (w *Worker) retry(ctx context.Context, row *types.PendingSync) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Sync retry panic", "pending_id", row.ID, "panic", r)
			next := w.now().Add(w.cfg.StaleLock)
			if err := w.pending.MarkFailed(dbctx.New(context.WithoutCancel(ctx)), row.ID, fmt.Sprintf("panic: %v", r), next); err != nil {
				w.log.Error("Reschedule after panic failed", "pending_id", row.ID, "error", err)
			}
			ok = false
		}
	}()
	if err := w.retrier.RetryPending(ctx, row, w.cfg.Runner); err != nil {
		w.log.Debug("Pending sync still failing", "pending_id", row.ID, "attempts", row.Attempts, "error", err)
		if row.Attempts >= w.cfg.MaxAttempts {
			w.log.Warn("Pending sync exhausted retries", "pending_id", row.ID, "user_id", row.UserID, "source_id", row.SourceID)
		}
		return false
	}
	return true
}

// Due counts rows ready for another attempt.
func (w *Worker) Due(ctx context.Context) (int64, error) {
	n, err := w.pending.CountDue(dbctx.New(ctx), w.now(), w.cfg.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("count pending syncs: %w", err)
	}
	return n, nil
}
