package syncer

import (
	"context"
	"errors"
	"math"
	"time"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
)

// RetryPolicy schedules pending-sync retries with capped exponential backoff.
type RetryPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Base <= 0 {
		p.Base = 30 * time.Second
	}
	if p.Max <= 0 {
		p.Max = time.Hour
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 10
	}
	return p
}

// Backoff returns the delay before the retry following attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Base) * math.Pow(2, float64(attempt-1))
	if d > float64(p.Max) || math.IsInf(d, 0) {
		return p.Max
	}
	return time.Duration(d)
}

func (s *Syncer) RetryPolicy() RetryPolicy { return s.retry }

func (s *Syncer) recordPending(ctx context.Context, e types.SyncEvent, partial *types.PartialSyncError) {
	if s.pending == nil {
		return
	}
	row := &types.PendingSync{
		ClientID:         e.ClientID,
		UserID:           e.UserID,
		CourseID:         e.CourseID,
		ContentPackageID: e.ContentPackageID,
		ContentKind:      e.ContentKind,
		SourceKind:       e.Source.Kind,
		SourceID:         e.Source.ID,
		LastError:        truncate(partial.Error(), 2000),
		NextAttemptAt:    s.now().Add(s.retry.Backoff(1)),
	}
	// The request context may already be cancelled by the failing target.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.targetTimeout)
	defer cancel()
	if err := s.pending.Upsert(dbctx.New(writeCtx), row); err != nil {
		s.log.Error("record pending sync failed", "user_id", e.UserID, "source", e.Source.String(), "error", err)
		return
	}
	s.metrics.IncPendingSyncEnqueued()
}

// RetryPending re-runs a recorded event. The row is removed on success and rescheduled
// on failure. The returned error is the sync failure, if any.
func (s *Syncer) RetryPending(ctx context.Context, row *types.PendingSync, runner string) error {
	if row == nil {
		return nil
	}
	e := row.Event()
	scope := ctxutil.Scope{ClientID: row.ClientID, UserID: row.UserID}
	if err := s.validate("progress.sync.retry", scope, e); err != nil {
		s.metrics.IncPendingSyncAttempt(runner, "invalid")
		return s.pending.Delete(dbctx.New(ctx), row.ID)
	}
	_, err := s.run(ctx, e)
	if err == nil {
		s.metrics.IncPendingSyncAttempt(runner, "resolved")
		s.metrics.IncPendingSyncResolved()
		return s.pending.Delete(dbctx.New(ctx), row.ID)
	}

	outcome := "failed"
	var partial *types.PartialSyncError
	switch {
	case errors.As(err, &partial):
		// a target's not_found leaves the other failed targets owed a retry
		outcome = "partial"
	case types.IsCode(err, types.CodeNotFound):
		// The source left the course. Nothing remains to mirror.
		s.metrics.IncPendingSyncAttempt(runner, "dropped")
		return s.pending.Delete(dbctx.New(ctx), row.ID)
	}
	s.metrics.IncPendingSyncAttempt(runner, outcome)
	next := s.now().Add(s.retry.Backoff(row.Attempts + 1))
	if markErr := s.pending.MarkFailed(dbctx.New(context.WithoutCancel(ctx)), row.ID, truncate(err.Error(), 2000), next); markErr != nil {
		s.log.Error("reschedule pending sync failed", "id", row.ID, "error", markErr)
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
