package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/data/aggregates"
	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/keylock"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

const defaultTargetTimeout = 5 * time.Second

// Target actions reported in an Outcome.
const (
	ActionCreated    = "created"
	ActionBackfilled = "backfilled"
	ActionUnchanged  = "unchanged"
)

type Deps struct {
	DB            *gorm.DB
	Log           *logger.Logger
	Writer        *aggregates.Writer
	Records       repos.ContentProgressRepo
	Pending       repos.PendingSyncRepo
	Structure     types.StructureReader
	Submissions   types.SubmissionService
	Locks         keylock.Locker
	Metrics       *observability.Metrics
	TargetTimeout time.Duration
	Retry         RetryPolicy
	Now           func() time.Time
}

// Syncer mirrors progress between occurrences of one content package within a course.
type Syncer struct {
	log           *logger.Logger
	writer        *aggregates.Writer
	records       repos.ContentProgressRepo
	pending       repos.PendingSyncRepo
	structure     types.StructureReader
	submissions   types.SubmissionService
	locks         keylock.Locker
	metrics       *observability.Metrics
	targetTimeout time.Duration
	retry         RetryPolicy
	now           func() time.Time
}

func New(deps Deps) *Syncer {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Writer == nil {
		deps.Writer = aggregates.NewWriter(aggregates.BaseDeps{DB: deps.DB, Log: deps.Log})
	}
	if deps.Locks == nil {
		deps.Locks = keylock.NewLocal()
	}
	if deps.TargetTimeout <= 0 {
		deps.TargetTimeout = defaultTargetTimeout
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Syncer{
		log:           deps.Log.With("service", "SharedContentSynchronizer"),
		writer:        deps.Writer,
		records:       deps.Records,
		pending:       deps.Pending,
		structure:     deps.Structure,
		submissions:   deps.Submissions,
		locks:         deps.Locks,
		metrics:       deps.Metrics,
		targetTimeout: deps.TargetTimeout,
		retry:         deps.Retry.withDefaults(),
		now:           deps.Now,
	}
}

type TargetOutcome struct {
	Target               types.Occurrence `json:"target"`
	Action               string           `json:"action"`
	MirroredSubmission   bool             `json:"mirrored_submission,omitempty"`
	CompletedThroughSync bool             `json:"completed_through_sync,omitempty"`
}

// Outcome lists the targets written by a synchronisation.
type Outcome struct {
	Source  types.Occurrence `json:"source"`
	Targets []TargetOutcome  `json:"targets"`
}

// CanSource reports whether progress at an occurrence kind propagates to siblings.
func CanSource(k types.OccurrenceKind) bool {
	return k == types.OccurrencePrerequisite || k == types.OccurrenceModule
}

// Sync mirrors the source record of e onto every other occurrence of the same package.
// Failing targets do not block the others. They are returned in a *types.PartialSyncError
// and recorded for retry.
func (s *Syncer) Sync(ctx context.Context, scope ctxutil.Scope, e types.SyncEvent) (*Outcome, error) {
	const op = "progress.sync"
	if err := s.validate(op, scope, e); err != nil {
		return nil, err
	}
	out, err := s.run(ctx, e)
	var partial *types.PartialSyncError
	switch {
	case errors.As(err, &partial):
		s.recordPending(ctx, e, partial)
	case err == nil && s.pending != nil:
		if n, delErr := s.pending.DeleteEvent(dbctx.New(ctx), e); delErr != nil {
			s.log.Warn("clear pending sync failed", "error", delErr)
		} else if n > 0 {
			s.metrics.IncPendingSyncResolved()
		}
	}
	return out, err
}

func (s *Syncer) validate(op string, scope ctxutil.Scope, e types.SyncEvent) error {
	if err := types.RequireTenant(op, scope, e.ClientID); err != nil {
		return err
	}
	if e.UserID != scope.UserID {
		return types.NewError(types.CodeForbidden, op, "user mismatch", nil)
	}
	var bad []types.FieldError
	if e.CourseID == uuid.Nil {
		bad = append(bad, types.FieldError{Field: "course_id", Reason: "required"})
	}
	if e.ContentPackageID == uuid.Nil {
		bad = append(bad, types.FieldError{Field: "content_package_id", Reason: "required"})
	}
	if !e.ContentKind.Valid() {
		bad = append(bad, types.FieldError{Field: "content_kind", Reason: "unsupported content kind"})
	}
	if !CanSource(e.Source.Kind) || e.Source.ID == uuid.Nil {
		bad = append(bad, types.FieldError{Field: "source", Reason: "must be a prerequisite or module occurrence"})
	}
	if len(bad) > 0 {
		return types.ValidationError(op, bad)
	}
	return nil
}

func (s *Syncer) run(ctx context.Context, e types.SyncEvent) (*Outcome, error) {
	const op = "progress.sync"
	out := &Outcome{Source: e.Source, Targets: []TargetOutcome{}}

	unlock, err := s.locks.Lock(ctx, e.LockKey())
	if err != nil {
		return nil, types.StorageError(op, err)
	}
	defer unlock()

	items, err := s.structure.ListOccurrences(ctx, e.ClientID, e.CourseID)
	if err != nil {
		return nil, aggregates.MapError(op+".structure", err)
	}
	source, ok := types.FindItem(items, e.Source)
	if !ok {
		return nil, types.NotFound(op, "source occurrence is not part of the course")
	}
	if source.ContentPackageID != e.ContentPackageID || source.ContentKind != e.ContentKind {
		return nil, types.ValidationError(op, []types.FieldError{{Field: "content_package_id", Reason: "does not match the source occurrence"}})
	}
	targets := types.SiblingOccurrences(items, source)
	if len(targets) == 0 {
		return out, nil
	}

	srcRec, err := s.records.Get(dbctx.New(ctx), e.ClientID, e.UserID, e.Source)
	if err != nil {
		return nil, aggregates.MapError(op+".source", err)
	}
	if srcRec == nil {
		return out, nil
	}

	var failures []types.TargetFailure
	var succeeded []types.Occurrence
	for _, target := range targets {
		res, err := s.syncTarget(ctx, e, srcRec, target)
		if err != nil {
			s.metrics.IncSyncTarget("failed")
			s.log.Warn("sync target failed", "user_id", e.UserID, "source", e.Source.String(), "target", target.Occurrence.String(), "error", err)
			failures = append(failures, types.TargetFailure{Target: target.Occurrence, Err: err, Reason: err.Error()})
			continue
		}
		s.metrics.IncSyncTarget(res.Action)
		if res.CompletedThroughSync {
			s.metrics.IncCompletion(string(target.ContentKind), string(types.CompletedBySync))
		}
		succeeded = append(succeeded, target.Occurrence)
		out.Targets = append(out.Targets, res)
	}
	if len(failures) > 0 {
		return out, &types.PartialSyncError{Source: e.Source, Failures: failures, Succeeded: succeeded}
	}
	return out, nil
}

func (s *Syncer) syncTarget(ctx context.Context, e types.SyncEvent, src *types.ContentProgress, target types.StructureItem) (TargetOutcome, error) {
	tctx, cancel := context.WithTimeout(ctx, s.targetTimeout)
	defer cancel()

	res := TargetOutcome{Target: target.Occurrence, Action: ActionUnchanged}
	if target.ContentKind == types.KindAssignment && s.submissions != nil {
		mirrored, err := s.mirrorSubmission(tctx, e, target)
		if err != nil {
			return res, fmt.Errorf("mirror submission: %w", err)
		}
		res.MirroredSubmission = mirrored
	}

	srcPayload, err := src.DecodedPayload()
	if err != nil {
		return res, types.NewError(types.CodeValidation, "progress.sync.target", "source payload is not valid JSON", err)
	}

	err = s.writer.Write(tctx, "progress.sync.target", func(dbc dbctx.Context) error {
		res.Action = ActionUnchanged
		res.CompletedThroughSync = false
		now := s.now()
		rec, err := s.records.GetForUpdate(dbc, e.ClientID, e.UserID, target.Occurrence)
		if err != nil {
			return err
		}
		if rec == nil {
			rec, err = snapshot(src, srcPayload, target, now)
			if err != nil {
				return err
			}
			if err := s.records.Create(dbc, rec); err != nil {
				return err
			}
			res.Action = ActionCreated
			res.CompletedThroughSync = rec.IsCompleted
			return nil
		}
		changed, completed, err := backfill(rec, src, srcPayload, now)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		rec.UpdatedAt = now
		if err := s.records.Save(dbc, rec); err != nil {
			return err
		}
		res.Action = ActionBackfilled
		res.CompletedThroughSync = completed
		return nil
	})
	return res, err
}

// mirrorSubmission copies the source's latest attempt to target unless target already
// holds that mirror, or the source attempt is itself a mirror of target's latest.
// Draft attempts are not mirrored.
func (s *Syncer) mirrorSubmission(ctx context.Context, e types.SyncEvent, target types.StructureItem) (bool, error) {
	srcAttempt, err := s.submissions.LatestAttempt(ctx, e.ClientID, e.UserID, e.Source)
	if err != nil || srcAttempt == nil {
		return false, err
	}
	if !types.IsTerminalSubmission(srcAttempt.Status) {
		return false, nil
	}
	tgtAttempt, err := s.submissions.LatestAttempt(ctx, e.ClientID, e.UserID, target.Occurrence)
	if err != nil {
		return false, err
	}
	if tgtAttempt != nil {
		if tgtAttempt.MirroredFromID != nil && *tgtAttempt.MirroredFromID == srcAttempt.ID {
			return false, nil
		}
		if srcAttempt.MirroredFromID != nil && *srcAttempt.MirroredFromID == tgtAttempt.ID {
			return false, nil
		}
	}
	if _, err := s.submissions.MirrorAttempt(ctx, srcAttempt, target); err != nil {
		return false, err
	}
	return true, nil
}

// snapshot builds a target record as a copy of src. Time spent is not copied so course
// totals count it once.
func snapshot(src *types.ContentProgress, payload types.Payload, target types.StructureItem, now time.Time) (*types.ContentProgress, error) {
	raw, err := types.EncodePayload(payload.Clone())
	if err != nil {
		return nil, err
	}
	srcID := src.ID
	rec := &types.ContentProgress{
		ID:             uuid.New(),
		UserID:         src.UserID,
		Status:         src.Status,
		Percentage:     src.Percentage,
		SyncedFromID:   &srcID,
		Payload:        raw,
		StartedAt:      src.StartedAt,
		LastAccessedAt: src.LastAccessedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec.Place(target)
	if src.IsCompleted {
		at := now
		if src.CompletedAt != nil {
			at = *src.CompletedAt
		}
		rec.Complete(types.CompletedBySync, at)
	}
	return rec, nil
}

// backfill copies payload keys the target lacks and mirrors completion forward.
// Existing target values are never overwritten.
func backfill(rec, src *types.ContentProgress, srcPayload types.Payload, now time.Time) (changed, completed bool, err error) {
	payload, err := rec.DecodedPayload()
	if err != nil {
		return false, false, types.NewError(types.CodeValidation, "progress.sync.target", "target payload is not valid JSON", err)
	}
	for k, v := range srcPayload {
		if !payload.Has(k) {
			payload[k] = v
			changed = true
		}
	}
	if changed {
		if rec.Payload, err = types.EncodePayload(payload); err != nil {
			return false, false, err
		}
	}
	if src.Percentage > rec.Percentage {
		rec.RaisePercentage(src.Percentage)
		changed = true
	}
	if src.IsCompleted && !rec.IsCompleted {
		rec.Complete(types.CompletedBySync, now)
		srcID := src.ID
		rec.SyncedFromID = &srcID
		changed = true
		completed = true
	}
	if !rec.IsCompleted && rec.Status == types.StatusNotStarted && src.Status != types.StatusNotStarted {
		rec.Status = types.StatusInProgress
		changed = true
	}
	return changed, completed, nil
}
