package aggregate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/data/aggregates"
	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/rules"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/keylock"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type Deps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Writer    *aggregates.Writer
	Records   repos.ContentProgressRepo
	Courses   repos.CourseProgressRepo
	Pending   repos.PendingSyncRepo
	Structure types.StructureReader
	Rules     *rules.Engine
	Locks     keylock.Locker
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// Aggregator owns CourseProgress. It rolls item records up into course completion and
// keeps the learner's resume position.
type Aggregator struct {
	log       *logger.Logger
	writer    *aggregates.Writer
	records   repos.ContentProgressRepo
	courses   repos.CourseProgressRepo
	pending   repos.PendingSyncRepo
	structure types.StructureReader
	rules     *rules.Engine
	locks     keylock.Locker
	metrics   *observability.Metrics
	now       func() time.Time
}

func New(deps Deps) *Aggregator {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Writer == nil {
		deps.Writer = aggregates.NewWriter(aggregates.BaseDeps{DB: deps.DB, Log: deps.Log})
	}
	if deps.Locks == nil {
		deps.Locks = keylock.NewLocal()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Aggregator{
		log:       deps.Log.With("service", "CourseCompletionAggregator"),
		writer:    deps.Writer,
		records:   deps.Records,
		courses:   deps.Courses,
		pending:   deps.Pending,
		structure: deps.Structure,
		rules:     deps.Rules,
		locks:     deps.Locks,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
}

func lockKey(scope ctxutil.Scope, courseID uuid.UUID) string {
	return "course:" + scope.ClientID.String() + ":" + scope.UserID.String() + ":" + courseID.String()
}

func requireCourse(op string, scope ctxutil.Scope, courseID uuid.UUID) error {
	if err := types.RequireScope(op, scope); err != nil {
		return err
	}
	if courseID == uuid.Nil {
		return types.ValidationError(op, []types.FieldError{{Field: "course_id", Reason: "required"}})
	}
	return nil
}

// Items lists the course structure visible to the scope's tenant.
func (a *Aggregator) Items(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) ([]types.StructureItem, error) {
	const op = "progress.course.structure"
	if err := requireCourse(op, scope, courseID); err != nil {
		return nil, err
	}
	items, err := a.structure.ListOccurrences(ctx, scope.ClientID, courseID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return items, nil
}

// Compute rolls the scope user's records up over items without persisting. A nil items
// slice is read from the structure port.
func (a *Aggregator) Compute(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, items []types.StructureItem) (*types.CourseCompletion, error) {
	const op = "progress.course.compute"
	if err := requireCourse(op, scope, courseID); err != nil {
		return nil, err
	}
	if items == nil {
		var err error
		if items, err = a.Items(ctx, scope, courseID); err != nil {
			return nil, err
		}
	}
	return a.compute(dbctx.New(ctx), op, scope, courseID, items)
}

func (a *Aggregator) compute(dbc dbctx.Context, op string, scope ctxutil.Scope, courseID uuid.UUID, items []types.StructureItem) (*types.CourseCompletion, error) {
	recs, err := a.records.ListByUserCourse(dbc, scope.ClientID, scope.UserID, courseID)
	if err != nil {
		return nil, aggregates.MapError(op+".records", err)
	}
	out := build(scope.ClientID, scope.UserID, courseID, items, recs)
	if a.pending != nil {
		waiting, err := a.pending.ExistsForUserCourse(dbc, scope.ClientID, scope.UserID, courseID)
		if err != nil {
			return nil, aggregates.MapError(op+".pending", err)
		}
		out.Authoritative = !waiting
	}
	return out, nil
}

// Recompute persists the roll-up of the scope user's course. completed_at is written on
// the first transition to completed and kept afterwards.
func (a *Aggregator) Recompute(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) (*types.CourseCompletion, error) {
	const op = "progress.course.recompute"
	start := time.Now()
	items, err := a.Items(ctx, scope, courseID)
	if err != nil {
		return nil, err
	}
	unlock, err := a.locks.Lock(ctx, lockKey(scope, courseID))
	if err != nil {
		return nil, types.StorageError(op, err)
	}
	defer unlock()

	var out *types.CourseCompletion
	err = a.writer.Write(ctx, op, func(dbc dbctx.Context) error {
		computed, err := a.compute(dbc, op, scope, courseID, items)
		if err != nil {
			return err
		}
		now := a.now()
		cp, err := a.lockedProgress(dbc, scope, courseID, now)
		if err != nil {
			return err
		}
		fresh := computed.Progress
		cp.Status = fresh.Status
		cp.CompletionPercentage = fresh.CompletionPercentage
		cp.CompletedItems = fresh.CompletedItems
		cp.TotalItems = fresh.TotalItems
		cp.TotalTimeSpent = fresh.TotalTimeSpent
		if fresh.LastAccessedAt != nil && (cp.LastAccessedAt == nil || fresh.LastAccessedAt.After(*cp.LastAccessedAt)) {
			cp.LastAccessedAt = fresh.LastAccessedAt
		}
		if cp.Status == types.StatusCompleted && cp.CompletedAt == nil {
			t := now
			cp.CompletedAt = &t
		}
		cp.UpdatedAt = now
		if err := a.courses.Save(dbc, cp); err != nil {
			return err
		}
		computed.Progress = cp
		out = computed
		return nil
	})
	a.metrics.ObserveRecompute(time.Since(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockedProgress returns the row-locked CourseProgress, creating it when absent.
func (a *Aggregator) lockedProgress(dbc dbctx.Context, scope ctxutil.Scope, courseID uuid.UUID, now time.Time) (*types.CourseProgress, error) {
	if err := a.courses.CreateIfAbsent(dbc, newCourseProgress(scope, courseID, now)); err != nil {
		return nil, err
	}
	cp, err := a.courses.GetForUpdate(dbc, scope.ClientID, scope.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, types.NewError(types.CodeStorage, "progress.course", "course progress vanished after insert", nil)
	}
	return cp, nil
}

func newCourseProgress(scope ctxutil.Scope, courseID uuid.UUID, now time.Time) *types.CourseProgress {
	return &types.CourseProgress{
		ID:        uuid.New(),
		ClientID:  scope.ClientID,
		UserID:    scope.UserID,
		CourseID:  courseID,
		Status:    types.StatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EnsureCourseProgress creates the course row on first access and returns it.
func (a *Aggregator) EnsureCourseProgress(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) (*types.CourseProgress, error) {
	const op = "progress.course.ensure"
	if err := requireCourse(op, scope, courseID); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	cp, err := a.courses.Get(dbc, scope.ClientID, scope.UserID, courseID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if cp != nil {
		return cp, nil
	}
	err = a.writer.Write(ctx, op, func(dbc dbctx.Context) error {
		var err error
		cp, err = a.lockedProgress(dbc, scope, courseID, a.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}
