package progress

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/aggregate"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/report"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/store"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/syncer"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Structure  types.StructureReader
	Store      *store.Store
	Syncer     *syncer.Syncer
	Aggregator *aggregate.Aggregator
	Rollup     *report.Rollup
}

// Usecases orchestrates a progress event: store, then synchronise shared content, then
// recompute the course.
type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

// ItemRef addresses one occurrence of a course.
type ItemRef struct {
	CourseID   uuid.UUID        `json:"course_id"`
	Occurrence types.Occurrence `json:"occurrence"`
}

// ProgressOutput is the result of a start or update. Sync is nil when the occurrence
// does not share its content package.
type ProgressOutput struct {
	Record *types.ContentProgress  `json:"record"`
	Update *store.Result           `json:"update,omitempty"`
	Sync   *syncer.Outcome         `json:"sync,omitempty"`
	Course *types.CourseCompletion `json:"course,omitempty"`
}

func spanAttrs(scope ctxutil.Scope, ref ItemRef) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("client_id", scope.ClientID.String()),
		attribute.String("course_id", ref.CourseID.String()),
		attribute.String("occurrence", ref.Occurrence.String()),
	}
}

func (u Usecases) resolve(ctx context.Context, op string, scope ctxutil.Scope, ref ItemRef) ([]types.StructureItem, types.StructureItem, error) {
	if err := types.RequireScope(op, scope); err != nil {
		return nil, types.StructureItem{}, err
	}
	var bad []types.FieldError
	if ref.CourseID == uuid.Nil {
		bad = append(bad, types.FieldError{Field: "course_id", Reason: "required"})
	}
	if err := ref.Occurrence.Validate(); err != nil {
		bad = append(bad, types.FieldError{Field: "occurrence", Reason: err.Error()})
	}
	if len(bad) > 0 {
		return nil, types.StructureItem{}, types.ValidationError(op, bad)
	}
	items, err := u.deps.Aggregator.Items(ctx, scope, ref.CourseID)
	if err != nil {
		return nil, types.StructureItem{}, err
	}
	item, ok := types.FindItem(items, ref.Occurrence)
	if !ok {
		return nil, types.StructureItem{}, types.NotFound(op, "occurrence is not part of the course")
	}
	return items, item, nil
}

// StartContent opens an occurrence for the scope user. Existing progress is kept.
func (u Usecases) StartContent(ctx context.Context, scope ctxutil.Scope, ref ItemRef) (out *ProgressOutput, err error) {
	const op = "progress.StartContent"
	ctx, span := observability.StartSpan(ctx, op, spanAttrs(scope, ref)...)
	defer func() { observability.EndSpan(span, err) }()

	items, item, err := u.resolve(ctx, op, scope, ref)
	if err != nil {
		return nil, err
	}
	if _, err := u.deps.Aggregator.EnsureCourseProgress(ctx, scope, ref.CourseID); err != nil {
		return nil, err
	}
	rec, err := u.deps.Store.Start(ctx, scope, item)
	if err != nil {
		return nil, err
	}
	out = &ProgressOutput{Record: rec}
	return out, u.propagate(ctx, scope, items, item, out)
}

// RecordProgress applies a kind-specific update, mirrors it onto sibling occurrences and
// recomputes the course. A partial synchronisation still recomputes and is returned as
// a *types.PartialSyncError alongside the output.
func (u Usecases) RecordProgress(ctx context.Context, scope ctxutil.Scope, ref ItemRef, fields map[string]any) (out *ProgressOutput, err error) {
	const op = "progress.RecordProgress"
	ctx, span := observability.StartSpan(ctx, op, spanAttrs(scope, ref)...)
	defer func() { observability.EndSpan(span, err) }()

	items, item, err := u.resolve(ctx, op, scope, ref)
	if err != nil {
		return nil, err
	}
	res, err := u.deps.Store.Update(ctx, scope, item, fields)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("status", string(res.Record.Status)), attribute.Bool("became_completed", res.BecameCompleted))
	out = &ProgressOutput{Record: res.Record, Update: res}
	return out, u.propagate(ctx, scope, items, item, out)
}

// propagate runs synchronisation (when the occurrence shares its package) and then the
// course recompute, so the roll-up sees mirrored records.
func (u Usecases) propagate(ctx context.Context, scope ctxutil.Scope, items []types.StructureItem, item types.StructureItem, out *ProgressOutput) error {
	var syncErr error
	if syncer.CanSource(item.Occurrence.Kind) && len(types.SiblingOccurrences(items, item)) > 0 {
		out.Sync, syncErr = u.deps.Syncer.Sync(ctx, scope, eventFor(scope, item))
		var partial *types.PartialSyncError
		if syncErr != nil && !errors.As(syncErr, &partial) {
			return syncErr
		}
	}
	course, err := u.deps.Aggregator.Recompute(ctx, scope, item.CourseID)
	if err != nil {
		return err
	}
	out.Course = course
	return syncErr
}

func eventFor(scope ctxutil.Scope, item types.StructureItem) types.SyncEvent {
	return types.SyncEvent{
		ClientID:         scope.ClientID,
		UserID:           scope.UserID,
		CourseID:         item.CourseID,
		ContentPackageID: item.ContentPackageID,
		ContentKind:      item.ContentKind,
		Source:           item.Occurrence,
	}
}

// ContentView is the progress of one occurrence. Record is nil when never started.
type ContentView struct {
	Item   types.StructureItem    `json:"item"`
	Status types.Status           `json:"status"`
	Record *types.ContentProgress `json:"record"`
}

func (u Usecases) GetContentProgress(ctx context.Context, scope ctxutil.Scope, ref ItemRef) (out *ContentView, err error) {
	const op = "progress.GetContentProgress"
	ctx, span := observability.StartSpan(ctx, op, spanAttrs(scope, ref)...)
	defer func() { observability.EndSpan(span, err) }()

	_, item, err := u.resolve(ctx, op, scope, ref)
	if err != nil {
		return nil, err
	}
	rec, err := u.deps.Store.Get(ctx, scope, item.Occurrence)
	if err != nil {
		return nil, err
	}
	out = &ContentView{Item: item, Status: types.StatusNotStarted, Record: rec}
	if rec != nil {
		out.Status = rec.Status
	}
	return out, nil
}

// SyncSharedContent re-runs synchronisation from an occurrence and recomputes the course.
func (u Usecases) SyncSharedContent(ctx context.Context, scope ctxutil.Scope, ref ItemRef) (out *ProgressOutput, err error) {
	const op = "progress.SyncSharedContent"
	ctx, span := observability.StartSpan(ctx, op, spanAttrs(scope, ref)...)
	defer func() { observability.EndSpan(span, err) }()

	items, item, err := u.resolve(ctx, op, scope, ref)
	if err != nil {
		return nil, err
	}
	if !syncer.CanSource(item.Occurrence.Kind) {
		return nil, types.ValidationError(op, []types.FieldError{{Field: "occurrence_kind", Reason: "must be a prerequisite or module occurrence"}})
	}
	rec, err := u.deps.Store.Get(ctx, scope, item.Occurrence)
	if err != nil {
		return nil, err
	}
	out = &ProgressOutput{Record: rec}
	return out, u.propagate(ctx, scope, items, item, out)
}

func (u Usecases) RecomputeCourseProgress(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) (out *types.CourseCompletion, err error) {
	ctx, span := observability.StartSpan(ctx, "progress.RecomputeCourseProgress", attribute.String("course_id", courseID.String()))
	defer func() { observability.EndSpan(span, err) }()
	return u.deps.Aggregator.Recompute(ctx, scope, courseID)
}

func (u Usecases) GetResumePosition(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) (out *types.ResumeData, err error) {
	ctx, span := observability.StartSpan(ctx, "progress.GetResumePosition", attribute.String("course_id", courseID.String()))
	defer func() { observability.EndSpan(span, err) }()
	return u.deps.Aggregator.GetResumePosition(ctx, scope, courseID)
}

func (u Usecases) SetResumePosition(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, in aggregate.ResumeInput) (out *types.CourseProgress, err error) {
	ctx, span := observability.StartSpan(ctx, "progress.SetResumePosition", attribute.String("course_id", courseID.String()))
	defer func() { observability.EndSpan(span, err) }()
	return u.deps.Aggregator.SetResumePosition(ctx, scope, courseID, in)
}

func (u Usecases) CourseCompletionSummary(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, filters types.SummaryFilters) (out *types.CourseSummary, err error) {
	ctx, span := observability.StartSpan(ctx, "progress.CourseCompletionSummary", attribute.String("course_id", courseID.String()))
	defer func() { observability.EndSpan(span, err) }()
	return u.deps.Rollup.CourseCompletionSummary(ctx, scope, courseID, filters)
}

func (u Usecases) CoursesCompletionSummary(ctx context.Context, scope ctxutil.Scope, courseIDs []uuid.UUID, filters types.SummaryFilters) (out []*types.CourseSummary, err error) {
	ctx, span := observability.StartSpan(ctx, "progress.CoursesCompletionSummary", attribute.Int("courses", len(courseIDs)))
	defer func() { observability.EndSpan(span, err) }()
	return u.deps.Rollup.CoursesCompletionSummary(ctx, scope, courseIDs, filters)
}
