package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	"github.com/yungbote/coursetrack-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/aggregate"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/report"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/rules"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/store"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/syncer"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
)

type downSubmissions struct{}

func (downSubmissions) LatestAttempt(context.Context, uuid.UUID, uuid.UUID, types.Occurrence) (*types.AssignmentSubmission, error) {
	return nil, errors.New("submission service unavailable")
}

func (downSubmissions) MirrorAttempt(context.Context, *types.AssignmentSubmission, types.StructureItem) (*types.AssignmentSubmission, error) {
	return nil, errors.New("submission service unavailable")
}

type fixture struct {
	db     *gorm.DB
	uc     Usecases
	course *testutil.Course
	scope  ctxutil.Scope
}

func newFixture(t *testing.T, subs types.SubmissionService) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	if subs == nil {
		subs = r.Submissions
	}
	engine := rules.New(rules.DefaultThresholds())
	agg := aggregate.New(aggregate.Deps{DB: db, Log: log, Records: r.ContentProgress, Courses: r.CourseProgress, Pending: r.PendingSyncs, Structure: r.Structure, Rules: engine})
	course := testutil.NewCourse()
	return &fixture{
		db: db,
		uc: New(UsecasesDeps{
			Log:       log,
			Structure: r.Structure,
			Store:     store.New(store.Deps{DB: db, Log: log, Records: r.ContentProgress, Rules: engine}),
			Syncer: syncer.New(syncer.Deps{
				DB:          db,
				Log:         log,
				Records:     r.ContentProgress,
				Pending:     r.PendingSyncs,
				Structure:   r.Structure,
				Submissions: subs,
			}),
			Aggregator: agg,
			Rollup:     report.New(report.Deps{Log: log, Population: r.Enrollments, Aggregator: agg, Records: r.ContentProgress, Courses: r.CourseProgress}),
		}),
		course: course,
		scope:  ctxutil.Scope{ClientID: course.ClientID, UserID: uuid.New()},
	}
}

func ref(item types.StructureItem) ItemRef {
	return ItemRef{CourseID: item.CourseID, Occurrence: item.Occurrence}
}

func TestRecordProgressDocumentViaPrerequisite(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindDocument, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindDocument, pkg, 1)
	testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 2, types.KindVideo, uuid.New(), 1)

	out, err := f.uc.RecordProgress(ctx, f.scope, ref(pre), map[string]any{"viewed_percentage": 85.0})
	if err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	if out.Sync == nil || len(out.Sync.Targets) != 1 || out.Sync.Targets[0].Target != mod.Occurrence {
		t.Fatalf("sync outcome: %+v", out.Sync)
	}
	cp := out.Course.Progress
	if cp.CompletedItems != 2 || cp.TotalItems != 3 {
		t.Fatalf("each occurrence counts once: completed=%d total=%d", cp.CompletedItems, cp.TotalItems)
	}
	if !out.Course.Authoritative {
		t.Fatalf("expected authoritative course result")
	}

	view, err := f.uc.GetContentProgress(ctx, f.scope, ref(mod))
	if err != nil {
		t.Fatalf("GetContentProgress: %v", err)
	}
	payload, _ := view.Record.DecodedPayload()
	if view.Status != types.StatusCompleted || payload.Number("viewed_percentage") != 85 {
		t.Fatalf("mirrored record: status=%s payload=%v", view.Status, payload)
	}
}

func TestRecordProgressFailedAssessment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	quiz := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAssessment, uuid.New(), 1)

	out, err := f.uc.RecordProgress(ctx, f.scope, ref(quiz), map[string]any{"attempts": 3.0, "max_attempts": 3.0, "passed": false, "score": 40.0})
	if err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	if out.Record.IsCompleted || out.Record.Percentage != 50 {
		t.Fatalf("failed assessment: completed=%v pct=%v", out.Record.IsCompleted, out.Record.Percentage)
	}
	if out.Sync != nil {
		t.Fatalf("unshared occurrence should not sync")
	}
	if out.Course.Progress.Status != types.StatusInProgress || out.Course.Progress.CompletionPercentage != 0 {
		t.Fatalf("course: %+v", out.Course.Progress)
	}
}

func TestRecordProgressPartialSyncStillRecomputes(t *testing.T) {
	f := newFixture(t, downSubmissions{})
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)
	testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAssignment, pkg, 1)

	out, err := f.uc.RecordProgress(ctx, f.scope, ref(pre), map[string]any{"submission_status": types.SubmissionSubmitted})
	if !types.IsCode(err, types.CodePartialSync) {
		t.Fatalf("want partial_sync got=%v", err)
	}
	if out == nil || out.Course == nil {
		t.Fatalf("course should still be recomputed")
	}
	if out.Course.Authoritative {
		t.Fatalf("course must be flagged non-authoritative while the sync is pending")
	}
	if out.Course.Progress.CompletedItems != 1 {
		t.Fatalf("completed items: want=1 got=%d", out.Course.Progress.CompletedItems)
	}
}

func TestStartContentRejectsUnknownOccurrence(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.uc.StartContent(context.Background(), f.scope, ItemRef{
		CourseID:   f.course.CourseID,
		Occurrence: types.Occurrence{Kind: types.OccurrenceModule, ID: uuid.New()},
	})
	if !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("want not_found got=%v", err)
	}
	_, err = f.uc.StartContent(context.Background(), f.scope, ItemRef{})
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("want validation got=%v", err)
	}
}

func TestStartContentCreatesCourseRow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	vid := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindVideo, uuid.New(), 1)

	out, err := f.uc.StartContent(ctx, f.scope, ref(vid))
	if err != nil {
		t.Fatalf("StartContent: %v", err)
	}
	if out.Record.Status != types.StatusInProgress {
		t.Fatalf("record status: %s", out.Record.Status)
	}
	if out.Course.Progress.Status != types.StatusInProgress || out.Course.Progress.CompletionPercentage != 0 {
		t.Fatalf("course: %+v", out.Course.Progress)
	}
	view, err := f.uc.GetContentProgress(ctx, f.scope, ref(vid))
	if err != nil || view.Record == nil || view.Record.ID != out.Record.ID {
		t.Fatalf("GetContentProgress: view=%+v err=%v", view, err)
	}
}

func TestSyncSharedContentRejectsPostRequisite(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	post := testutil.SeedPostRequisite(t, ctx, f.db, f.course, types.KindFeedback, uuid.New(), 1)
	if _, err := f.uc.SyncSharedContent(ctx, f.scope, ref(post)); !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("want validation got=%v", err)
	}
}
