package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	"github.com/yungbote/coursetrack-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/rules"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
)

type fixture struct {
	store  *Store
	course *testutil.Course
	scope  ctxutil.Scope
	clock  *stepClock
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	clock := &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	course := testutil.NewCourse()
	return &fixture{
		store: New(Deps{
			DB:      db,
			Log:     log,
			Records: r.ContentProgress,
			Rules:   rules.New(rules.DefaultThresholds()),
			Now:     clock.Now,
		}),
		course: course,
		scope:  ctxutil.Scope{ClientID: course.ClientID, UserID: uuid.New()},
		clock:  clock,
	}
}

func (f *fixture) item(kind types.ContentKind, occ types.OccurrenceKind) types.StructureItem {
	return types.StructureItem{
		ClientID:         f.course.ClientID,
		CourseID:         f.course.CourseID,
		Occurrence:       types.Occurrence{Kind: occ, ID: uuid.New()},
		ContentKind:      kind,
		ContentPackageID: uuid.New(),
	}
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(types.KindVideo, types.OccurrenceModule)

	first, err := f.store.Start(ctx, f.scope, item)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.Status != types.StatusInProgress {
		t.Fatalf("status after start: want=in_progress got=%s", first.Status)
	}
	if _, err := f.store.Update(ctx, f.scope, item, map[string]any{"watched_percentage": 40.0}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	second, err := f.store.Start(ctx, f.scope, item)
	if err != nil {
		t.Fatalf("Start again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("Start created a second record")
	}

	got, err := f.store.Get(ctx, f.scope, item.Occurrence)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.Percentage != 40 {
		t.Fatalf("Start cleared progress: percentage=%v", got.Percentage)
	}
	if !got.LastAccessedAt.After(got.StartedAt) {
		t.Fatalf("last_accessed_at not refreshed: started=%v last=%v", got.StartedAt, got.LastAccessedAt)
	}
}

func TestStartImageCompletesOnView(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Start(context.Background(), f.scope, f.item(types.KindImage, types.OccurrencePrerequisite))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !rec.IsCompleted || rec.Percentage != 100 || rec.CompletedAt == nil {
		t.Fatalf("image start: %+v", rec)
	}
	if rec.CompletedVia != types.CompletedBySelf {
		t.Fatalf("completed_via: want=self got=%s", rec.CompletedVia)
	}
}

func TestUpdateCompletionIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(types.KindDocument, types.OccurrencePrerequisite)

	res, err := f.store.Update(ctx, f.scope, item, map[string]any{"viewed_percentage": 85.0})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.Created || !res.BecameCompleted {
		t.Fatalf("first update: created=%v became=%v", res.Created, res.BecameCompleted)
	}
	completedAt := *res.Record.CompletedAt

	res, err = f.store.Update(ctx, f.scope, item, map[string]any{"viewed_percentage": 10.0})
	if err != nil {
		t.Fatalf("Update regress: %v", err)
	}
	if res.BecameCompleted {
		t.Fatalf("second update must not re-complete")
	}
	rec := res.Record
	if !rec.IsCompleted || rec.Status != types.StatusCompleted {
		t.Fatalf("completion reverted: %+v", rec)
	}
	if rec.Percentage != 85 {
		t.Fatalf("percentage: want=85 got=%v", rec.Percentage)
	}
	if !rec.CompletedAt.Equal(completedAt) {
		t.Fatalf("completed_at moved: want=%v got=%v", completedAt, rec.CompletedAt)
	}
	payload, _ := rec.DecodedPayload()
	if payload.Number("viewed_percentage") != 10 {
		t.Fatalf("non-completion fields are last-writer-wins: got=%v", payload["viewed_percentage"])
	}
}

func TestUpdateAccumulatesTimeSpent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(types.KindAudio, types.OccurrenceModule)
	for i := 0; i < 3; i++ {
		if _, err := f.store.Update(ctx, f.scope, item, map[string]any{"time_spent_seconds": 20}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	got, _ := f.store.Get(ctx, f.scope, item.Occurrence)
	if got.TimeSpentSeconds != 60 {
		t.Fatalf("time spent: want=60 got=%d", got.TimeSpentSeconds)
	}
}

func TestUpdateRejectsInvalidFieldsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(types.KindSCORM, types.OccurrenceModule)

	_, err := f.store.Update(ctx, f.scope, item, map[string]any{"lesson_status": 3.0, "watched_percentage": 10.0})
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("expected validation error, got=%v", err)
	}
	if n := len(types.FieldsOf(err)); n != 2 {
		t.Fatalf("field errors: want=2 got=%d", n)
	}
	got, err := f.store.Get(ctx, f.scope, item.Occurrence)
	if err != nil || got != nil {
		t.Fatalf("rejected update wrote a record: %v err=%v", got, err)
	}
}

func TestFailedAssessmentIsHalfDone(t *testing.T) {
	f := newFixture(t)
	item := f.item(types.KindAssessment, types.OccurrencePostRequisite)
	res, err := f.store.Update(context.Background(), f.scope, item, map[string]any{"attempts": 3, "max_attempts": 3, "passed": false})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Record.IsCompleted || res.Record.Percentage != 50 {
		t.Fatalf("exhausted assessment: %+v", res.Record)
	}
}

func TestTenantMismatchIsForbidden(t *testing.T) {
	f := newFixture(t)
	item := f.item(types.KindVideo, types.OccurrenceModule)
	item.ClientID = uuid.New()
	if _, err := f.store.Start(context.Background(), f.scope, item); !types.IsCode(err, types.CodeForbidden) {
		t.Fatalf("expected forbidden, got=%v", err)
	}
	if _, err := f.store.Get(context.Background(), ctxutil.Scope{}, item.Occurrence); !types.IsCode(err, types.CodeForbidden) {
		t.Fatalf("expected forbidden for empty scope, got=%v", err)
	}
}

func TestGetMissingIsNil(t *testing.T) {
	f := newFixture(t)
	got, err := f.store.Get(context.Background(), f.scope, types.Occurrence{Kind: types.OccurrenceModule, ID: uuid.New()})
	if err != nil || got != nil {
		t.Fatalf("Get: want nil,nil got=%v,%v", got, err)
	}
}

func TestApplySignalKeepsSyncProvenance(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &types.ContentProgress{IsCompleted: true, Status: types.StatusCompleted, CompletedVia: types.CompletedBySync, CompletedAt: &at, Percentage: 90}
	became := applySignal(rec, rules.Signal{Status: types.StatusInProgress, Percentage: 95}, at.Add(time.Hour))
	if became {
		t.Fatalf("already completed record reported a transition")
	}
	if rec.CompletedVia != types.CompletedBySync || !rec.CompletedAt.Equal(at) || rec.Percentage != 95 {
		t.Fatalf("record: %+v", rec)
	}
}
