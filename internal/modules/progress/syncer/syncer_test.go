package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	"github.com/yungbote/coursetrack-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/rules"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/store"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
)

type fixture struct {
	db     *gorm.DB
	repos  repos.Repos
	store  *store.Store
	syncer *Syncer
	subs   *flakySubmissions
	course *testutil.Course
	scope  ctxutil.Scope
}

// flakySubmissions fails calls touching the listed occurrences.
type flakySubmissions struct {
	inner types.SubmissionService
	mu    sync.Mutex
	fail  map[uuid.UUID]error
	calls int
}

var errSubmissionsDown = errors.New("submission service unavailable")

func (f *flakySubmissions) failing(id uuid.UUID, on bool) {
	if on {
		f.failWith(id, errSubmissionsDown)
		return
	}
	f.failWith(id, nil)
}

func (f *flakySubmissions) failWith(id uuid.UUID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, id)
		return
	}
	f.fail[id] = err
}

func (f *flakySubmissions) broken(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fail[id]
}

func (f *flakySubmissions) LatestAttempt(ctx context.Context, clientID, userID uuid.UUID, o types.Occurrence) (*types.AssignmentSubmission, error) {
	if err := f.broken(o.ID); err != nil {
		return nil, err
	}
	return f.inner.LatestAttempt(ctx, clientID, userID, o)
}

func (f *flakySubmissions) MirrorAttempt(ctx context.Context, source *types.AssignmentSubmission, target types.StructureItem) (*types.AssignmentSubmission, error) {
	if err := f.broken(target.Occurrence.ID); err != nil {
		return nil, err
	}
	return f.inner.MirrorAttempt(ctx, source, target)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	subs := &flakySubmissions{inner: r.Submissions, fail: map[uuid.UUID]error{}}
	course := testutil.NewCourse()
	return &fixture{
		db:    db,
		repos: r,
		store: store.New(store.Deps{
			DB:      db,
			Log:     log,
			Records: r.ContentProgress,
			Rules:   rules.New(rules.DefaultThresholds()),
		}),
		syncer: New(Deps{
			DB:          db,
			Log:         log,
			Records:     r.ContentProgress,
			Pending:     r.PendingSyncs,
			Structure:   r.Structure,
			Submissions: subs,
		}),
		subs:   subs,
		course: course,
		scope:  ctxutil.Scope{ClientID: course.ClientID, UserID: uuid.New()},
	}
}

func (f *fixture) event(source types.StructureItem) types.SyncEvent {
	return types.SyncEvent{
		ClientID:         f.scope.ClientID,
		UserID:           f.scope.UserID,
		CourseID:         source.CourseID,
		ContentPackageID: source.ContentPackageID,
		ContentKind:      source.ContentKind,
		Source:           source.Occurrence,
	}
}

func (f *fixture) record(t *testing.T, item types.StructureItem) *types.ContentProgress {
	t.Helper()
	rec, err := f.repos.ContentProgress.Get(dbctx.New(context.Background()), f.scope.ClientID, f.scope.UserID, item.Occurrence)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	return rec
}

func TestSyncMirrorsDocumentToModuleOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindDocument, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindDocument, pkg, 1)
	testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 2, types.KindVideo, uuid.New(), 1)

	res, err := f.store.Update(ctx, f.scope, pre, map[string]any{"viewed_percentage": 85.0, "current_page": 17.0, "total_pages": 20.0, "time_spent_seconds": 300})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.BecameCompleted {
		t.Fatalf("source should complete at 85%%")
	}

	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out.Targets) != 1 || out.Targets[0].Target != mod.Occurrence || out.Targets[0].Action != ActionCreated {
		t.Fatalf("targets: %+v", out.Targets)
	}

	got := f.record(t, mod)
	if got == nil {
		t.Fatalf("target record missing")
	}
	if !got.IsCompleted || got.CompletedVia != types.CompletedBySync {
		t.Fatalf("target completion: completed=%v via=%s", got.IsCompleted, got.CompletedVia)
	}
	if got.SyncedFromID == nil || *got.SyncedFromID != res.Record.ID {
		t.Fatalf("synced_from_id: want=%s got=%v", res.Record.ID, got.SyncedFromID)
	}
	payload, err := got.DecodedPayload()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Number("viewed_percentage") != 85 {
		t.Fatalf("viewed_percentage: want=85 got=%v", payload["viewed_percentage"])
	}
	if got.TimeSpentSeconds != 0 {
		t.Fatalf("time spent copied: got=%d", got.TimeSpentSeconds)
	}
	if got.ModuleContentID == nil || got.PrerequisiteID != nil {
		t.Fatalf("occurrence columns: module=%v pre=%v", got.ModuleContentID, got.PrerequisiteID)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindVideo, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindVideo, pkg, 1)

	if _, err := f.store.Update(ctx, f.scope, pre, map[string]any{"completed": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := f.syncer.Sync(ctx, f.scope, f.event(pre)); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	first := f.record(t, mod)

	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(out.Targets) != 1 || out.Targets[0].Action != ActionUnchanged {
		t.Fatalf("second sync should change nothing: %+v", out.Targets)
	}
	second := f.record(t, mod)
	if second.ID != first.ID || !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("target rewritten: first=%v second=%v", first.UpdatedAt, second.UpdatedAt)
	}
	if second.CompletedAt == nil || first.CompletedAt == nil || !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("completed_at moved")
	}
}

func TestSyncSingleOccurrenceIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindImage, uuid.New(), 1)

	if _, err := f.store.Start(ctx, f.scope, pre); err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out.Targets) != 0 {
		t.Fatalf("targets: want=0 got=%d", len(out.Targets))
	}
}

func TestSyncWithoutSourceRecordIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindAudio, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAudio, pkg, 1)

	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out.Targets) != 0 || f.record(t, mod) != nil {
		t.Fatalf("nothing should be written: %+v", out.Targets)
	}
}

func TestSyncBackfillKeepsTargetValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindVideo, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindVideo, pkg, 1)

	if _, err := f.store.Update(ctx, f.scope, mod, map[string]any{"current_time": 42.0}); err != nil {
		t.Fatalf("target Update: %v", err)
	}
	if _, err := f.store.Update(ctx, f.scope, pre, map[string]any{"current_time": 600.0, "duration": 600.0, "completed": true}); err != nil {
		t.Fatalf("source Update: %v", err)
	}

	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out.Targets) != 1 || out.Targets[0].Action != ActionBackfilled || !out.Targets[0].CompletedThroughSync {
		t.Fatalf("targets: %+v", out.Targets)
	}
	got := f.record(t, mod)
	payload, _ := got.DecodedPayload()
	if payload.Number("current_time") != 42 {
		t.Fatalf("current_time overwritten: got=%v", payload["current_time"])
	}
	if payload.Number("duration") != 600 {
		t.Fatalf("duration not backfilled: got=%v", payload["duration"])
	}
	if !got.IsCompleted || got.CompletedVia != types.CompletedBySync || got.Percentage != 100 {
		t.Fatalf("completion: completed=%v via=%s pct=%v", got.IsCompleted, got.CompletedVia, got.Percentage)
	}
}

func TestSyncRejectsPostRequisiteSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := testutil.SeedPostRequisite(t, ctx, f.db, f.course, types.KindSurvey, uuid.New(), 1)

	_, err := f.syncer.Sync(ctx, f.scope, f.event(post))
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("want validation error got=%v", err)
	}
}

func TestSyncUnknownSourceIsNotFound(t *testing.T) {
	f := newFixture(t)
	item := types.StructureItem{
		ClientID:         f.course.ClientID,
		CourseID:         f.course.CourseID,
		Occurrence:       types.Occurrence{Kind: types.OccurrenceModule, ID: uuid.New()},
		ContentKind:      types.KindVideo,
		ContentPackageID: uuid.New(),
	}
	_, err := f.syncer.Sync(context.Background(), f.scope, f.event(item))
	if !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("want not_found got=%v", err)
	}
}

func TestSyncMirrorsAssignmentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAssignment, pkg, 1)

	src := testutil.SeedSubmission(t, ctx, f.db, pre, f.scope.UserID, 1, types.SubmissionSubmitted)
	if _, err := f.store.Update(ctx, f.scope, pre, map[string]any{"submission_status": types.SubmissionSubmitted, "attempt_number": 1.0}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out.Targets) != 1 || !out.Targets[0].MirroredSubmission {
		t.Fatalf("submission not mirrored: %+v", out.Targets)
	}
	mirrored, err := f.repos.Submissions.LatestAttempt(ctx, f.scope.ClientID, f.scope.UserID, mod.Occurrence)
	if err != nil || mirrored == nil {
		t.Fatalf("target attempt: got=%v err=%v", mirrored, err)
	}
	if mirrored.MirroredFromID == nil || *mirrored.MirroredFromID != src.ID {
		t.Fatalf("mirrored_from_id: want=%s got=%v", src.ID, mirrored.MirroredFromID)
	}

	out, err = f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if out.Targets[0].MirroredSubmission {
		t.Fatalf("submission mirrored twice")
	}
	attempts, err := f.repos.Submissions.ListAttempts(dbctx.New(ctx), f.scope.ClientID, f.scope.UserID, mod.Occurrence)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("target attempts: want=1 got=%d err=%v", len(attempts), err)
	}
}

func TestSyncPartialFailureIsRecordedAndRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAssignment, pkg, 1)
	post := testutil.SeedPostRequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)

	testutil.SeedSubmission(t, ctx, f.db, pre, f.scope.UserID, 1, types.SubmissionGraded)
	if _, err := f.store.Update(ctx, f.scope, pre, map[string]any{"submission_status": types.SubmissionGraded, "grade": 91.0}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	f.subs.failing(post.Occurrence.ID, true)

	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	var partial *types.PartialSyncError
	if !errors.As(err, &partial) {
		t.Fatalf("want PartialSyncError got=%v", err)
	}
	if types.CodeOf(err) != types.CodePartialSync {
		t.Fatalf("code: want=partial_sync got=%s", types.CodeOf(err))
	}
	if len(partial.Failures) != 1 || partial.Failures[0].Target != post.Occurrence {
		t.Fatalf("failures: %+v", partial.Failures)
	}
	if len(out.Targets) != 1 || out.Targets[0].Target != mod.Occurrence {
		t.Fatalf("healthy target should still sync: %+v", out.Targets)
	}
	if f.record(t, mod) == nil || f.record(t, post) != nil {
		t.Fatalf("unexpected target records")
	}

	dbc := dbctx.New(ctx)
	pending, err := f.repos.PendingSyncs.ExistsForUserCourse(dbc, f.scope.ClientID, f.scope.UserID, f.course.CourseID)
	if err != nil || !pending {
		t.Fatalf("pending row: exists=%v err=%v", pending, err)
	}

	f.subs.failing(post.Occurrence.ID, false)
	rows, err := f.repos.PendingSyncs.ClaimDue(dbc, time.Now().UTC().Add(time.Hour), 10, 10, time.Minute)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ClaimDue: rows=%d err=%v", len(rows), err)
	}
	if err := f.syncer.RetryPending(ctx, rows[0], "test"); err != nil {
		t.Fatalf("RetryPending: %v", err)
	}
	if got := f.record(t, post); got == nil || !got.IsCompleted {
		t.Fatalf("post-requisite not synced on retry: %+v", got)
	}
	pending, err = f.repos.PendingSyncs.ExistsForUserCourse(dbc, f.scope.ClientID, f.scope.UserID, f.course.CourseID)
	if err != nil || pending {
		t.Fatalf("pending row should be cleared: exists=%v err=%v", pending, err)
	}
}

func TestRetryPendingReschedulesOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAssignment, pkg, 1)
	testutil.SeedSubmission(t, ctx, f.db, pre, f.scope.UserID, 1, types.SubmissionSubmitted)
	if _, err := f.store.Update(ctx, f.scope, pre, map[string]any{"submission_status": types.SubmissionSubmitted}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	f.subs.failing(mod.Occurrence.ID, true)
	if _, err := f.syncer.Sync(ctx, f.scope, f.event(pre)); err == nil {
		t.Fatalf("expected partial failure")
	}

	dbc := dbctx.New(ctx)
	rows, err := f.repos.PendingSyncs.ClaimDue(dbc, time.Now().UTC().Add(time.Hour), 10, 10, time.Minute)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ClaimDue: rows=%d err=%v", len(rows), err)
	}
	before := time.Now().UTC()
	if err := f.syncer.RetryPending(ctx, rows[0], "test"); err == nil {
		t.Fatalf("retry should still fail")
	}
	row, err := f.repos.PendingSyncs.Get(dbc, rows[0].ID)
	if err != nil || row == nil {
		t.Fatalf("row removed: %v", err)
	}
	if row.LockedAt != nil {
		t.Fatalf("lock not released")
	}
	if !row.NextAttemptAt.After(before) {
		t.Fatalf("next attempt not pushed out: %v", row.NextAttemptAt)
	}
	if row.LastError == "" {
		t.Fatalf("last error not recorded")
	}
}

func TestRetryPendingKeepsRowWhenOneTargetIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAssignment, pkg, 1)
	post := testutil.SeedPostRequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)

	testutil.SeedSubmission(t, ctx, f.db, pre, f.scope.UserID, 1, types.SubmissionSubmitted)
	if _, err := f.store.Update(ctx, f.scope, pre, map[string]any{"submission_status": types.SubmissionSubmitted}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	f.subs.failing(mod.Occurrence.ID, true)
	f.subs.failWith(post.Occurrence.ID, types.NotFound("submissions.latest", "assignment archived"))

	_, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if got := types.CodeOf(err); got != types.CodePartialSync {
		t.Fatalf("code: want=partial_sync got=%q (%v)", got, err)
	}
	if !types.IsCode(err, types.CodePartialSync) || types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("partial sync must not report a target's code")
	}

	dbc := dbctx.New(ctx)
	rows, err := f.repos.PendingSyncs.ClaimDue(dbc, time.Now().UTC().Add(time.Hour), 10, 10, time.Minute)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ClaimDue: rows=%d err=%v", len(rows), err)
	}
	if err := f.syncer.RetryPending(ctx, rows[0], "test"); err == nil {
		t.Fatalf("retry should still fail")
	}
	row, err := f.repos.PendingSyncs.Get(dbc, rows[0].ID)
	if err != nil || row == nil {
		t.Fatalf("pending row dropped while targets are unsynced: row=%v err=%v", row, err)
	}

	f.subs.failing(mod.Occurrence.ID, false)
	f.subs.failWith(post.Occurrence.ID, nil)
	rows, err = f.repos.PendingSyncs.ClaimDue(dbc, time.Now().UTC().Add(time.Hour), 10, 10, time.Minute)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ClaimDue after recovery: rows=%d err=%v", len(rows), err)
	}
	if err := f.syncer.RetryPending(ctx, rows[0], "test"); err != nil {
		t.Fatalf("RetryPending: %v", err)
	}
	if f.record(t, mod) == nil || f.record(t, post) == nil {
		t.Fatalf("targets not synced after recovery")
	}
}

func TestSyncSkipsDraftSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := uuid.New()
	pre := testutil.SeedPrerequisite(t, ctx, f.db, f.course, types.KindAssignment, pkg, 1)
	mod := testutil.SeedModuleContent(t, ctx, f.db, f.course, uuid.New(), 1, types.KindAssignment, pkg, 1)

	testutil.SeedSubmission(t, ctx, f.db, pre, f.scope.UserID, 1, types.SubmissionDraft)
	if _, err := f.store.Update(ctx, f.scope, pre, map[string]any{"submission_status": types.SubmissionDraft}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out, err := f.syncer.Sync(ctx, f.scope, f.event(pre))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out.Targets) != 1 || out.Targets[0].MirroredSubmission {
		t.Fatalf("draft should not be mirrored: %+v", out.Targets)
	}
	attempt, err := f.repos.Submissions.LatestAttempt(ctx, f.scope.ClientID, f.scope.UserID, mod.Occurrence)
	if err != nil || attempt != nil {
		t.Fatalf("target attempt: want none got=%v err=%v", attempt, err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	p := RetryPolicy{Base: time.Second, Max: 10 * time.Second}
	cases := map[int]time.Duration{0: time.Second, 1: time.Second, 2: 2 * time.Second, 4: 8 * time.Second, 5: 10 * time.Second, 80: 10 * time.Second}
	for attempt, want := range cases {
		if got := p.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d): want=%v got=%v", attempt, want, got)
		}
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakySubmissions{inner: nil, fail: map[uuid.UUID]error{}}
	occ := types.Occurrence{Kind: types.OccurrenceModule, ID: uuid.New()}
	inner.failing(occ.ID, true)
	cfg := BreakerConfig{Name: "test", FailureThreshold: 2, OpenTimeout: time.Minute, HalfOpenRequests: 1}
	b := NewBreakerSubmissions(inner, cfg, nil, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := b.LatestAttempt(ctx, uuid.New(), uuid.New(), occ); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	if _, err := b.LatestAttempt(ctx, uuid.New(), uuid.New(), occ); err == nil {
		t.Fatalf("open breaker should fail fast")
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls: want=2 got=%d", inner.calls)
	}
}
