package progress

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/coursetrack-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
)

func TestContentProgressRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewContentProgressRepo(db, testutil.Logger(t))

	course := testutil.NewCourse()
	item := testutil.SeedPrerequisite(t, ctx, tx, course, types.KindDocument, uuid.New(), 1)
	userID := uuid.New()

	got, err := repo.Get(dbc, course.ClientID, userID, item.Occurrence)
	if err != nil || got != nil {
		t.Fatalf("Get missing: want nil,nil got %v,%v", got, err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := &types.ContentProgress{
		UserID:         userID,
		Status:         types.StatusInProgress,
		Percentage:     40,
		Payload:        datatypes.JSON([]byte(`{"viewed_percentage":40}`)),
		StartedAt:      now,
		LastAccessedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec.Place(item)
	if err := repo.Create(dbc, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.PrerequisiteID == nil || *rec.PrerequisiteID != item.Occurrence.ID || rec.ModuleContentID != nil {
		t.Fatalf("Place: occurrence columns not exclusive: %+v", rec)
	}

	got, err = repo.GetForUpdate(dbc, course.ClientID, userID, item.Occurrence)
	if err != nil || got == nil {
		t.Fatalf("GetForUpdate: got %v err=%v", got, err)
	}
	got.Percentage = 90
	got.IsCompleted = true
	got.Status = types.StatusCompleted
	if err := repo.Save(dbc, got); err != nil {
		t.Fatalf("Save: %v", err)
	}

	later := now.Add(time.Minute)
	if err := repo.Touch(dbc, got.ID, later); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	rows, err := repo.ListByUserCourse(dbc, course.ClientID, userID, course.CourseID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListByUserCourse: err=%v len=%d", err, len(rows))
	}
	if !rows[0].IsCompleted || rows[0].Percentage != 90 {
		t.Fatalf("ListByUserCourse: saved state lost: %+v", rows[0])
	}
	if !rows[0].LastAccessedAt.Equal(later) {
		t.Fatalf("Touch: last_accessed_at want=%v got=%v", later, rows[0].LastAccessedAt)
	}

	other, err := repo.Get(dbc, uuid.New(), userID, item.Occurrence)
	if err != nil || other != nil {
		t.Fatalf("Get other tenant: want nil got %v err=%v", other, err)
	}

	byUsers, err := repo.ListByUsersCourse(dbc, course.ClientID, course.CourseID, []uuid.UUID{userID, uuid.New()})
	if err != nil || len(byUsers) != 1 {
		t.Fatalf("ListByUsersCourse: err=%v len=%d", err, len(byUsers))
	}
}

func TestCourseProgressRepoCreateIfAbsent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewCourseProgressRepo(db, testutil.Logger(t))

	clientID, userID, courseID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()
	first := &types.CourseProgress{ClientID: clientID, UserID: userID, CourseID: courseID, Status: types.StatusInProgress, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateIfAbsent(dbc, first); err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	second := &types.CourseProgress{ClientID: clientID, UserID: userID, CourseID: courseID, Status: types.StatusNotStarted, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateIfAbsent(dbc, second); err != nil {
		t.Fatalf("CreateIfAbsent duplicate: %v", err)
	}

	got, err := repo.Get(dbc, clientID, userID, courseID)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.ID != first.ID || got.Status != types.StatusInProgress {
		t.Fatalf("Get: first row should win: %+v", got)
	}

	got.CompletionPercentage = 50
	if err := repo.Save(dbc, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rows, err := repo.ListByCourse(dbc, clientID, courseID, nil)
	if err != nil || len(rows) != 1 || rows[0].CompletionPercentage != 50 {
		t.Fatalf("ListByCourse: err=%v rows=%v", err, rows)
	}
	rows, err = repo.ListByCourse(dbc, clientID, courseID, []uuid.UUID{})
	if err != nil || len(rows) != 0 {
		t.Fatalf("ListByCourse empty filter: err=%v len=%d", err, len(rows))
	}
}

func TestStructureRepoOrdersPlacements(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewStructureRepo(db, testutil.Logger(t))

	course := testutil.NewCourse()
	moduleA, moduleB := uuid.New(), uuid.New()
	post := testutil.SeedPostRequisite(t, ctx, db, course, types.KindSurvey, uuid.New(), 1)
	b1 := testutil.SeedModuleContent(t, ctx, db, course, moduleB, 2, types.KindVideo, uuid.New(), 1)
	a2 := testutil.SeedModuleContent(t, ctx, db, course, moduleA, 1, types.KindAudio, uuid.New(), 2)
	a1 := testutil.SeedModuleContent(t, ctx, db, course, moduleA, 1, types.KindImage, uuid.New(), 1)
	pre := testutil.SeedPrerequisite(t, ctx, db, course, types.KindDocument, uuid.New(), 1)

	items, err := repo.ListOccurrences(ctx, course.ClientID, course.CourseID)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	want := []types.Occurrence{pre.Occurrence, a1.Occurrence, a2.Occurrence, b1.Occurrence, post.Occurrence}
	if len(items) != len(want) {
		t.Fatalf("ListOccurrences: want=%d got=%d", len(want), len(items))
	}
	for i := range want {
		if items[i].Occurrence != want[i] {
			t.Fatalf("item %d: want=%v got=%v", i, want[i], items[i].Occurrence)
		}
	}
	if items[1].ModuleID == nil || *items[1].ModuleID != moduleA {
		t.Fatalf("module id not carried: %+v", items[1])
	}

	others, err := repo.ListOccurrences(ctx, uuid.New(), course.CourseID)
	if err != nil || len(others) != 0 {
		t.Fatalf("other tenant: err=%v len=%d", err, len(others))
	}
}

func TestSubmissionRepoMirrorAttempt(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewSubmissionRepo(db, testutil.Logger(t))

	course := testutil.NewCourse()
	pkg := uuid.New()
	source := testutil.SeedPrerequisite(t, ctx, db, course, types.KindAssignment, pkg, 1)
	target := testutil.SeedModuleContent(t, ctx, db, course, uuid.New(), 1, types.KindAssignment, pkg, 1)
	userID := uuid.New()

	testutil.SeedSubmission(t, ctx, db, source, userID, 1, types.SubmissionDraft)
	latest := testutil.SeedSubmission(t, ctx, db, source, userID, 2, types.SubmissionSubmitted)
	testutil.SeedSubmission(t, ctx, db, target, userID, 1, types.SubmissionDraft)

	got, err := repo.LatestAttempt(ctx, course.ClientID, userID, source.Occurrence)
	if err != nil || got == nil || got.ID != latest.ID {
		t.Fatalf("LatestAttempt: got=%v err=%v", got, err)
	}

	mirrored, err := repo.MirrorAttempt(ctx, got, target)
	if err != nil {
		t.Fatalf("MirrorAttempt: %v", err)
	}
	if mirrored.AttemptNumber != 2 {
		t.Fatalf("attempt number: want=2 got=%d", mirrored.AttemptNumber)
	}
	if mirrored.MirroredFromID == nil || *mirrored.MirroredFromID != latest.ID {
		t.Fatalf("mirrored_from_id: want=%s got=%v", latest.ID, mirrored.MirroredFromID)
	}
	if mirrored.FilePath != latest.FilePath || mirrored.Status != types.SubmissionSubmitted {
		t.Fatalf("artifacts not copied: %+v", mirrored)
	}

	none, err := repo.LatestAttempt(ctx, course.ClientID, uuid.New(), target.Occurrence)
	if err != nil || none != nil {
		t.Fatalf("LatestAttempt unknown user: got=%v err=%v", none, err)
	}
}

func TestEnrollmentRepoListMembers(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewEnrollmentRepo(db, testutil.Logger(t))

	course := testutil.NewCourse()
	u1, u2 := uuid.New(), uuid.New()
	testutil.SeedEnrollment(t, ctx, db, course, u1, map[string]string{"department": "sales"})
	testutil.SeedEnrollment(t, ctx, db, course, u2, nil)
	testutil.SeedEnrollment(t, ctx, db, &testutil.Course{ClientID: uuid.New(), CourseID: course.CourseID}, uuid.New(), nil)

	members, err := repo.ListMembers(ctx, course.ClientID, course.CourseID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("ListMembers: want=2 got=%d", len(members))
	}
	byUser := map[uuid.UUID]types.Member{}
	for _, m := range members {
		byUser[m.UserID] = m
	}
	if byUser[u1].Dimensions["department"] != "sales" {
		t.Fatalf("dimensions: got=%v", byUser[u1].Dimensions)
	}
}

func TestPendingSyncRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.New(context.Background())
	repo := NewPendingSyncRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	row := &types.PendingSync{
		ClientID:         uuid.New(),
		UserID:           uuid.New(),
		CourseID:         uuid.New(),
		ContentPackageID: uuid.New(),
		ContentKind:      types.KindDocument,
		SourceKind:       types.OccurrencePrerequisite,
		SourceID:         uuid.New(),
		LastError:        "boom",
		NextAttemptAt:    now.Add(-time.Second),
	}
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	dup := *row
	dup.ID = uuid.Nil
	dup.LastError = "boom again"
	if err := repo.Upsert(dbc, &dup); err != nil {
		t.Fatalf("Upsert duplicate: %v", err)
	}

	exists, err := repo.ExistsForUserCourse(dbc, row.ClientID, row.UserID, row.CourseID)
	if err != nil || !exists {
		t.Fatalf("ExistsForUserCourse: want=true got=%v err=%v", exists, err)
	}

	claimed, err := repo.ClaimDue(dbc, now, 10, 5, time.Minute)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != row.ID {
		t.Fatalf("ClaimDue: want one row %s got=%v", row.ID, claimed)
	}
	if claimed[0].Attempts != 1 || claimed[0].LastError != "boom again" {
		t.Fatalf("ClaimDue: state=%+v", claimed[0])
	}

	again, err := repo.ClaimDue(dbc, now, 10, 5, time.Minute)
	if err != nil || len(again) != 0 {
		t.Fatalf("ClaimDue locked row: err=%v len=%d", err, len(again))
	}

	if err := repo.MarkFailed(dbc, row.ID, "still failing", now.Add(time.Hour)); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if n, err := repo.CountDue(dbc, now, 5); err != nil || n != 0 {
		t.Fatalf("CountDue after reschedule: n=%d err=%v", n, err)
	}

	if err := repo.Delete(dbc, row.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err = repo.ExistsForUserCourse(dbc, row.ClientID, row.UserID, row.CourseID)
	if err != nil || exists {
		t.Fatalf("ExistsForUserCourse after delete: want=false got=%v err=%v", exists, err)
	}
}
