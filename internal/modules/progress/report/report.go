package report

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/coursetrack-backend/internal/data/aggregates"
	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

const (
	defaultConcurrency = 8
	activityChunk      = 500
)

// Computer is the aggregator surface the rollup needs.
type Computer interface {
	Items(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) ([]types.StructureItem, error)
	Compute(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, items []types.StructureItem) (*types.CourseCompletion, error)
}

type Deps struct {
	Log        *logger.Logger
	Population types.PopulationReader
	Aggregator Computer
	Records    repos.ContentProgressRepo
	Courses    repos.CourseProgressRepo
	Metrics    *observability.Metrics
	// Concurrency bounds per-user computations of one course.
	Concurrency int
	Now         func() time.Time
}

// Rollup builds completion summaries over a course's enrolled population.
type Rollup struct {
	log         *logger.Logger
	population  types.PopulationReader
	aggregator  Computer
	records     repos.ContentProgressRepo
	courses     repos.CourseProgressRepo
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func New(deps Deps) *Rollup {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultConcurrency
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Rollup{
		log:         deps.Log.With("service", "ReportingRollup"),
		population:  deps.Population,
		aggregator:  deps.Aggregator,
		records:     deps.Records,
		courses:     deps.Courses,
		metrics:     deps.Metrics,
		concurrency: deps.Concurrency,
		now:         deps.Now,
	}
}

func requireAdmin(op string, scope ctxutil.Scope) error {
	if err := types.RequireScope(op, scope); err != nil {
		return err
	}
	if !scope.IsAdmin() {
		return types.NewError(types.CodeForbidden, op, "admin role required", nil)
	}
	return nil
}

// CourseCompletionSummary summarises one course for the scope's tenant. Users whose
// computation fails are reported as data_unavailable and mark the summary incomplete.
func (r *Rollup) CourseCompletionSummary(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, filters types.SummaryFilters) (*types.CourseSummary, error) {
	const op = "progress.report.course"
	if err := requireAdmin(op, scope); err != nil {
		return nil, err
	}
	if courseID == uuid.Nil {
		return nil, types.ValidationError(op, []types.FieldError{{Field: "course_id", Reason: "required"}})
	}
	if err := validateFilters(op, filters); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := r.summarise(ctx, scope, courseID, filters)
	status := "ok"
	unavailable := 0
	switch {
	case err != nil:
		status = "error"
	case out.Incomplete:
		status = "incomplete"
		unavailable = out.Stats.DataUnavailable
	}
	r.metrics.ObserveRollup(status, time.Since(start), unavailable)
	return out, err
}

// CoursesCompletionSummary summarises each course independently. A failing course is
// returned with its error and does not fail the batch.
func (r *Rollup) CoursesCompletionSummary(ctx context.Context, scope ctxutil.Scope, courseIDs []uuid.UUID, filters types.SummaryFilters) ([]*types.CourseSummary, error) {
	const op = "progress.report.courses"
	if err := requireAdmin(op, scope); err != nil {
		return nil, err
	}
	if err := validateFilters(op, filters); err != nil {
		return nil, err
	}
	out := make([]*types.CourseSummary, 0, len(courseIDs))
	seen := map[uuid.UUID]bool{}
	for _, courseID := range courseIDs {
		if seen[courseID] {
			continue
		}
		seen[courseID] = true
		if err := ctx.Err(); err != nil {
			return out, types.StorageError(op, err)
		}
		sum, err := r.CourseCompletionSummary(ctx, scope, courseID, filters)
		if err != nil {
			r.log.Warn("course summary failed", "course_id", courseID, "error", err)
			out = append(out, &types.CourseSummary{
				ClientID:   scope.ClientID,
				CourseID:   courseID,
				Users:      []types.UserCompletion{},
				Incomplete: true,
				Error:      err.Error(),
				ComputedAt: r.now(),
			})
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

func validateFilters(op string, f types.SummaryFilters) error {
	var bad []types.FieldError
	if f.Status != "" && !f.Status.Valid() {
		bad = append(bad, types.FieldError{Field: "status", Reason: "unknown status"})
	}
	if f.ActiveFrom != nil && f.ActiveTo != nil && f.ActiveTo.Before(*f.ActiveFrom) {
		bad = append(bad, types.FieldError{Field: "active_to", Reason: "before active_from"})
	}
	if len(bad) > 0 {
		return types.ValidationError(op, bad)
	}
	return nil
}

func (r *Rollup) summarise(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, filters types.SummaryFilters) (*types.CourseSummary, error) {
	const op = "progress.report.course"
	items, err := r.aggregator.Items(ctx, scope, courseID)
	if err != nil {
		return nil, err
	}
	members, err := r.population.ListMembers(ctx, scope.ClientID, courseID)
	if err != nil {
		return nil, aggregates.MapError(op+".population", err)
	}
	members = filterDimensions(members, filters)
	if filters.HasDateRange() {
		if members, err = r.filterActivity(ctx, scope.ClientID, courseID, members, filters); err != nil {
			return nil, err
		}
	}

	rows := make([]types.UserCompletion, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, m := range members {
		g.Go(func() error {
			rows[i] = r.userRow(gctx, scope.ForUser(m.UserID), courseID, items)
			return nil
		})
	}
	_ = g.Wait()

	sum := &types.CourseSummary{
		ClientID:   scope.ClientID,
		CourseID:   courseID,
		TotalItems: len(items),
		Users:      make([]types.UserCompletion, 0, len(rows)),
		ComputedAt: r.now(),
	}
	sum.Stats.Population = len(rows)
	for _, row := range rows {
		if row.DataUnavailable {
			sum.Incomplete = true
			sum.Users = append(sum.Users, row)
			continue
		}
		if filters.Status != "" && row.Status != filters.Status {
			continue
		}
		sum.Users = append(sum.Users, row)
	}
	sum.Stats = stats(sum.Users, sum.Stats.Population)
	sort.SliceStable(sum.Users, func(i, j int) bool {
		return sum.Users[i].UserID.String() < sum.Users[j].UserID.String()
	})
	return sum, nil
}

func (r *Rollup) userRow(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, items []types.StructureItem) types.UserCompletion {
	unavailable := func(err error) types.UserCompletion {
		r.log.Warn("user completion unavailable", "user_id", scope.UserID, "course_id", courseID, "error", err)
		return types.UserCompletion{UserID: scope.UserID, DataUnavailable: true, Error: err.Error()}
	}
	cc, err := r.aggregator.Compute(ctx, scope, courseID, items)
	if err != nil {
		return unavailable(err)
	}
	cp := cc.Progress
	row := types.UserCompletion{
		UserID:               scope.UserID,
		Status:               cp.Status,
		CompletionPercentage: cp.CompletionPercentage,
		CompletedItems:       cp.CompletedItems,
		TotalItems:           cp.TotalItems,
		LastAccessedAt:       cp.LastAccessedAt,
	}
	if r.courses != nil {
		// completed_at lives only on the persisted roll-up
		saved, err := r.courses.Get(dbctx.New(ctx), scope.ClientID, scope.UserID, courseID)
		if err != nil {
			return unavailable(aggregates.MapError("progress.report.completed_at", err))
		}
		if saved != nil {
			row.CompletedAt = saved.CompletedAt
		}
	}
	return row
}

func stats(rows []types.UserCompletion, population int) types.SummaryStats {
	s := types.SummaryStats{Population: population, Reported: len(rows)}
	var sumPct float64
	available := 0
	for _, row := range rows {
		if row.DataUnavailable {
			s.DataUnavailable++
			continue
		}
		available++
		sumPct += row.CompletionPercentage
		switch row.Status {
		case types.StatusCompleted:
			s.Completed++
		case types.StatusInProgress:
			s.InProgress++
		default:
			s.NotStarted++
		}
	}
	if available > 0 {
		s.AveragePercentage = sumPct / float64(available)
		s.CompletionRate = float64(s.Completed) / float64(available) * 100
	}
	return s
}

func filterDimensions(members []types.Member, f types.SummaryFilters) []types.Member {
	if len(f.Dimensions) == 0 {
		return members
	}
	out := members[:0:0]
	for _, m := range members {
		if f.MatchesDimensions(m.Dimensions) {
			out = append(out, m)
		}
	}
	return out
}

// filterActivity keeps members whose latest activity in the course falls in the date
// bounds. Members without any activity are dropped.
func (r *Rollup) filterActivity(ctx context.Context, clientID, courseID uuid.UUID, members []types.Member, f types.SummaryFilters) ([]types.Member, error) {
	const op = "progress.report.activity"
	latest := make(map[uuid.UUID]time.Time, len(members))
	for startIdx := 0; startIdx < len(members); startIdx += activityChunk {
		end := min(startIdx+activityChunk, len(members))
		ids := make([]uuid.UUID, 0, end-startIdx)
		for _, m := range members[startIdx:end] {
			ids = append(ids, m.UserID)
		}
		recs, err := r.records.ListByUsersCourse(dbctx.New(ctx), clientID, courseID, ids)
		if err != nil {
			return nil, aggregates.MapError(op, err)
		}
		for _, rec := range recs {
			if rec.LastAccessedAt.After(latest[rec.UserID]) {
				latest[rec.UserID] = rec.LastAccessedAt
			}
		}
	}
	out := members[:0:0]
	for _, m := range members {
		t, ok := latest[m.UserID]
		if ok && f.InRange(t) {
			out = append(out, m)
		}
	}
	return out, nil
}
