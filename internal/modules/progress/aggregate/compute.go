package aggregate

import (
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
)

// Percentage is the equal-weight completion share. Zero items yield 0.
func Percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// StatusFor maps a completion share onto a course or module status.
func StatusFor(pct float64, started bool) types.Status {
	switch {
	case pct >= 100:
		return types.StatusCompleted
	case pct > 0 || started:
		return types.StatusInProgress
	default:
		return types.StatusNotStarted
	}
}

func itemState(item types.StructureItem, rec *types.ContentProgress) types.ItemCompletion {
	out := types.ItemCompletion{
		Occurrence:  item.Occurrence,
		ContentKind: item.ContentKind,
		Status:      types.StatusNotStarted,
	}
	if rec == nil {
		return out
	}
	out.Status = rec.Status
	out.Percentage = rec.Percentage
	out.Completed = rec.IsCompleted
	if rec.IsCompleted {
		out.Status = types.StatusCompleted
		out.Percentage = 100
	}
	return out
}

type tally struct {
	completed int
	total     int
	started   bool
}

func (t *tally) add(it types.ItemCompletion) {
	t.total++
	if it.Completed {
		t.completed++
	}
	if it.Status != types.StatusNotStarted {
		t.started = true
	}
}

func (t tally) breakdown() types.Breakdown {
	return types.Breakdown{Completed: t.completed, Total: t.total, Percentage: Percentage(t.completed, t.total)}
}

// build rolls the records of one user up over items. Records whose occurrence is no
// longer part of the structure are ignored.
func build(clientID, userID, courseID uuid.UUID, items []types.StructureItem, records []*types.ContentProgress) *types.CourseCompletion {
	byOcc := make(map[types.Occurrence]*types.ContentProgress, len(records))
	for _, rec := range records {
		if rec == nil || rec.ClientID != clientID || rec.UserID != userID {
			continue
		}
		byOcc[rec.Occurrence()] = rec
	}

	cp := &types.CourseProgress{ClientID: clientID, UserID: userID, CourseID: courseID}
	out := &types.CourseCompletion{
		Progress: cp,
		Paths: map[types.OccurrenceKind]types.Breakdown{
			types.OccurrencePrerequisite:  {},
			types.OccurrenceModule:        {},
			types.OccurrencePostRequisite: {},
		},
		Modules:       []types.ModuleBreakdown{},
		Items:         make([]types.ItemCompletion, 0, len(items)),
		Authoritative: true,
	}

	var course tally
	paths := map[types.OccurrenceKind]*tally{}
	modules := map[uuid.UUID]*tally{}
	var moduleOrder []uuid.UUID
	var lastAccess time.Time

	for _, item := range items {
		rec := byOcc[item.Occurrence]
		st := itemState(item, rec)
		out.Items = append(out.Items, st)
		course.add(st)

		pt := paths[item.Occurrence.Kind]
		if pt == nil {
			pt = &tally{}
			paths[item.Occurrence.Kind] = pt
		}
		pt.add(st)

		if item.Occurrence.Kind == types.OccurrenceModule && item.ModuleID != nil {
			mt := modules[*item.ModuleID]
			if mt == nil {
				mt = &tally{}
				modules[*item.ModuleID] = mt
				moduleOrder = append(moduleOrder, *item.ModuleID)
			}
			mt.add(st)
		}

		if rec != nil {
			cp.TotalTimeSpent += rec.TimeSpentSeconds
			if rec.LastAccessedAt.After(lastAccess) {
				lastAccess = rec.LastAccessedAt
			}
		}
	}

	for kind, t := range paths {
		out.Paths[kind] = t.breakdown()
	}
	for _, id := range moduleOrder {
		t := modules[id]
		b := t.breakdown()
		out.Modules = append(out.Modules, types.ModuleBreakdown{ModuleID: id, Status: StatusFor(b.Percentage, t.started), Breakdown: b})
	}

	cp.CompletedItems = course.completed
	cp.TotalItems = course.total
	cp.CompletionPercentage = Percentage(course.completed, course.total)
	cp.Status = types.StatusNotStarted
	if course.total > 0 {
		cp.Status = StatusFor(cp.CompletionPercentage, course.started)
	}
	if !lastAccess.IsZero() {
		t := lastAccess
		cp.LastAccessedAt = &t
	}
	return out
}
