package aggregate

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/coursetrack-backend/internal/data/aggregates"
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
)

// ResumeInput is the location a learner left a course at.
type ResumeInput struct {
	ModuleID   *uuid.UUID       `json:"module_id,omitempty"`
	Occurrence types.Occurrence `json:"occurrence"`
	Payload    types.Payload    `json:"payload,omitempty"`
}

// SetResumePosition saves the location and payload on the course row. The occurrence
// must belong to the course; module_id defaults to the occurrence's module.
func (a *Aggregator) SetResumePosition(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, in ResumeInput) (*types.CourseProgress, error) {
	const op = "progress.resume.set"
	if err := requireCourse(op, scope, courseID); err != nil {
		return nil, err
	}
	if err := in.Occurrence.Validate(); err != nil {
		return nil, types.ValidationError(op, []types.FieldError{{Field: "occurrence", Reason: err.Error()}})
	}
	items, err := a.Items(ctx, scope, courseID)
	if err != nil {
		return nil, err
	}
	item, ok := types.FindItem(items, in.Occurrence)
	if !ok {
		return nil, types.NotFound(op, "occurrence is not part of the course")
	}
	moduleID := in.ModuleID
	if moduleID == nil {
		moduleID = item.ModuleID
	}
	raw, err := types.EncodePayload(in.Payload)
	if err != nil {
		return nil, types.ValidationError(op, []types.FieldError{{Field: "payload", Reason: err.Error()}})
	}

	unlock, err := a.locks.Lock(ctx, lockKey(scope, courseID))
	if err != nil {
		return nil, types.StorageError(op, err)
	}
	defer unlock()

	var out *types.CourseProgress
	err = a.writer.Write(ctx, op, func(dbc dbctx.Context) error {
		now := a.now()
		cp, err := a.lockedProgress(dbc, scope, courseID, now)
		if err != nil {
			return err
		}
		occID := in.Occurrence.ID
		cp.CurrentModuleID = moduleID
		cp.CurrentOccurrenceKind = in.Occurrence.Kind
		cp.CurrentOccurrenceID = &occID
		cp.ResumePosition = raw
		cp.LastAccessedAt = &now
		cp.UpdatedAt = now
		if err := a.courses.Save(dbc, cp); err != nil {
			return err
		}
		out = cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetResumePosition returns the saved location with its payload refreshed from the live
// record. Live resume fields win over saved ones. It returns nil when nothing was saved.
func (a *Aggregator) GetResumePosition(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) (*types.ResumeData, error) {
	const op = "progress.resume.get"
	if err := requireCourse(op, scope, courseID); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	cp, err := a.courses.Get(dbc, scope.ClientID, scope.UserID, courseID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	occ, ok := cp.CurrentOccurrence()
	if !ok {
		return nil, nil
	}
	saved, err := types.DecodePayload(cp.ResumePosition)
	if err != nil {
		a.log.Warn("saved resume payload is not valid JSON", "course_id", courseID, "error", err)
		saved = types.Payload{}
	}
	out := &types.ResumeData{
		CourseID:       courseID,
		ModuleID:       cp.CurrentModuleID,
		Occurrence:     occ,
		Payload:        saved,
		LastAccessedAt: cp.LastAccessedAt,
	}

	rec, err := a.records.Get(dbc, scope.ClientID, scope.UserID, occ)
	if err != nil {
		return nil, aggregates.MapError(op+".record", err)
	}
	if rec == nil {
		items, err := a.Items(ctx, scope, courseID)
		if err != nil {
			return nil, err
		}
		if item, ok := types.FindItem(items, occ); ok {
			out.ContentKind = item.ContentKind
		}
		return out, nil
	}
	out.ContentKind = rec.ContentKind
	out.Progress = rec
	live, err := rec.DecodedPayload()
	if err != nil {
		return nil, types.NewError(types.CodeValidation, op, "stored payload is not valid JSON", err)
	}
	var fields types.Payload
	if a.rules != nil {
		fields = a.rules.ResumeFields(rec.ContentKind, live)
	} else {
		fields = live
	}
	for k, v := range fields {
		out.Payload[k] = v
	}
	return out, nil
}
