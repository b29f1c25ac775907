package store

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
	DB      *gorm.DB
	Log     *logger.Logger
	Writer  *aggregates.Writer
	Records repos.ContentProgressRepo
	Rules   *rules.Engine
	Locks   keylock.Locker
	Metrics *observability.Metrics
	Now     func() time.Time
}

// Store persists per-occurrence progress. It never triggers synchronisation.
type Store struct {
	log     *logger.Logger
	writer  *aggregates.Writer
	records repos.ContentProgressRepo
	rules   *rules.Engine
	locks   keylock.Locker
	metrics *observability.Metrics
	now     func() time.Time
}

func New(deps Deps) *Store {
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
	return &Store{
		log:     deps.Log.With("service", "ContentProgressStore"),
		writer:  deps.Writer,
		records: deps.Records,
		rules:   deps.Rules,
		locks:   deps.Locks,
		metrics: deps.Metrics,
		now:     deps.Now,
	}
}

// Result is the outcome of an update.
type Result struct {
	Record *types.ContentProgress `json:"record"`
	Signal rules.Signal           `json:"signal"`
	// Created is true when the update started the record.
	Created bool `json:"created"`
	// BecameCompleted is true only on the transition into completed.
	BecameCompleted bool `json:"became_completed"`
}

func lockKey(scope ctxutil.Scope, o types.Occurrence) string {
	return "progress:" + scope.ClientID.String() + ":" + scope.UserID.String() + ":" + o.String()
}

// Start creates the record at item if absent, otherwise refreshes last access.
// Existing progress is never cleared.
func (s *Store) Start(ctx context.Context, scope ctxutil.Scope, item types.StructureItem) (*types.ContentProgress, error) {
	const op = "progress.start"
	if err := types.ValidateItem(op, scope, item); err != nil {
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, lockKey(scope, item.Occurrence))
	if err != nil {
		return nil, types.StorageError(op, err)
	}
	defer unlock()

	var out *types.ContentProgress
	var completed bool
	err = s.writer.Write(ctx, op, func(dbc dbctx.Context) error {
		completed = false
		now := s.now()
		rec, err := s.records.GetForUpdate(dbc, scope.ClientID, scope.UserID, item.Occurrence)
		if err != nil {
			return err
		}
		if rec != nil {
			if err := s.records.Touch(dbc, rec.ID, now); err != nil {
				return err
			}
			rec.LastAccessedAt = now
			rec.UpdatedAt = now
			out = rec
			return nil
		}
		rec, completed, err = s.newRecord(scope, item, s.rules.Initial(item.ContentKind), now)
		if err != nil {
			return err
		}
		if err := s.records.Create(dbc, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if completed {
		s.metrics.IncCompletion(string(item.ContentKind), string(types.CompletedBySelf))
	}
	return out, nil
}

// Update merges fields into the record at item, starting it if needed, and recomputes
// completion. Completion never reverts and completed_at is written once.
func (s *Store) Update(ctx context.Context, scope ctxutil.Scope, item types.StructureItem, fields map[string]any) (*Result, error) {
	const op = "progress.update"
	if err := types.ValidateItem(op, scope, item); err != nil {
		return nil, err
	}
	upd, err := s.rules.Validate(item.ContentKind, fields)
	if err != nil {
		s.metrics.IncProgressUpdate(string(item.ContentKind), "rejected")
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, lockKey(scope, item.Occurrence))
	if err != nil {
		return nil, types.StorageError(op, err)
	}
	defer unlock()

	var res *Result
	err = s.writer.Write(ctx, op, func(dbc dbctx.Context) error {
		res = nil
		now := s.now()
		rec, err := s.records.GetForUpdate(dbc, scope.ClientID, scope.UserID, item.Occurrence)
		if err != nil {
			return err
		}
		created := rec == nil
		var payload types.Payload
		if created {
			payload = s.rules.Initial(item.ContentKind)
			rec = &types.ContentProgress{
				ID:        uuid.New(),
				UserID:    scope.UserID,
				StartedAt: now,
				CreatedAt: now,
			}
			rec.Place(item)
		} else {
			payload, err = rec.DecodedPayload()
			if err != nil {
				return aggregates.ValidationError("stored payload is not valid JSON: " + err.Error())
			}
		}
		for k, v := range upd.Fields {
			payload[k] = v
		}
		sig, err := s.rules.Evaluate(item.ContentKind, payload, true)
		if err != nil {
			return err
		}
		became := applySignal(rec, sig, now)
		if rec.Payload, err = types.EncodePayload(payload); err != nil {
			return err
		}
		rec.TimeSpentSeconds += upd.TimeSpent
		rec.LastAccessedAt = now
		rec.UpdatedAt = now

		if created {
			err = s.records.Create(dbc, rec)
		} else {
			err = s.records.Save(dbc, rec)
		}
		if err != nil {
			return err
		}
		res = &Result{Record: rec, Signal: sig, Created: created, BecameCompleted: became}
		return nil
	})
	if err != nil {
		s.metrics.IncProgressUpdate(string(item.ContentKind), "error")
		return nil, err
	}
	s.metrics.IncProgressUpdate(string(item.ContentKind), "ok")
	if res.BecameCompleted {
		s.metrics.IncCompletion(string(item.ContentKind), string(types.CompletedBySelf))
		s.log.Debug("content completed", "user_id", scope.UserID, "occurrence", item.Occurrence.String())
	}
	return res, nil
}

// Get returns the record at o, or nil when the user never started it.
func (s *Store) Get(ctx context.Context, scope ctxutil.Scope, o types.Occurrence) (*types.ContentProgress, error) {
	const op = "progress.get"
	if err := types.RequireScope(op, scope); err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, types.ValidationError(op, []types.FieldError{{Field: "occurrence", Reason: err.Error()}})
	}
	rec, err := s.records.Get(dbctx.New(ctx), scope.ClientID, scope.UserID, o)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return rec, nil
}

// ListForCourse returns every record the scope's user holds in a course.
func (s *Store) ListForCourse(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) ([]*types.ContentProgress, error) {
	const op = "progress.list"
	if err := types.RequireScope(op, scope); err != nil {
		return nil, err
	}
	rows, err := s.records.ListByUserCourse(dbctx.New(ctx), scope.ClientID, scope.UserID, courseID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return rows, nil
}

func (s *Store) newRecord(scope ctxutil.Scope, item types.StructureItem, payload types.Payload, now time.Time) (*types.ContentProgress, bool, error) {
	rec := &types.ContentProgress{
		ID:             uuid.New(),
		UserID:         scope.UserID,
		StartedAt:      now,
		LastAccessedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec.Place(item)
	sig, err := s.rules.Evaluate(item.ContentKind, payload, true)
	if err != nil {
		return nil, false, err
	}
	became := applySignal(rec, sig, now)
	if rec.Payload, err = types.EncodePayload(payload); err != nil {
		return nil, false, err
	}
	return rec, became, nil
}

// applySignal folds a freshly evaluated signal into rec without ever un-completing it.
func applySignal(rec *types.ContentProgress, sig rules.Signal, now time.Time) bool {
	if rec.IsCompleted {
		rec.Complete(rec.CompletedVia, now)
		rec.RaisePercentage(sig.Percentage)
		return false
	}
	if sig.Completed {
		rec.Percentage = sig.Percentage
		return rec.Complete(types.CompletedBySelf, now)
	}
	rec.Status = sig.Status
	rec.Percentage = sig.Percentage
	return false
}
