package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type PendingSyncRepo interface {
	// Upsert records a failed event. An existing row for the same event keeps its attempt
	// count and gets the new error and schedule.
	Upsert(dbc dbctx.Context, row *types.PendingSync) error
	Get(dbc dbctx.Context, id uuid.UUID) (*types.PendingSync, error)
	// ClaimDue locks up to limit rows due at now. Rows locked longer than staleLock ago are reclaimable.
	ClaimDue(dbc dbctx.Context, now time.Time, limit int, maxAttempts int, staleLock time.Duration) ([]*types.PendingSync, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, lastError string, next time.Time) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteEvent(dbc dbctx.Context, e types.SyncEvent) (int64, error)
	ExistsForUserCourse(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) (bool, error)
	CountDue(dbc dbctx.Context, now time.Time, maxAttempts int) (int64, error)
}

type pendingSyncRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPendingSyncRepo(db *gorm.DB, baseLog *logger.Logger) PendingSyncRepo {
	return &pendingSyncRepo{
		db:  db,
		log: baseLog.With("repo", "PendingSyncRepo"),
	}
}

func (r *pendingSyncRepo) Upsert(dbc dbctx.Context, row *types.PendingSync) error {
	if row == nil {
		return nil
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.NextAttemptAt.IsZero() {
		row.NextAttemptAt = now
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "client_id"}, {Name: "user_id"}, {Name: "course_id"},
				{Name: "content_package_id"}, {Name: "source_kind"}, {Name: "source_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"last_error", "next_attempt_at", "updated_at"}),
		}).
		Create(row).Error
}

func (r *pendingSyncRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.PendingSync, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.PendingSync
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *pendingSyncRepo) ClaimDue(dbc dbctx.Context, now time.Time, limit int, maxAttempts int, staleLock time.Duration) ([]*types.PendingSync, error) {
	if limit <= 0 {
		limit = 1
	}
	staleCutoff := now.Add(-staleLock)
	var claimed []*types.PendingSync
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var rows []*types.PendingSync
		q := skipLocked(txx).
			Where("next_attempt_at <= ?", now).
			Where("(locked_at IS NULL OR locked_at < ?)", staleCutoff)
		if maxAttempts > 0 {
			q = q.Where("attempts < ?", maxAttempts)
		}
		if err := q.Order("next_attempt_at ASC").Limit(limit).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		err := txx.Model(&types.PendingSync{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + 1"),
				"locked_at":  now,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
		for _, row := range rows {
			row.Attempts++
			lockedAt := now
			row.LockedAt = &lockedAt
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *pendingSyncRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, lastError string, next time.Time) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.PendingSync{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error":      lastError,
			"next_attempt_at": next,
			"locked_at":       nil,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *pendingSyncRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.PendingSync{}).Error
}

func (r *pendingSyncRepo) DeleteEvent(dbc dbctx.Context, e types.SyncEvent) (int64, error) {
	res := dbc.DB(r.db).
		Where("client_id = ? AND user_id = ? AND course_id = ? AND content_package_id = ? AND source_kind = ? AND source_id = ?",
			e.ClientID, e.UserID, e.CourseID, e.ContentPackageID, e.Source.Kind, e.Source.ID).
		Delete(&types.PendingSync{})
	return res.RowsAffected, res.Error
}

func (r *pendingSyncRepo) ExistsForUserCourse(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) (bool, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.PendingSync{}).
		Where("client_id = ? AND user_id = ? AND course_id = ?", clientID, userID, courseID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *pendingSyncRepo) CountDue(dbc dbctx.Context, now time.Time, maxAttempts int) (int64, error) {
	var n int64
	q := dbc.DB(r.db).Model(&types.PendingSync{}).Where("next_attempt_at <= ?", now)
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
