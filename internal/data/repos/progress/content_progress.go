package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type ContentProgressRepo interface {
	Get(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) (*types.ContentProgress, error)
	GetForUpdate(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) (*types.ContentProgress, error)
	ListByUserCourse(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) ([]*types.ContentProgress, error)
	ListByUsersCourse(dbc dbctx.Context, clientID, courseID uuid.UUID, userIDs []uuid.UUID) ([]*types.ContentProgress, error)
	Create(dbc dbctx.Context, rec *types.ContentProgress) error
	Save(dbc dbctx.Context, rec *types.ContentProgress) error
	Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type contentProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentProgressRepo(db *gorm.DB, baseLog *logger.Logger) ContentProgressRepo {
	return &contentProgressRepo{
		db:  db,
		log: baseLog.With("repo", "ContentProgressRepo"),
	}
}

func (r *contentProgressRepo) Get(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) (*types.ContentProgress, error) {
	return r.get(dbc.DB(r.db), clientID, userID, o)
}

func (r *contentProgressRepo) GetForUpdate(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) (*types.ContentProgress, error) {
	return r.get(forUpdate(dbc.DB(r.db)), clientID, userID, o)
}

func (r *contentProgressRepo) get(q *gorm.DB, clientID, userID uuid.UUID, o types.Occurrence) (*types.ContentProgress, error) {
	if clientID == uuid.Nil || userID == uuid.Nil || o.ID == uuid.Nil {
		return nil, nil
	}
	var rec types.ContentProgress
	err := q.
		Where("client_id = ? AND user_id = ? AND occurrence_kind = ? AND occurrence_id = ?", clientID, userID, o.Kind, o.ID).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

func (r *contentProgressRepo) ListByUserCourse(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) ([]*types.ContentProgress, error) {
	var out []*types.ContentProgress
	if clientID == uuid.Nil || userID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("client_id = ? AND user_id = ? AND course_id = ?", clientID, userID, courseID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentProgressRepo) ListByUsersCourse(dbc dbctx.Context, clientID, courseID uuid.UUID, userIDs []uuid.UUID) ([]*types.ContentProgress, error) {
	var out []*types.ContentProgress
	if clientID == uuid.Nil || courseID == uuid.Nil || len(userIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("client_id = ? AND course_id = ? AND user_id IN ?", clientID, courseID, userIDs).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentProgressRepo) Create(dbc dbctx.Context, rec *types.ContentProgress) error {
	if rec == nil {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(rec).Error
}

// Save writes every column of rec.
func (r *contentProgressRepo) Save(dbc dbctx.Context, rec *types.ContentProgress) error {
	if rec == nil || rec.ID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Save(rec).Error
}

func (r *contentProgressRepo) Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.ContentProgress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_accessed_at": at,
			"updated_at":       at,
		}).Error
}
