package progress

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type CourseProgressRepo interface {
	Get(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) (*types.CourseProgress, error)
	GetForUpdate(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) (*types.CourseProgress, error)
	ListByCourse(dbc dbctx.Context, clientID, courseID uuid.UUID, userIDs []uuid.UUID) ([]*types.CourseProgress, error)
	// CreateIfAbsent inserts cp unless a row for the same (client, user, course) exists.
	CreateIfAbsent(dbc dbctx.Context, cp *types.CourseProgress) error
	Save(dbc dbctx.Context, cp *types.CourseProgress) error
}

type courseProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseProgressRepo(db *gorm.DB, baseLog *logger.Logger) CourseProgressRepo {
	return &courseProgressRepo{
		db:  db,
		log: baseLog.With("repo", "CourseProgressRepo"),
	}
}

func (r *courseProgressRepo) Get(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) (*types.CourseProgress, error) {
	return r.get(dbc.DB(r.db), clientID, userID, courseID)
}

func (r *courseProgressRepo) GetForUpdate(dbc dbctx.Context, clientID, userID, courseID uuid.UUID) (*types.CourseProgress, error) {
	return r.get(forUpdate(dbc.DB(r.db)), clientID, userID, courseID)
}

func (r *courseProgressRepo) get(q *gorm.DB, clientID, userID, courseID uuid.UUID) (*types.CourseProgress, error) {
	if clientID == uuid.Nil || userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var cp types.CourseProgress
	err := q.
		Where("client_id = ? AND user_id = ? AND course_id = ?", clientID, userID, courseID).
		Limit(1).
		Find(&cp).Error
	if err != nil {
		return nil, err
	}
	if cp.ID == uuid.Nil {
		return nil, nil
	}
	return &cp, nil
}

func (r *courseProgressRepo) ListByCourse(dbc dbctx.Context, clientID, courseID uuid.UUID, userIDs []uuid.UUID) ([]*types.CourseProgress, error) {
	var out []*types.CourseProgress
	if clientID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	q := dbc.DB(r.db).Where("client_id = ? AND course_id = ?", clientID, courseID)
	if userIDs != nil {
		if len(userIDs) == 0 {
			return out, nil
		}
		q = q.Where("user_id IN ?", userIDs)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseProgressRepo) CreateIfAbsent(dbc dbctx.Context, cp *types.CourseProgress) error {
	if cp == nil {
		return nil
	}
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(cp).Error
}

func (r *courseProgressRepo) Save(dbc dbctx.Context, cp *types.CourseProgress) error {
	if cp == nil || cp.ID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Save(cp).Error
}
