package progress

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

// EnrollmentRepo implements types.PopulationReader over the enrollment table.
type EnrollmentRepo interface {
	types.PopulationReader
	Create(dbc dbctx.Context, rows []*types.Enrollment) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{
		db:  db,
		log: baseLog.With("repo", "EnrollmentRepo"),
	}
}

func (r *enrollmentRepo) ListMembers(ctx context.Context, clientID, courseID uuid.UUID) ([]types.Member, error) {
	out := []types.Member{}
	if clientID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	var rows []types.Enrollment
	err := dbctx.New(ctx).DB(r.db).
		Where("client_id = ? AND course_id = ?", clientID, courseID).
		Order("enrolled_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		m := types.Member{UserID: row.UserID, EnrolledAt: row.EnrolledAt}
		if len(row.Dimensions) > 0 {
			dims := map[string]string{}
			if err := json.Unmarshal(row.Dimensions, &dims); err != nil {
				r.log.Warn("enrollment dimensions not decodable", "user_id", row.UserID, "error", err)
			} else {
				m.Dimensions = dims
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *enrollmentRepo) Create(dbc dbctx.Context, rows []*types.Enrollment) error {
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	return dbc.DB(r.db).Create(&rows).Error
}
