package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

// SubmissionRepo stores assignment attempts. It implements types.SubmissionService.
type SubmissionRepo interface {
	types.SubmissionService
	Create(dbc dbctx.Context, s *types.AssignmentSubmission) error
	NextAttemptNumber(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) (int, error)
	ListAttempts(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) ([]*types.AssignmentSubmission, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{
		db:  db,
		log: baseLog.With("repo", "SubmissionRepo"),
	}
}

func (r *submissionRepo) LatestAttempt(ctx context.Context, clientID, userID uuid.UUID, o types.Occurrence) (*types.AssignmentSubmission, error) {
	if clientID == uuid.Nil || userID == uuid.Nil || o.ID == uuid.Nil {
		return nil, nil
	}
	var s types.AssignmentSubmission
	err := dbctx.New(ctx).DB(r.db).
		Where("client_id = ? AND user_id = ? AND occurrence_kind = ? AND occurrence_id = ?", clientID, userID, o.Kind, o.ID).
		Order("attempt_number DESC").
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

func (r *submissionRepo) ListAttempts(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) ([]*types.AssignmentSubmission, error) {
	var out []*types.AssignmentSubmission
	err := dbc.DB(r.db).
		Where("client_id = ? AND user_id = ? AND occurrence_kind = ? AND occurrence_id = ?", clientID, userID, o.Kind, o.ID).
		Order("attempt_number ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *submissionRepo) NextAttemptNumber(dbc dbctx.Context, clientID, userID uuid.UUID, o types.Occurrence) (int, error) {
	var latest types.AssignmentSubmission
	err := forUpdate(dbc.DB(r.db)).
		Where("client_id = ? AND user_id = ? AND occurrence_kind = ? AND occurrence_id = ?", clientID, userID, o.Kind, o.ID).
		Order("attempt_number DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return 0, err
	}
	return latest.AttemptNumber + 1, nil
}

func (r *submissionRepo) Create(dbc dbctx.Context, s *types.AssignmentSubmission) error {
	if s == nil {
		return nil
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(s).Error
}

// MirrorAttempt appends an attempt at target carrying source's artifacts and status.
func (r *submissionRepo) MirrorAttempt(ctx context.Context, source *types.AssignmentSubmission, target types.StructureItem) (*types.AssignmentSubmission, error) {
	if source == nil {
		return nil, nil
	}
	var created *types.AssignmentSubmission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		next, err := r.NextAttemptNumber(dbc, source.ClientID, source.UserID, target.Occurrence)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		sourceID := source.ID
		submittedAt := source.SubmittedAt
		if submittedAt == nil {
			submittedAt = &now
		}
		row := &types.AssignmentSubmission{
			ID:               uuid.New(),
			ClientID:         source.ClientID,
			UserID:           source.UserID,
			OccurrenceKind:   target.Occurrence.Kind,
			OccurrenceID:     target.Occurrence.ID,
			AttemptNumber:    next,
			CourseID:         target.CourseID,
			ContentPackageID: target.ContentPackageID,
			Status:           source.Status,
			FilePath:         source.FilePath,
			Text:             source.Text,
			Grade:            source.Grade,
			MirroredFromID:   &sourceID,
			SubmittedAt:      submittedAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
