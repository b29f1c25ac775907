package progress

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

// StructureRepo reads course placement tables. It implements types.StructureReader.
type StructureRepo interface {
	types.StructureReader
	ListOccurrencesTx(dbc dbctx.Context, clientID, courseID uuid.UUID) ([]types.StructureItem, error)
}

type structureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStructureRepo(db *gorm.DB, baseLog *logger.Logger) StructureRepo {
	return &structureRepo{
		db:  db,
		log: baseLog.With("repo", "StructureRepo"),
	}
}

func (r *structureRepo) ListOccurrences(ctx context.Context, clientID, courseID uuid.UUID) ([]types.StructureItem, error) {
	return r.ListOccurrencesTx(dbctx.New(ctx), clientID, courseID)
}

// ListOccurrencesTx returns prerequisites, then module contents in module order, then
// post-requisites.
func (r *structureRepo) ListOccurrencesTx(dbc dbctx.Context, clientID, courseID uuid.UUID) ([]types.StructureItem, error) {
	out := []types.StructureItem{}
	if clientID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	q := dbc.DB(r.db)

	var pres []types.Prerequisite
	if err := q.Where("client_id = ? AND course_id = ?", clientID, courseID).Find(&pres).Error; err != nil {
		return nil, err
	}
	var mods []types.ModuleContent
	if err := q.Where("client_id = ? AND course_id = ?", clientID, courseID).Find(&mods).Error; err != nil {
		return nil, err
	}
	var posts []types.PostRequisite
	if err := q.Where("client_id = ? AND course_id = ?", clientID, courseID).Find(&posts).Error; err != nil {
		return nil, err
	}

	sort.SliceStable(pres, func(i, j int) bool { return pres[i].Position < pres[j].Position })
	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].ModulePosition != mods[j].ModulePosition {
			return mods[i].ModulePosition < mods[j].ModulePosition
		}
		return mods[i].Position < mods[j].Position
	})
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Position < posts[j].Position })

	for _, p := range pres {
		out = append(out, p.Item())
	}
	for _, m := range mods {
		out = append(out, m.Item())
	}
	for _, p := range posts {
		out = append(out, p.Item())
	}
	return out, nil
}
