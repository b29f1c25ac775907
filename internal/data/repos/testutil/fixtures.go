package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
)

// Course is a seeded course with its placements.
type Course struct {
	ClientID uuid.UUID
	CourseID uuid.UUID
	Items    []types.StructureItem
}

func NewCourse() *Course {
	return &Course{ClientID: uuid.New(), CourseID: uuid.New()}
}

func SeedPrerequisite(tb testing.TB, ctx context.Context, tx *gorm.DB, c *Course, kind types.ContentKind, packageID uuid.UUID, position int) types.StructureItem {
	tb.Helper()
	now := time.Now().UTC()
	row := &types.Prerequisite{
		ID:               uuid.New(),
		ClientID:         c.ClientID,
		CourseID:         c.CourseID,
		ContentKind:      kind,
		ContentPackageID: packageID,
		Title:            string(kind),
		Position:         position,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed prerequisite: %v", err)
	}
	item := row.Item()
	c.Items = append(c.Items, item)
	return item
}

func SeedModuleContent(tb testing.TB, ctx context.Context, tx *gorm.DB, c *Course, moduleID uuid.UUID, modulePosition int, kind types.ContentKind, packageID uuid.UUID, position int) types.StructureItem {
	tb.Helper()
	now := time.Now().UTC()
	row := &types.ModuleContent{
		ID:               uuid.New(),
		ClientID:         c.ClientID,
		CourseID:         c.CourseID,
		ModuleID:         moduleID,
		ModulePosition:   modulePosition,
		ContentKind:      kind,
		ContentPackageID: packageID,
		Title:            string(kind),
		Position:         position,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed module content: %v", err)
	}
	item := row.Item()
	c.Items = append(c.Items, item)
	return item
}

func SeedPostRequisite(tb testing.TB, ctx context.Context, tx *gorm.DB, c *Course, kind types.ContentKind, packageID uuid.UUID, position int) types.StructureItem {
	tb.Helper()
	now := time.Now().UTC()
	row := &types.PostRequisite{
		ID:               uuid.New(),
		ClientID:         c.ClientID,
		CourseID:         c.CourseID,
		ContentKind:      kind,
		ContentPackageID: packageID,
		Title:            string(kind),
		Position:         position,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed post-requisite: %v", err)
	}
	item := row.Item()
	c.Items = append(c.Items, item)
	return item
}

func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, c *Course, userID uuid.UUID, dims map[string]string) *types.Enrollment {
	tb.Helper()
	now := time.Now().UTC()
	raw := datatypes.JSON([]byte("{}"))
	if dims != nil {
		b, err := json.Marshal(dims)
		if err != nil {
			tb.Fatalf("marshal dimensions: %v", err)
		}
		raw = datatypes.JSON(b)
	}
	row := &types.Enrollment{
		ID:         uuid.New(),
		ClientID:   c.ClientID,
		CourseID:   c.CourseID,
		UserID:     userID,
		EnrolledAt: now,
		Dimensions: raw,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return row
}

func SeedSubmission(tb testing.TB, ctx context.Context, tx *gorm.DB, item types.StructureItem, userID uuid.UUID, attempt int, status string) *types.AssignmentSubmission {
	tb.Helper()
	now := time.Now().UTC()
	row := &types.AssignmentSubmission{
		ID:               uuid.New(),
		ClientID:         item.ClientID,
		UserID:           userID,
		OccurrenceKind:   item.Occurrence.Kind,
		OccurrenceID:     item.Occurrence.ID,
		AttemptNumber:    attempt,
		CourseID:         item.CourseID,
		ContentPackageID: item.ContentPackageID,
		Status:           status,
		FilePath:         "submissions/" + userID.String() + "/essay.pdf",
		SubmittedAt:      &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed submission: %v", err)
	}
	return row
}
