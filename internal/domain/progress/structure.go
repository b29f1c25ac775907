package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Prerequisite, ModuleContent and PostRequisite are authoring-owned placement tables.
// This service only reads them.

type Prerequisite struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_prerequisite_course,priority:1" json:"client_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_prerequisite_course,priority:2" json:"course_id"`
	ContentKind      ContentKind    `gorm:"column:content_kind;type:varchar(32);not null" json:"content_kind"`
	ContentPackageID uuid.UUID      `gorm:"type:uuid;not null;index" json:"content_package_id"`
	Title            string         `gorm:"column:title" json:"title"`
	Position         int            `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Prerequisite) TableName() string { return "course_prerequisite" }

func (p Prerequisite) Item() StructureItem {
	return StructureItem{
		ClientID:         p.ClientID,
		CourseID:         p.CourseID,
		Occurrence:       Occurrence{Kind: OccurrencePrerequisite, ID: p.ID},
		ContentKind:      p.ContentKind,
		ContentPackageID: p.ContentPackageID,
		Title:            p.Title,
		Position:         p.Position,
	}
}

type ModuleContent struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_module_content_course,priority:1" json:"client_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_module_content_course,priority:2" json:"course_id"`
	ModuleID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	ModulePosition   int            `gorm:"column:module_position;not null;default:0" json:"module_position"`
	ContentKind      ContentKind    `gorm:"column:content_kind;type:varchar(32);not null" json:"content_kind"`
	ContentPackageID uuid.UUID      `gorm:"type:uuid;not null;index" json:"content_package_id"`
	Title            string         `gorm:"column:title" json:"title"`
	Position         int            `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ModuleContent) TableName() string { return "course_module_content" }

func (m ModuleContent) Item() StructureItem {
	moduleID := m.ModuleID
	return StructureItem{
		ClientID:         m.ClientID,
		CourseID:         m.CourseID,
		Occurrence:       Occurrence{Kind: OccurrenceModule, ID: m.ID},
		ModuleID:         &moduleID,
		ContentKind:      m.ContentKind,
		ContentPackageID: m.ContentPackageID,
		Title:            m.Title,
		Position:         m.Position,
		ModulePosition:   m.ModulePosition,
	}
}

type PostRequisite struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_post_requisite_course,priority:1" json:"client_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_post_requisite_course,priority:2" json:"course_id"`
	ContentKind      ContentKind    `gorm:"column:content_kind;type:varchar(32);not null" json:"content_kind"`
	ContentPackageID uuid.UUID      `gorm:"type:uuid;not null;index" json:"content_package_id"`
	Title            string         `gorm:"column:title" json:"title"`
	Position         int            `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PostRequisite) TableName() string { return "course_post_requisite" }

func (p PostRequisite) Item() StructureItem {
	return StructureItem{
		ClientID:         p.ClientID,
		CourseID:         p.CourseID,
		Occurrence:       Occurrence{Kind: OccurrencePostRequisite, ID: p.ID},
		ContentKind:      p.ContentKind,
		ContentPackageID: p.ContentPackageID,
		Title:            p.Title,
		Position:         p.Position,
	}
}
