package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CourseProgress is the per-user roll-up of one course.
type CourseProgress struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index:idx_course_progress_user_course,unique,priority:1;index:idx_course_progress_course,priority:1" json:"client_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_course_progress_user_course,unique,priority:2" json:"user_id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index:idx_course_progress_user_course,unique,priority:3;index:idx_course_progress_course,priority:2" json:"course_id"`

	Status               Status  `gorm:"column:status;type:varchar(32);not null;default:'not_started'" json:"status"`
	CompletionPercentage float64 `gorm:"column:completion_percentage;not null;default:0" json:"completion_percentage"`
	CompletedItems       int     `gorm:"column:completed_items;not null;default:0" json:"completed_items"`
	TotalItems           int     `gorm:"column:total_items;not null;default:0" json:"total_items"`

	CurrentModuleID       *uuid.UUID     `gorm:"type:uuid" json:"current_module_id,omitempty"`
	CurrentOccurrenceKind OccurrenceKind `gorm:"column:current_occurrence_kind;type:varchar(32)" json:"current_occurrence_kind,omitempty"`
	CurrentOccurrenceID   *uuid.UUID     `gorm:"type:uuid" json:"current_content_id,omitempty"`
	ResumePosition        datatypes.JSON `gorm:"type:jsonb;column:resume_position" json:"resume_position,omitempty"`

	LastAccessedAt *time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`
	TotalTimeSpent int        `gorm:"column:total_time_spent;not null;default:0" json:"total_time_spent"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (CourseProgress) TableName() string { return "course_progress" }

// CurrentOccurrence returns the saved resume occurrence, if any.
func (c *CourseProgress) CurrentOccurrence() (Occurrence, bool) {
	if c == nil || c.CurrentOccurrenceID == nil || !c.CurrentOccurrenceKind.Valid() {
		return Occurrence{}, false
	}
	return Occurrence{Kind: c.CurrentOccurrenceKind, ID: *c.CurrentOccurrenceID}, true
}

// Breakdown is the completion of a subset of a course's items.
type Breakdown struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type ModuleBreakdown struct {
	ModuleID uuid.UUID `json:"module_id"`
	Status   Status    `json:"status"`
	Breakdown
}

// CourseCompletion is the result of a course computation.
type CourseCompletion struct {
	Progress *CourseProgress              `json:"progress"`
	Paths    map[OccurrenceKind]Breakdown `json:"paths"`
	Modules  []ModuleBreakdown            `json:"modules"`
	Items    []ItemCompletion             `json:"items,omitempty"`

	// Authoritative is false while a synchronisation for this user and course awaits retry.
	Authoritative bool `json:"authoritative"`
}

// ItemCompletion is the normalised state of one occurrence inside a course computation.
type ItemCompletion struct {
	Occurrence  Occurrence  `json:"occurrence"`
	ContentKind ContentKind `json:"content_kind"`
	Status      Status      `json:"status"`
	Percentage  float64     `json:"percentage"`
	Completed   bool        `json:"completed"`
}

// ResumeData is the last place a learner can resume from.
type ResumeData struct {
	CourseID       uuid.UUID        `json:"course_id"`
	ModuleID       *uuid.UUID       `json:"module_id,omitempty"`
	Occurrence     Occurrence       `json:"occurrence"`
	ContentKind    ContentKind      `json:"content_kind,omitempty"`
	Payload        Payload          `json:"payload"`
	Progress       *ContentProgress `json:"progress,omitempty"`
	LastAccessedAt *time.Time       `json:"last_accessed_at,omitempty"`
}
