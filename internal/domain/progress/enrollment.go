package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Enrollment is the reporting population of a course. Owned by the enrollment service.
type Enrollment struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_enrollment_course,priority:1;index:idx_enrollment_user_course,unique,priority:1" json:"client_id"`
	CourseID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_enrollment_course,priority:2;index:idx_enrollment_user_course,unique,priority:3" json:"course_id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_enrollment_user_course,unique,priority:2" json:"user_id"`
	EnrolledAt time.Time      `gorm:"column:enrolled_at;not null" json:"enrolled_at"`
	Dimensions datatypes.JSON `gorm:"type:jsonb;column:dimensions" json:"dimensions,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (Enrollment) TableName() string { return "course_enrollment" }
