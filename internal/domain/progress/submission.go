package progress

import (
	"time"

	"github.com/google/uuid"
)

// Assignment submission statuses. Terminal statuses count as completion.
const (
	SubmissionDraft       = "draft"
	SubmissionSubmitted   = "submitted"
	SubmissionGraded      = "graded"
	SubmissionReturned    = "returned"
	SubmissionResubmitted = "resubmitted"
)

// AssignmentSubmission is one submission attempt at one occurrence.
type AssignmentSubmission struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_submission_attempt,unique,priority:1" json:"client_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_submission_attempt,unique,priority:2" json:"user_id"`
	OccurrenceKind   OccurrenceKind `gorm:"column:occurrence_kind;type:varchar(32);not null;index:idx_submission_attempt,unique,priority:3" json:"occurrence_kind"`
	OccurrenceID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_submission_attempt,unique,priority:4" json:"occurrence_id"`
	AttemptNumber    int            `gorm:"column:attempt_number;not null;index:idx_submission_attempt,unique,priority:5" json:"attempt_number"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	ContentPackageID uuid.UUID      `gorm:"type:uuid;not null" json:"content_package_id"`
	Status           string         `gorm:"column:status;type:varchar(32);not null" json:"status"`
	FilePath         string         `gorm:"column:file_path" json:"file_path,omitempty"`
	Text             string         `gorm:"column:text" json:"text,omitempty"`
	Grade            *float64       `gorm:"column:grade" json:"grade,omitempty"`
	MirroredFromID   *uuid.UUID     `gorm:"type:uuid" json:"mirrored_from_id,omitempty"`
	SubmittedAt      *time.Time     `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (AssignmentSubmission) TableName() string { return "assignment_submission" }

func (s *AssignmentSubmission) Occurrence() Occurrence {
	return Occurrence{Kind: s.OccurrenceKind, ID: s.OccurrenceID}
}

// IsTerminalSubmission reports whether status completes an assignment.
func IsTerminalSubmission(status string) bool {
	switch status {
	case SubmissionSubmitted, SubmissionGraded, SubmissionReturned, SubmissionResubmitted:
		return true
	default:
		return false
	}
}
