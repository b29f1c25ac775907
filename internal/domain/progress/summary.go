package progress

import (
	"time"

	"github.com/google/uuid"
)

// SummaryFilters narrow the population of a completion summary. Date bounds apply to a
// user's latest activity in the course. Dimensions must all match. Status applies after
// aggregation.
type SummaryFilters struct {
	ActiveFrom *time.Time        `json:"active_from,omitempty"`
	ActiveTo   *time.Time        `json:"active_to,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Status     Status            `json:"status,omitempty"`
}

func (f SummaryFilters) HasDateRange() bool { return f.ActiveFrom != nil || f.ActiveTo != nil }

// InRange reports whether t satisfies the date bounds (inclusive).
func (f SummaryFilters) InRange(t time.Time) bool {
	if f.ActiveFrom != nil && t.Before(*f.ActiveFrom) {
		return false
	}
	if f.ActiveTo != nil && t.After(*f.ActiveTo) {
		return false
	}
	return true
}

func (f SummaryFilters) MatchesDimensions(dims map[string]string) bool {
	for k, want := range f.Dimensions {
		if dims[k] != want {
			return false
		}
	}
	return true
}

// UserCompletion is one row of a summary.
type UserCompletion struct {
	UserID               uuid.UUID  `json:"user_id"`
	Status               Status     `json:"status"`
	CompletionPercentage float64    `json:"completion_percentage"`
	CompletedItems       int        `json:"completed_items"`
	TotalItems           int        `json:"total_items"`
	LastAccessedAt       *time.Time `json:"last_accessed_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	DataUnavailable      bool       `json:"data_unavailable,omitempty"`
	Error                string     `json:"error,omitempty"`
}

type SummaryStats struct {
	Population        int     `json:"population"`
	Reported          int     `json:"reported"`
	NotStarted        int     `json:"not_started"`
	InProgress        int     `json:"in_progress"`
	Completed         int     `json:"completed"`
	DataUnavailable   int     `json:"data_unavailable"`
	AveragePercentage float64 `json:"average_percentage"`
	CompletionRate    float64 `json:"completion_rate"`
}

// CourseSummary is the completion roll-up of one course.
type CourseSummary struct {
	ClientID   uuid.UUID        `json:"client_id"`
	CourseID   uuid.UUID        `json:"course_id"`
	TotalItems int              `json:"total_items"`
	Stats      SummaryStats     `json:"stats"`
	Users      []UserCompletion `json:"users"`
	Incomplete bool             `json:"incomplete"`
	Error      string           `json:"error,omitempty"`
	ComputedAt time.Time        `json:"computed_at"`
}
