package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/data/repos/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type ContentProgressRepo = progress.ContentProgressRepo
type CourseProgressRepo = progress.CourseProgressRepo
type StructureRepo = progress.StructureRepo
type SubmissionRepo = progress.SubmissionRepo
type EnrollmentRepo = progress.EnrollmentRepo
type PendingSyncRepo = progress.PendingSyncRepo

// Repos bundles every table repo the service uses.
type Repos struct {
	ContentProgress ContentProgressRepo
	CourseProgress  CourseProgressRepo
	Structure       StructureRepo
	Submissions     SubmissionRepo
	Enrollments     EnrollmentRepo
	PendingSyncs    PendingSyncRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		ContentProgress: progress.NewContentProgressRepo(db, log),
		CourseProgress:  progress.NewCourseProgressRepo(db, log),
		Structure:       progress.NewStructureRepo(db, log),
		Submissions:     progress.NewSubmissionRepo(db, log),
		Enrollments:     progress.NewEnrollmentRepo(db, log),
		PendingSyncs:    progress.NewPendingSyncRepo(db, log),
	}
}
