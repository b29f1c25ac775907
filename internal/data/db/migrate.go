package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/domain/progress"
)

// Models lists every table this service migrates. Structure, enrollment, and submission
// tables are owned elsewhere in production and are migrated here for local runs and tests.
func Models() []any {
	return []any{
		// =========================
		// Progress (owned)
		// =========================
		&progress.ContentProgress{},
		&progress.CourseProgress{},
		&progress.PendingSync{},

		// =========================
		// Course structure (read-only)
		// =========================
		&progress.Prerequisite{},
		&progress.ModuleContent{},
		&progress.PostRequisite{},

		// =========================
		// Collaborators
		// =========================
		&progress.AssignmentSubmission{},
		&progress.Enrollment{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
