package progress

import (
	"time"

	"github.com/google/uuid"
)

// PendingSync records a synchronisation event whose targets did not all succeed.
// The row is removed once a retry completes every target.
type PendingSync struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_pending_sync_event,unique,priority:1;index:idx_pending_sync_user_course,priority:1" json:"client_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_pending_sync_event,unique,priority:2;index:idx_pending_sync_user_course,priority:2" json:"user_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_pending_sync_event,unique,priority:3;index:idx_pending_sync_user_course,priority:3" json:"course_id"`
	ContentPackageID uuid.UUID      `gorm:"type:uuid;not null;index:idx_pending_sync_event,unique,priority:4" json:"content_package_id"`
	ContentKind      ContentKind    `gorm:"column:content_kind;type:varchar(32);not null" json:"content_kind"`
	SourceKind       OccurrenceKind `gorm:"column:source_kind;type:varchar(32);not null;index:idx_pending_sync_event,unique,priority:5" json:"source_kind"`
	SourceID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_pending_sync_event,unique,priority:6" json:"source_id"`
	Attempts         int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError        string         `gorm:"column:last_error" json:"last_error,omitempty"`
	NextAttemptAt    time.Time      `gorm:"column:next_attempt_at;not null;index" json:"next_attempt_at"`
	LockedAt         *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (PendingSync) TableName() string { return "pending_sync" }

func (p *PendingSync) Event() SyncEvent {
	return SyncEvent{
		ClientID:         p.ClientID,
		UserID:           p.UserID,
		CourseID:         p.CourseID,
		ContentPackageID: p.ContentPackageID,
		ContentKind:      p.ContentKind,
		Source:           Occurrence{Kind: p.SourceKind, ID: p.SourceID},
	}
}

// SyncEvent is a completion event at a source occurrence to mirror onto siblings.
type SyncEvent struct {
	ClientID         uuid.UUID   `json:"client_id"`
	UserID           uuid.UUID   `json:"user_id"`
	CourseID         uuid.UUID   `json:"course_id"`
	ContentPackageID uuid.UUID   `json:"content_package_id"`
	ContentKind      ContentKind `json:"content_kind"`
	Source           Occurrence  `json:"source"`
}

// LockKey serialises synchronisation per (tenant, user, content package).
func (e SyncEvent) LockKey() string {
	return "sync:" + e.ClientID.String() + ":" + e.UserID.String() + ":" + e.ContentPackageID.String()
}
