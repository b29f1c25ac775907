package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StructureReader lists the content occurrences of a course. Implementations must not cache
// across requests.
type StructureReader interface {
	ListOccurrences(ctx context.Context, clientID, courseID uuid.UUID) ([]StructureItem, error)
}

// SubmissionService is the assignment submission port.
type SubmissionService interface {
	// LatestAttempt returns nil when the user has never submitted at o.
	LatestAttempt(ctx context.Context, clientID, userID uuid.UUID, o Occurrence) (*AssignmentSubmission, error)
	// MirrorAttempt creates a new attempt at target copying the artifacts of source.
	MirrorAttempt(ctx context.Context, source *AssignmentSubmission, target StructureItem) (*AssignmentSubmission, error)
}

// Member is one enrolled user of a course.
type Member struct {
	UserID     uuid.UUID         `json:"user_id"`
	EnrolledAt time.Time         `json:"enrolled_at"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// PopulationReader lists enrolled users of a course for one tenant.
type PopulationReader interface {
	ListMembers(ctx context.Context, clientID, courseID uuid.UUID) ([]Member, error)
}
