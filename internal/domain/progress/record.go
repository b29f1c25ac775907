package progress

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ContentProgress is the progress record of one user at one content occurrence.
type ContentProgress struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_content_progress_occ,unique,priority:1;index:idx_content_progress_user_course,priority:1" json:"client_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_content_progress_occ,unique,priority:2;index:idx_content_progress_user_course,priority:2" json:"user_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_content_progress_user_course,priority:3" json:"course_id"`
	ContentKind      ContentKind    `gorm:"column:content_kind;type:varchar(32);not null" json:"content_kind"`
	ContentPackageID uuid.UUID      `gorm:"type:uuid;not null;index" json:"content_package_id"`
	OccurrenceKind   OccurrenceKind `gorm:"column:occurrence_kind;type:varchar(32);not null;index:idx_content_progress_occ,unique,priority:3" json:"occurrence_kind"`
	OccurrenceID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_content_progress_occ,unique,priority:4" json:"occurrence_id"`
	PrerequisiteID   *uuid.UUID     `gorm:"type:uuid" json:"prerequisite_id,omitempty"`
	ModuleContentID  *uuid.UUID     `gorm:"type:uuid" json:"module_content_id,omitempty"`
	PostRequisiteID  *uuid.UUID     `gorm:"type:uuid" json:"post_requisite_id,omitempty"`
	ModuleID         *uuid.UUID     `gorm:"type:uuid" json:"module_id,omitempty"`

	Status       Status           `gorm:"column:status;type:varchar(32);not null;default:'not_started'" json:"status"`
	Percentage   float64          `gorm:"column:percentage;not null;default:0" json:"percentage"`
	IsCompleted  bool             `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	CompletedVia CompletionSource `gorm:"column:completed_via;type:varchar(16)" json:"completed_via,omitempty"`
	SyncedFromID *uuid.UUID       `gorm:"type:uuid" json:"synced_from_id,omitempty"`
	Payload      datatypes.JSON   `gorm:"type:jsonb;column:payload" json:"payload"`

	TimeSpentSeconds int        `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`
	StartedAt        time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	LastAccessedAt   time.Time  `gorm:"column:last_accessed_at;not null" json:"last_accessed_at"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (ContentProgress) TableName() string { return "content_progress" }

func (r *ContentProgress) Occurrence() Occurrence {
	return Occurrence{Kind: r.OccurrenceKind, ID: r.OccurrenceID}
}

// Place copies the identity of item onto the record, including the mutually exclusive
// prerequisite/module-content/post-requisite columns.
func (r *ContentProgress) Place(item StructureItem) {
	r.ClientID = item.ClientID
	r.CourseID = item.CourseID
	r.ContentKind = item.ContentKind
	r.ContentPackageID = item.ContentPackageID
	r.OccurrenceKind = item.Occurrence.Kind
	r.OccurrenceID = item.Occurrence.ID
	r.PrerequisiteID = item.Occurrence.PrerequisiteID()
	r.ModuleContentID = item.Occurrence.ModuleContentID()
	r.PostRequisiteID = item.Occurrence.PostRequisiteID()
	r.ModuleID = item.ModuleID
}

// Complete transitions r to completed. It reports false when r was already completed,
// in which case provenance and completed_at are left untouched.
func (r *ContentProgress) Complete(via CompletionSource, at time.Time) bool {
	r.Status = StatusCompleted
	if r.IsCompleted {
		return false
	}
	r.IsCompleted = true
	r.CompletedVia = via
	if r.CompletedAt == nil {
		t := at
		r.CompletedAt = &t
	}
	return true
}

// RaisePercentage keeps the larger of the stored and given percentage.
func (r *ContentProgress) RaisePercentage(pct float64) {
	if pct > r.Percentage {
		r.Percentage = pct
	}
}

func (r *ContentProgress) DecodedPayload() (Payload, error) {
	return DecodePayload(r.Payload)
}

// Payload is the decoded kind-specific progress state.
type Payload map[string]any

func DecodePayload(raw datatypes.JSON) (Payload, error) {
	out := Payload{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Payload{}
	}
	return out, nil
}

func EncodePayload(p Payload) (datatypes.JSON, error) {
	if p == nil {
		p = Payload{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Clone returns a shallow copy of p.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Payload) Bool(key string) bool {
	v, ok := p[key].(bool)
	return ok && v
}

func (p Payload) String(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p Payload) Number(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// Has reports whether key carries a meaningful value. Empty strings and nil count as missing.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}
