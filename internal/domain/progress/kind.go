package progress

import (
	"fmt"
	"strings"
)

// ContentKind is the type of a content package.
type ContentKind string

const (
	KindVideo       ContentKind = "video"
	KindAudio       ContentKind = "audio"
	KindDocument    ContentKind = "document"
	KindImage       ContentKind = "image"
	KindSCORM       ContentKind = "scorm"
	KindInteractive ContentKind = "interactive"
	KindExternal    ContentKind = "external"
	KindAssessment  ContentKind = "assessment"
	KindAssignment  ContentKind = "assignment"
	KindSurvey      ContentKind = "survey"
	KindFeedback    ContentKind = "feedback"
)

// AllKinds lists every supported content kind.
var AllKinds = []ContentKind{
	KindVideo,
	KindAudio,
	KindDocument,
	KindImage,
	KindSCORM,
	KindInteractive,
	KindExternal,
	KindAssessment,
	KindAssignment,
	KindSurvey,
	KindFeedback,
}

func (k ContentKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

func ParseKind(raw string) (ContentKind, error) {
	k := ContentKind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown content kind %q", raw)
	}
	return k, nil
}

// OccurrenceKind says where in a course a content package is placed.
type OccurrenceKind string

const (
	OccurrencePrerequisite  OccurrenceKind = "prerequisite"
	OccurrenceModule        OccurrenceKind = "module"
	OccurrencePostRequisite OccurrenceKind = "post_requisite"
)

func (k OccurrenceKind) Valid() bool {
	switch k {
	case OccurrencePrerequisite, OccurrenceModule, OccurrencePostRequisite:
		return true
	default:
		return false
	}
}

func ParseOccurrenceKind(raw string) (OccurrenceKind, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, "-", "_")
	switch v {
	case "module_content", "modules":
		v = string(OccurrenceModule)
	case "prerequisites":
		v = string(OccurrencePrerequisite)
	case "postrequisite", "post_requisites":
		v = string(OccurrencePostRequisite)
	}
	k := OccurrenceKind(v)
	if !k.Valid() {
		return "", fmt.Errorf("unknown occurrence kind %q", raw)
	}
	return k, nil
}

// Status is the normalised lifecycle state shared by items and courses.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// CompletionSource records how a record became completed.
type CompletionSource string

const (
	CompletedBySelf CompletionSource = "self"
	CompletedBySync CompletionSource = "sync"
)
