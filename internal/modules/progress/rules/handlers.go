package rules

import (
	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
)

// SCORM 1.2 cmi.core.lesson_status values.
const (
	scormNotAttempted = "not attempted"
	scormBrowsed      = "browsed"
	scormIncomplete   = "incomplete"
	scormCompleted    = "completed"
	scormPassed       = "passed"
	scormFailed       = "failed"
)

func builtinHandlers() []Handler {
	return []Handler{
		{
			Kind: types.KindVideo,
			Fields: map[string]Field{
				"watched_percentage": percent(),
				"current_time":       number(),
				"duration":           number(),
				"completed":          flag(),
			},
			Evaluate: func(p types.Payload, th Thresholds) (bool, float64) {
				return mediaRule(p, "watched_percentage", th.VideoPercent)
			},
			Resume: []string{"current_time", "duration", "watched_percentage"},
		},
		{
			Kind: types.KindAudio,
			Fields: map[string]Field{
				"listened_percentage": percent(),
				"current_time":        number(),
				"duration":            number(),
				"completed":           flag(),
			},
			Evaluate: func(p types.Payload, th Thresholds) (bool, float64) {
				return mediaRule(p, "listened_percentage", th.AudioPercent)
			},
			Resume: []string{"current_time", "duration", "listened_percentage"},
		},
		{
			Kind: types.KindDocument,
			Fields: map[string]Field{
				"viewed_percentage": percent(),
				"current_page":      number(),
				"total_pages":       number(),
				"completed":         flag(),
			},
			Evaluate: documentRule,
			Resume:   []string{"current_page", "total_pages", "viewed_percentage"},
		},
		{
			Kind:   types.KindImage,
			Fields: map[string]Field{"viewed": flag()},
			Evaluate: func(p types.Payload, _ Thresholds) (bool, float64) {
				if p.Bool("viewed") {
					return true, 100
				}
				return false, 0
			},
			Initial: func() types.Payload { return types.Payload{"viewed": true} },
		},
		{
			Kind: types.KindSCORM,
			Fields: map[string]Field{
				"lesson_status":   oneOf(scormNotAttempted, scormBrowsed, scormIncomplete, scormCompleted, scormPassed, scormFailed),
				"lesson_location": text(),
				"suspend_data":    text(),
				"score_raw":       number(),
				"total_time":      text(),
			},
			Evaluate: scormRule,
			Resume:   []string{"lesson_location", "suspend_data", "lesson_status"},
		},
		{
			Kind: types.KindInteractive,
			Fields: map[string]Field{
				"completion_percentage": percent(),
				"current_step":          number(),
				"completed":             flag(),
			},
			Evaluate: func(p types.Payload, _ Thresholds) (bool, float64) {
				if p.Bool("completed") {
					return true, 100
				}
				return false, p.Number("completion_percentage")
			},
			Resume: []string{"current_step", "completion_percentage"},
		},
		{
			Kind: types.KindExternal,
			Fields: map[string]Field{
				"visited":   flag(),
				"completed": flag(),
			},
			Evaluate: func(p types.Payload, _ Thresholds) (bool, float64) {
				if p.Bool("completed") || p.Bool("visited") {
					return true, 100
				}
				return false, 0
			},
		},
		{
			Kind: types.KindAssessment,
			Fields: map[string]Field{
				"attempts":     number(),
				"passed":       flag(),
				"score":        number(),
				"attempted":    flag(),
				"max_attempts": number(),
			},
			Evaluate: assessmentRule,
		},
		{
			Kind: types.KindAssignment,
			Fields: map[string]Field{
				"submission_status": oneOf(types.SubmissionDraft, types.SubmissionSubmitted, types.SubmissionGraded, types.SubmissionReturned, types.SubmissionResubmitted),
				"submission_file":   text(),
				"submission_text":   text(),
				"attempt_number":    number(),
				"grade":             number(),
			},
			Evaluate: func(p types.Payload, _ Thresholds) (bool, float64) {
				if types.IsTerminalSubmission(p.String("submission_status")) {
					return true, 100
				}
				return false, 0
			},
		},
		responseHandler(types.KindSurvey),
		responseHandler(types.KindFeedback),
	}
}

// mediaRule completes on the explicit flag, or on the watched share reaching a positive threshold.
func mediaRule(p types.Payload, pctKey string, threshold float64) (bool, float64) {
	if p.Bool("completed") {
		return true, 100
	}
	pct := p.Number(pctKey)
	if threshold > 0 && pct >= threshold {
		return true, pct
	}
	return false, pct
}

func documentRule(p types.Payload, th Thresholds) (bool, float64) {
	if p.Bool("completed") {
		return true, 100
	}
	pct := p.Number("viewed_percentage")
	if !p.Has("viewed_percentage") {
		if total := p.Number("total_pages"); total > 0 {
			pct = clampPercent(p.Number("current_page") / total * 100)
		}
	}
	if th.DocumentPercent > 0 && pct >= th.DocumentPercent {
		return true, pct
	}
	return false, pct
}

// scormRule: completed or passed is done; incomplete with a bookmark is 75; any other
// sign of a launch (a non-initial status or suspend data) is 50.
func scormRule(p types.Payload, _ Thresholds) (bool, float64) {
	status := p.String("lesson_status")
	switch status {
	case scormCompleted, scormPassed:
		return true, 100
	case scormIncomplete:
		if p.Has("lesson_location") {
			return false, 75
		}
		return false, 50
	case scormBrowsed, scormFailed:
		return false, 50
	}
	if p.Has("suspend_data") || p.Has("lesson_location") {
		return false, 50
	}
	return false, 0
}

// assessmentRule: a failed attempt counts as half done, including when attempts are exhausted.
func assessmentRule(p types.Payload, _ Thresholds) (bool, float64) {
	if p.Bool("passed") {
		return true, 100
	}
	if p.Number("attempts") > 0 || p.Bool("attempted") {
		return false, 50
	}
	return false, 0
}

func responseHandler(kind types.ContentKind) Handler {
	return Handler{
		Kind: kind,
		Fields: map[string]Field{
			"responded":   flag(),
			"response_id": text(),
		},
		Evaluate: func(p types.Payload, _ Thresholds) (bool, float64) {
			if p.Bool("responded") || p.Has("response_id") {
				return true, 100
			}
			return false, 0
		},
	}
}
