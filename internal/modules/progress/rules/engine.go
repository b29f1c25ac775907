package rules

import (
	"fmt"
	"math"
	"sort"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
)

// Signal is the normalised completion state derived from a payload.
type Signal struct {
	Status     types.Status `json:"status"`
	Percentage float64      `json:"percentage"`
	Completed  bool         `json:"completed"`
}

// Handler describes one content kind.
type Handler struct {
	Kind   types.ContentKind
	Fields map[string]Field
	// Evaluate derives completion from the accumulated payload.
	Evaluate func(p types.Payload, th Thresholds) (completed bool, percentage float64)
	// Initial is the payload written by Start. Nil means empty.
	Initial func() types.Payload
	// Resume lists the payload keys that locate a learner inside the content.
	Resume []string
}

type Engine struct {
	handlers   map[types.ContentKind]Handler
	thresholds Thresholds
}

func New(th Thresholds) *Engine {
	e := &Engine{handlers: map[types.ContentKind]Handler{}, thresholds: th}
	for _, h := range builtinHandlers() {
		e.handlers[h.Kind] = h
	}
	return e
}

func (e *Engine) Thresholds() Thresholds { return e.thresholds }

func (e *Engine) Handler(kind types.ContentKind) (Handler, bool) {
	h, ok := e.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds, sorted.
func (e *Engine) Kinds() []types.ContentKind {
	out := make([]types.ContentKind, 0, len(e.handlers))
	for k := range e.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks every field against the kind's allow-list. All offending fields are
// reported together.
func (e *Engine) Validate(kind types.ContentKind, fields map[string]any) (Update, error) {
	h, ok := e.handlers[kind]
	if !ok {
		return Update{}, types.ValidationError("rules.validate", []types.FieldError{{Field: "content_kind", Reason: fmt.Sprintf("unsupported kind %q", kind)}})
	}
	out := Update{Fields: types.Payload{}}
	var bad []types.FieldError
	for name, raw := range fields {
		if name == FieldTimeSpent {
			n, reason := number().check(raw)
			if reason != "" {
				bad = append(bad, types.FieldError{Field: name, Reason: reason})
				continue
			}
			out.TimeSpent = int(math.Round(n.(float64)))
			continue
		}
		f, known := h.Fields[name]
		if !known {
			bad = append(bad, types.FieldError{Field: name, Reason: fmt.Sprintf("not accepted for %s content", kind)})
			continue
		}
		v, reason := f.check(raw)
		if reason != "" {
			bad = append(bad, types.FieldError{Field: name, Reason: reason})
			continue
		}
		out.Fields[name] = v
	}
	if len(bad) > 0 {
		return Update{}, types.ValidationError("rules.validate", bad)
	}
	return out, nil
}

// Evaluate derives the signal for a payload. A started record that is not completed is
// in progress even at zero percent.
func (e *Engine) Evaluate(kind types.ContentKind, p types.Payload, started bool) (Signal, error) {
	h, ok := e.handlers[kind]
	if !ok {
		return Signal{}, types.NewError(types.CodeValidation, "rules.evaluate", fmt.Sprintf("unsupported kind %q", kind), nil)
	}
	completed, pct := h.Evaluate(p, e.thresholds)
	pct = clampPercent(pct)
	if completed {
		return Signal{Status: types.StatusCompleted, Percentage: pct, Completed: true}, nil
	}
	if started || pct > 0 {
		return Signal{Status: types.StatusInProgress, Percentage: pct}, nil
	}
	return Signal{Status: types.StatusNotStarted, Percentage: pct}, nil
}

func (e *Engine) Initial(kind types.ContentKind) types.Payload {
	h, ok := e.handlers[kind]
	if !ok || h.Initial == nil {
		return types.Payload{}
	}
	return h.Initial()
}

// ResumeFields returns the subset of p that locates a learner inside the content.
func (e *Engine) ResumeFields(kind types.ContentKind, p types.Payload) types.Payload {
	out := types.Payload{}
	h, ok := e.handlers[kind]
	if !ok {
		return out
	}
	for _, key := range h.Resume {
		if v, present := p[key]; present {
			out[key] = v
		}
	}
	return out
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
