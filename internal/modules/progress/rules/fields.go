package rules

import (
	"encoding/json"
	"fmt"
	"math"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
)

// FieldTimeSpent is accepted for every kind and accumulates instead of replacing.
const FieldTimeSpent = "time_spent_seconds"

type FieldType int

const (
	FieldNumber FieldType = iota
	FieldBool
	FieldString
)

func (t FieldType) String() string {
	switch t {
	case FieldNumber:
		return "number"
	case FieldBool:
		return "boolean"
	default:
		return "string"
	}
}

// Field is one accepted update key.
type Field struct {
	Type FieldType
	// Min and Max bound numbers when Max > Min.
	Min, Max float64
	// Enum restricts strings when non-empty.
	Enum []string
}

func number() Field                { return Field{Type: FieldNumber, Min: 0, Max: math.MaxFloat64} }
func percent() Field               { return Field{Type: FieldNumber, Min: 0, Max: 100} }
func flag() Field                  { return Field{Type: FieldBool} }
func text() Field                  { return Field{Type: FieldString} }
func oneOf(values ...string) Field { return Field{Type: FieldString, Enum: values} }

// check normalizes v for the field or returns a reason it is rejected.
func (f Field) check(v any) (any, string) {
	switch f.Type {
	case FieldNumber:
		n, ok := toFloat(v)
		if !ok {
			return nil, "must be a number"
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, "must be finite"
		}
		if f.Max > f.Min && (n < f.Min || n > f.Max) {
			if f.Max == math.MaxFloat64 {
				return nil, fmt.Sprintf("must be >= %v", f.Min)
			}
			return nil, fmt.Sprintf("must be within %v..%v", f.Min, f.Max)
		}
		return n, ""
	case FieldBool:
		b, ok := v.(bool)
		if !ok {
			return nil, "must be a boolean"
		}
		return b, ""
	default:
		s, ok := v.(string)
		if !ok {
			return nil, "must be a string"
		}
		if len(f.Enum) > 0 {
			for _, e := range f.Enum {
				if s == e {
					return s, ""
				}
			}
			return nil, fmt.Sprintf("must be one of %v", f.Enum)
		}
		return s, ""
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Update is a validated progress update split into payload fields and additive time.
type Update struct {
	Fields    types.Payload
	TimeSpent int
}
