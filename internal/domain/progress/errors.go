package progress

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode standardizes progress failure semantics across components.
type ErrorCode string

const (
	CodeNotFound    ErrorCode = "not_found"
	CodeValidation  ErrorCode = "validation"
	CodeStorage     ErrorCode = "storage"
	CodePartialSync ErrorCode = "partial_sync"
	CodeForbidden   ErrorCode = "forbidden"
	CodeInternal    ErrorCode = "internal"
)

// FieldError describes one rejected update field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error is the canonical progress error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Fields  []FieldError
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with a code. A nil err stays nil.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// ValidationError lists every offending field, sorted by name.
func ValidationError(op string, fields []FieldError) error {
	sorted := append([]FieldError(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })
	names := make([]string, 0, len(sorted))
	for _, f := range sorted {
		names = append(names, f.Field)
	}
	return &Error{
		Code:    CodeValidation,
		Op:      strings.TrimSpace(op),
		Message: "invalid fields: " + strings.Join(names, ", "),
		Fields:  sorted,
	}
}

func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(CodeStorage, op, err.Error(), err)
}

func NotFound(op, message string) error {
	return NewError(CodeNotFound, op, message, nil)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of err. A partial sync reports CodePartialSync even though
// its per-target errors carry codes of their own.
func CodeOf(err error) ErrorCode {
	var syncErr *PartialSyncError
	if errors.As(err, &syncErr) {
		return CodePartialSync
	}
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return ""
}

// FieldsOf returns the field errors carried by a validation error.
func FieldsOf(err error) []FieldError {
	var syncErr *PartialSyncError
	if errors.As(err, &syncErr) {
		return nil
	}
	var pErr *Error
	if !errors.As(err, &pErr) {
		return nil
	}
	return pErr.Fields
}

// TargetFailure is one sibling occurrence that could not be synchronised.
type TargetFailure struct {
	Target Occurrence `json:"target"`
	Err    error      `json:"-"`
	Reason string     `json:"reason"`
}

// PartialSyncError is returned when some sibling occurrences failed to synchronise.
// Succeeded lists the targets that were written.
type PartialSyncError struct {
	Source    Occurrence
	Failures  []TargetFailure
	Succeeded []Occurrence
}

func (e *PartialSyncError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Target.String()+": "+f.Reason)
	}
	return fmt.Sprintf("sync from %s: %d of %d targets failed: %s (%s)",
		e.Source, len(e.Failures), len(e.Failures)+len(e.Succeeded), strings.Join(parts, "; "), CodePartialSync)
}

func (e *PartialSyncError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	return out
}
