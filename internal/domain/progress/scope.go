package progress

import (
	"github.com/google/uuid"

	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
)

// RequireScope rejects calls without a tenant and user.
func RequireScope(op string, s ctxutil.Scope) error {
	if err := s.Validate(); err != nil {
		return NewError(CodeForbidden, op, err.Error(), err)
	}
	return nil
}

// RequireTenant rejects calls whose scope belongs to a different tenant than clientID.
func RequireTenant(op string, s ctxutil.Scope, clientID uuid.UUID) error {
	if err := RequireScope(op, s); err != nil {
		return err
	}
	if clientID != s.ClientID {
		return NewError(CodeForbidden, op, "tenant mismatch", nil)
	}
	return nil
}

// ValidateItem checks that an item is addressable and owned by the scope's tenant.
func ValidateItem(op string, s ctxutil.Scope, item StructureItem) error {
	if err := RequireTenant(op, s, item.ClientID); err != nil {
		return err
	}
	var bad []FieldError
	if item.CourseID == uuid.Nil {
		bad = append(bad, FieldError{Field: "course_id", Reason: "required"})
	}
	if err := item.Occurrence.Validate(); err != nil {
		bad = append(bad, FieldError{Field: "occurrence", Reason: err.Error()})
	}
	if !item.ContentKind.Valid() {
		bad = append(bad, FieldError{Field: "content_kind", Reason: "unsupported content kind"})
	}
	if len(bad) > 0 {
		return ValidationError(op, bad)
	}
	return nil
}
