package ctxutil

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const RoleAdmin = "admin"

var ErrMissingScope = errors.New("missing tenant scope")

// Scope identifies the tenant and acting user of a call. Engine code receives it as an
// explicit argument; the context helpers below exist only for the HTTP edge.
type Scope struct {
	ClientID uuid.UUID `json:"client_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role,omitempty"`
}

func (s Scope) Validate() error {
	if s.ClientID == uuid.Nil || s.UserID == uuid.Nil {
		return ErrMissingScope
	}
	return nil
}

func (s Scope) IsAdmin() bool { return s.Role == RoleAdmin }

// ForUser returns a copy of s acting on behalf of another user of the same tenant.
func (s Scope) ForUser(userID uuid.UUID) Scope {
	s.UserID = userID
	return s
}

type scopeKey struct{}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func GetScope(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}
