package ctxutil

import "context"

// Correlation carries the ids that tie a log line or outbound sync call
// back to the request that caused it.
type Correlation struct {
	TraceID   string
	RequestID string
}

// LogFields returns the non-empty ids as logger key/value pairs.
func (c Correlation) LogFields() []interface{} {
	out := make([]interface{}, 0, 4)
	if c.TraceID != "" {
		out = append(out, "trace_id", c.TraceID)
	}
	if c.RequestID != "" {
		out = append(out, "request_id", c.RequestID)
	}
	return out
}

type correlationKey struct{}

func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, c)
}

// CorrelationFrom returns the ids attached to ctx, or the zero value.
func CorrelationFrom(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

// LogFields returns the tenant and user of s as logger key/value pairs.
func (s Scope) LogFields() []interface{} {
	return []interface{}{"client_id", s.ClientID.String(), "user_id", s.UserID.String()}
}
