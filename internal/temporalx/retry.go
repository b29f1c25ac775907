package temporalx

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Backoff is the doubling delay before the given attempt, clamped to cfg.DialBackoffMax.
func (c Config) Backoff(attempt int) time.Duration {
	d := c.DialBackoff
	if d <= 0 {
		d = 250 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.DialBackoffMax > 0 && d >= c.DialBackoffMax {
			return c.DialBackoffMax
		}
	}
	return d
}

// Retry calls op until it succeeds, returns a permanent error, ctx ends, or
// maxWait has passed since the first call. op reports whether its error is worth retrying.
func Retry(ctx context.Context, cfg Config, maxWait time.Duration, op func(attempt int) (retry bool, err error)) error {
	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		retry, err := op(attempt)
		if err == nil || !retry {
			return err
		}
		if maxWait <= 0 || time.Now().After(deadline) {
			return err
		}
		t := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

// Transient reports whether a frontend RPC error is likely to clear on its own.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}
