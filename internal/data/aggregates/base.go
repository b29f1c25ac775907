package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

const defaultMaxAttempts = 3

type BaseDeps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	Runner      TxRunner
	Observer    Observer
	MaxAttempts int
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = GormTx(d.DB)
	}
	if d.Observer == nil {
		d.Observer = quietObserver{}
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = defaultMaxAttempts
	}
	return d
}

// Writer runs transactional writes with conflict retry and reports each one to its Observer.
type Writer struct {
	deps BaseDeps
}

func NewWriter(deps BaseDeps) *Writer {
	return &Writer{deps: deps.withDefaults()}
}

// Write runs fn in a transaction. Unique-key conflicts and transient failures re-run fn
// from the start, up to MaxAttempts. The returned error is mapped through MapError.
func (w *Writer) Write(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error {
	return executeWrite(ctx, w.deps, op, fn)
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "progress.write"
	}

	var err error
	for attempt := 1; attempt <= deps.MaxAttempts; attempt++ {
		err = deps.Runner.InTx(ctx, fn)
		if err == nil || ctx.Err() != nil {
			break
		}
		retrying := (IsConflict(err) || IsRetryable(err)) && attempt < deps.MaxAttempts
		deps.Observer.AttemptFailed(op, attempt, err, retrying)
		if !retrying {
			break
		}
		if deps.Log != nil {
			deps.Log.Debug("retrying write", "op", op, "attempt", attempt, "error", err)
		}
	}
	mapped := MapError(op, err)
	deps.Observer.Finished(op, writeStatus(mapped), time.Since(start))
	return mapped
}

func writeStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(progress.CodeOf(err)))
	if code == "" {
		return "failure"
	}
	return code
}
