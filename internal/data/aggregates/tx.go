package aggregates

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
)

// TxRunner is the transaction boundary for progress writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

// TxFunc adapts a plain function to TxRunner.
type TxFunc func(ctx context.Context, fn func(dbc dbctx.Context) error) error

func (f TxFunc) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return f(ctx, fn)
}

// GormTx opens one gorm transaction per call; fn's error rolls it back.
func GormTx(db *gorm.DB) TxRunner {
	return TxFunc(func(ctx context.Context, fn func(dbc dbctx.Context) error) error {
		if db == nil {
			return progress.NewError(progress.CodeInternal, "progress.tx", "no database configured", nil)
		}
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	})
}
