package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/coursetrack-backend/internal/data/aggregates"
	"github.com/yungbote/coursetrack-backend/internal/platform/dbctx"
)

// ScriptedTx runs fn without a database. Commit n fails with Script[n-1] when that
// entry is non-nil; once the script runs out every commit succeeds.
type ScriptedTx struct {
	Script []error

	mu        sync.Mutex
	attempts  int
	commits   int
	rollbacks int
}

var _ aggregates.TxRunner = (*ScriptedTx)(nil)

// FailTimes returns a script whose first n commits fail with err.
func FailTimes(err error, n int) *ScriptedTx {
	script := make([]error, n)
	for i := range script {
		script[i] = err
	}
	return &ScriptedTx{Script: script}
}

func (s *ScriptedTx) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	s.mu.Lock()
	s.attempts++
	var commitErr error
	if s.attempts <= len(s.Script) {
		commitErr = s.Script[s.attempts-1]
	}
	s.mu.Unlock()

	err := fn(dbctx.Context{Ctx: ctx})
	if err == nil {
		err = commitErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

// Counts reports attempts, commits and rollbacks so far.
func (s *ScriptedTx) Counts() (attempts, commits, rollbacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, s.commits, s.rollbacks
}
