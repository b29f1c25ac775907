package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/coursetrack-backend/internal/data/aggregates"
)

// FailedAttempt is one AttemptFailed call.
type FailedAttempt struct {
	Op       string
	Attempt  int
	Err      error
	Retrying bool
}

// Recorder keeps every signal a Writer emits.
type Recorder struct {
	mu       sync.Mutex
	failed   []FailedAttempt
	statuses []string
}

var _ aggregates.Observer = (*Recorder)(nil)

func (r *Recorder) AttemptFailed(op string, attempt int, err error, retrying bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, FailedAttempt{Op: op, Attempt: attempt, Err: err, Retrying: retrying})
}

func (r *Recorder) Finished(_ string, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *Recorder) Failed() []FailedAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FailedAttempt(nil), r.failed...)
}

func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// Retries counts failed attempts that were followed by another attempt.
func (r *Recorder) Retries() int {
	n := 0
	for _, f := range r.Failed() {
		if f.Retrying {
			n++
		}
	}
	return n
}
