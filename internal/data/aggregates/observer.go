package aggregates

import (
	"time"

	"github.com/yungbote/coursetrack-backend/internal/observability"
)

// Observer is told about every failed attempt and about the final outcome of a write.
type Observer interface {
	AttemptFailed(op string, attempt int, err error, retrying bool)
	Finished(op, status string, took time.Duration)
}

type quietObserver struct{}

func (quietObserver) AttemptFailed(string, int, error, bool) {}
func (quietObserver) Finished(string, string, time.Duration) {}

// MetricsObserver reports writes to the storage series of m. A nil m observes nothing.
func MetricsObserver(m *observability.Metrics) Observer {
	if m == nil {
		return quietObserver{}
	}
	return metricsObserver{m: m}
}

type metricsObserver struct {
	m *observability.Metrics
}

func (o metricsObserver) AttemptFailed(op string, _ int, err error, retrying bool) {
	if IsConflict(err) {
		o.m.IncStorageConflict(op)
	}
	if retrying {
		o.m.IncStorageRetry(op)
	}
}

func (o metricsObserver) Finished(op, status string, took time.Duration) {
	o.m.ObserveStorageOperation(op, status, took)
}
