package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "submission-service",
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// breakerSubmissions guards the submission port. While the breaker is open, mirror calls
// fail fast and the affected targets land in the pending-sync ledger.
type breakerSubmissions struct {
	inner  types.SubmissionService
	latest *gobreaker.CircuitBreaker[*types.AssignmentSubmission]
	mirror *gobreaker.CircuitBreaker[*types.AssignmentSubmission]
}

// NewBreakerSubmissions wraps inner with one circuit breaker per call.
func NewBreakerSubmissions(inner types.SubmissionService, cfg BreakerConfig, log *logger.Logger, metrics *observability.Metrics) types.SubmissionService {
	if inner == nil {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "SubmissionBreaker")
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: cfg.HalfOpenRequests,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
				metrics.SetBreakerState(name, int(to))
			},
		}
	}
	return &breakerSubmissions{
		inner:  inner,
		latest: gobreaker.NewCircuitBreaker[*types.AssignmentSubmission](settings(cfg.Name + ".latest")),
		mirror: gobreaker.NewCircuitBreaker[*types.AssignmentSubmission](settings(cfg.Name + ".mirror")),
	}
}

func (b *breakerSubmissions) LatestAttempt(ctx context.Context, clientID, userID uuid.UUID, o types.Occurrence) (*types.AssignmentSubmission, error) {
	return b.latest.Execute(func() (*types.AssignmentSubmission, error) {
		return b.inner.LatestAttempt(ctx, clientID, userID, o)
	})
}

func (b *breakerSubmissions) MirrorAttempt(ctx context.Context, source *types.AssignmentSubmission, target types.StructureItem) (*types.AssignmentSubmission, error) {
	return b.mirror.Execute(func() (*types.AssignmentSubmission, error) {
		return b.inner.MirrorAttempt(ctx, source, target)
	})
}
