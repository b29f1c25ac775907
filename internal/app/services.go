package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/coursetrack-backend/internal/data/aggregates"
	"github.com/yungbote/coursetrack-backend/internal/data/repos"
	"github.com/yungbote/coursetrack-backend/internal/jobs/syncretry"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/aggregate"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/report"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/rules"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/store"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/syncer"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type Services struct {
	Rules      *rules.Engine
	Store      *store.Store
	Syncer     *syncer.Syncer
	Aggregator *aggregate.Aggregator
	Rollup     *report.Rollup
	Usecases   progress.Usecases
	// RetryWorker drains the pending-sync ledger. The API process starts it only when
	// Temporal is disabled; the Temporal sweep activity drives it otherwise.
	RetryWorker *syncretry.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r repos.Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	thresholds, err := rules.LoadThresholds(cfg.RulesConfigPath)
	if err != nil {
		return Services{}, fmt.Errorf("load completion thresholds: %w", err)
	}
	engine := rules.New(thresholds)

	writer := aggregates.NewWriter(aggregates.BaseDeps{
		DB:       db,
		Log:      log,
		Observer: aggregates.MetricsObserver(metrics),
	})

	st := store.New(store.Deps{
		DB:      db,
		Log:     log,
		Writer:  writer,
		Records: r.ContentProgress,
		Rules:   engine,
		Locks:   clients.Locks,
		Metrics: metrics,
	})
	sy := syncer.New(syncer.Deps{
		DB:            db,
		Log:           log,
		Writer:        writer,
		Records:       r.ContentProgress,
		Pending:       r.PendingSyncs,
		Structure:     r.Structure,
		Submissions:   syncer.NewBreakerSubmissions(r.Submissions, cfg.Breaker, log, metrics),
		Locks:         clients.Locks,
		Metrics:       metrics,
		TargetTimeout: cfg.SyncTargetTimeout,
		Retry:         cfg.RetryPolicy(),
	})
	agg := aggregate.New(aggregate.Deps{
		DB:        db,
		Log:       log,
		Writer:    writer,
		Records:   r.ContentProgress,
		Courses:   r.CourseProgress,
		Pending:   r.PendingSyncs,
		Structure: r.Structure,
		Rules:     engine,
		Locks:     clients.Locks,
		Metrics:   metrics,
	})
	rollup := report.New(report.Deps{
		Log:         log,
		Population:  r.Enrollments,
		Aggregator:  agg,
		Records:     r.ContentProgress,
		Courses:     r.CourseProgress,
		Metrics:     metrics,
		Concurrency: cfg.ReportConcurrency,
	})

	retryCfg := cfg.SyncRetry
	if cfg.Temporal.Enabled() {
		retryCfg.Runner = "temporal"
	}

	return Services{
		Rules:      engine,
		Store:      st,
		Syncer:     sy,
		Aggregator: agg,
		Rollup:     rollup,
		Usecases: progress.New(progress.UsecasesDeps{
			Log:        log,
			Structure:  r.Structure,
			Store:      st,
			Syncer:     sy,
			Aggregator: agg,
			Rollup:     rollup,
		}),
		RetryWorker: syncretry.NewWorker(log, r.PendingSyncs, sy, retryCfg),
	}, nil
}
