package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/coursetrack-backend/internal/http/handlers"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type Handlers struct {
	Progress *httpH.ProgressHandler
	Summary  *httpH.SummaryHandler
	Health   *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if sqlDB, err := db.DB(); err == nil {
		pinger = sqlDB
	}
	return Handlers{
		Progress: httpH.NewProgressHandler(services.Usecases),
		Summary:  httpH.NewSummaryHandler(services.Usecases),
		Health:   httpH.NewHealthHandler(pinger),
	}
}
