package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/coursetrack-backend/internal/http"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *gin.Engine {
	log.Info("Wiring router...")
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		Metrics:         metrics,
		AuthMiddleware:  middleware.Auth,
		ProgressHandler: handlers.Progress,
		SummaryHandler:  handlers.Summary,
		HealthHandler:   handlers.Health,
	})
}
