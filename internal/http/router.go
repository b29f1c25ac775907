package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursetrack-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursetrack-backend/internal/http/middleware"
	"github.com/yungbote/coursetrack-backend/internal/observability"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	ProgressHandler *httpH.ProgressHandler
	SummaryHandler  *httpH.SummaryHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	} else {
		protected.Use(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "authentication is not configured", "code": "unauthorized"},
			})
		})
	}

	// Learner progress
	if h := cfg.ProgressHandler; h != nil {
		item := protected.Group("/courses/:course_id/items/:occurrence_kind/:occurrence_id")
		item.POST("/start", h.StartContent)
		item.PATCH("/progress", h.RecordProgress)
		item.GET("/progress", h.GetContentProgress)
		item.POST("/sync", h.SyncSharedContent)

		protected.POST("/courses/:course_id/progress/recompute", h.RecomputeCourseProgress)
		protected.GET("/courses/:course_id/resume", h.GetResumePosition)
		protected.PUT("/courses/:course_id/resume", h.SetResumePosition)
	}

	// Reporting
	if h := cfg.SummaryHandler; h != nil {
		admin := protected.Group("/admin", httpMW.RequireAdmin())
		admin.GET("/courses/:course_id/summary", h.CourseCompletionSummary)
		admin.POST("/courses/summary", h.CoursesCompletionSummary)
	}

	return r
}
