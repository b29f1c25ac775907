package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/http/response"
	"github.com/yungbote/coursetrack-backend/internal/platform/apierr"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
)

// SummaryService is the reporting slice of progress.Usecases.
type SummaryService interface {
	CourseCompletionSummary(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, filters types.SummaryFilters) (*types.CourseSummary, error)
	CoursesCompletionSummary(ctx context.Context, scope ctxutil.Scope, courseIDs []uuid.UUID, filters types.SummaryFilters) ([]*types.CourseSummary, error)
}

type SummaryHandler struct {
	svc SummaryService
}

func NewSummaryHandler(svc SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

// GET /api/admin/courses/:course_id/summary?status=&active_from=&active_to=&dimensions[key]=value
func (h *SummaryHandler) CourseCompletionSummary(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	filters, err := filtersFromQuery(c)
	if err != nil {
		response.RespondProgressError(c, err)
		return
	}
	summary, err := h.svc.CourseCompletionSummary(c.Request.Context(), scope, courseID, filters)
	if err != nil {
		response.RespondProgressError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": summary})
}

type filtersRequest struct {
	ActiveFrom *time.Time        `json:"active_from"`
	ActiveTo   *time.Time        `json:"active_to"`
	Dimensions map[string]string `json:"dimensions"`
	Status     string            `json:"status"`
}

type coursesSummaryRequest struct {
	CourseIDs []uuid.UUID    `json:"course_ids" binding:"required,min=1,max=200"`
	Filters   filtersRequest `json:"filters"`
}

// POST /api/admin/courses/summary
func (h *SummaryHandler) CoursesCompletionSummary(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	var req coursesSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	filters := types.SummaryFilters{
		ActiveFrom: req.Filters.ActiveFrom,
		ActiveTo:   req.Filters.ActiveTo,
		Dimensions: req.Filters.Dimensions,
	}
	if req.Filters.Status != "" {
		status, err := types.ParseStatus(req.Filters.Status)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_filters", err)
			return
		}
		filters.Status = status
	}
	summaries, err := h.svc.CoursesCompletionSummary(c.Request.Context(), scope, req.CourseIDs, filters)
	if err != nil {
		response.RespondProgressError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summaries": summaries})
}

func filtersFromQuery(c *gin.Context) (types.SummaryFilters, error) {
	var f types.SummaryFilters
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := types.ParseStatus(raw)
		if err != nil {
			return f, apierr.BadRequest("invalid_filters", err)
		}
		f.Status = status
	}
	var err error
	if f.ActiveFrom, err = queryTime(c, "active_from"); err != nil {
		return f, apierr.BadRequest("invalid_filters", err)
	}
	if f.ActiveTo, err = queryTime(c, "active_to"); err != nil {
		return f, apierr.BadRequest("invalid_filters", err)
	}
	if dims := c.QueryMap("dimensions"); len(dims) > 0 {
		f.Dimensions = dims
	}
	return f, nil
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, raw); err != nil {
			return nil, fmt.Errorf("%s: expected RFC3339 or YYYY-MM-DD", key)
		}
	}
	return &t, nil
}
