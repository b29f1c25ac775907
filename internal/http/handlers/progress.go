package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/http/response"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/aggregate"
	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
)

// ProgressService is the learner-facing slice of progress.Usecases.
type ProgressService interface {
	StartContent(ctx context.Context, scope ctxutil.Scope, ref progress.ItemRef) (*progress.ProgressOutput, error)
	RecordProgress(ctx context.Context, scope ctxutil.Scope, ref progress.ItemRef, fields map[string]any) (*progress.ProgressOutput, error)
	GetContentProgress(ctx context.Context, scope ctxutil.Scope, ref progress.ItemRef) (*progress.ContentView, error)
	SyncSharedContent(ctx context.Context, scope ctxutil.Scope, ref progress.ItemRef) (*progress.ProgressOutput, error)
	RecomputeCourseProgress(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) (*types.CourseCompletion, error)
	GetResumePosition(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID) (*types.ResumeData, error)
	SetResumePosition(ctx context.Context, scope ctxutil.Scope, courseID uuid.UUID, in aggregate.ResumeInput) (*types.CourseProgress, error)
}

type ProgressHandler struct {
	svc ProgressService
}

func NewProgressHandler(svc ProgressService) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

func requestScope(c *gin.Context) (ctxutil.Scope, bool) {
	scope, ok := ctxutil.GetScope(c.Request.Context())
	if !ok || scope.Validate() != nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", ctxutil.ErrMissingScope)
		return ctxutil.Scope{}, false
	}
	return scope, true
}

func courseParam(c *gin.Context) (uuid.UUID, bool) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return uuid.Nil, false
	}
	return courseID, true
}

func itemParams(c *gin.Context) (progress.ItemRef, bool) {
	courseID, ok := courseParam(c)
	if !ok {
		return progress.ItemRef{}, false
	}
	kind, err := types.ParseOccurrenceKind(c.Param("occurrence_kind"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_occurrence_kind", err)
		return progress.ItemRef{}, false
	}
	occID, err := uuid.Parse(c.Param("occurrence_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_occurrence_id", err)
		return progress.ItemRef{}, false
	}
	return progress.ItemRef{CourseID: courseID, Occurrence: types.Occurrence{Kind: kind, ID: occID}}, true
}

func respondOutput(c *gin.Context, out *progress.ProgressOutput, err error) {
	if out == nil {
		if err == nil {
			response.RespondOK(c, gin.H{})
			return
		}
		response.RespondProgressError(c, err)
		return
	}
	response.RespondResult(c, out, err)
}

// POST /api/courses/:course_id/items/:occurrence_kind/:occurrence_id/start
func (h *ProgressHandler) StartContent(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	ref, ok := itemParams(c)
	if !ok {
		return
	}
	out, err := h.svc.StartContent(c.Request.Context(), scope, ref)
	respondOutput(c, out, err)
}

// PATCH /api/courses/:course_id/items/:occurrence_kind/:occurrence_id/progress
func (h *ProgressHandler) RecordProgress(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	ref, ok := itemParams(c)
	if !ok {
		return
	}
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.svc.RecordProgress(c.Request.Context(), scope, ref, fields)
	respondOutput(c, out, err)
}

// GET /api/courses/:course_id/items/:occurrence_kind/:occurrence_id/progress
func (h *ProgressHandler) GetContentProgress(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	ref, ok := itemParams(c)
	if !ok {
		return
	}
	view, err := h.svc.GetContentProgress(c.Request.Context(), scope, ref)
	if err != nil {
		response.RespondProgressError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/courses/:course_id/items/:occurrence_kind/:occurrence_id/sync
func (h *ProgressHandler) SyncSharedContent(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	ref, ok := itemParams(c)
	if !ok {
		return
	}
	out, err := h.svc.SyncSharedContent(c.Request.Context(), scope, ref)
	respondOutput(c, out, err)
}

// POST /api/courses/:course_id/progress/recompute
func (h *ProgressHandler) RecomputeCourseProgress(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	course, err := h.svc.RecomputeCourseProgress(c.Request.Context(), scope, courseID)
	if err != nil {
		response.RespondProgressError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

// GET /api/courses/:course_id/resume
func (h *ProgressHandler) GetResumePosition(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	resume, err := h.svc.GetResumePosition(c.Request.Context(), scope, courseID)
	if err != nil {
		response.RespondProgressError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"resume": resume})
}

type resumeRequest struct {
	ModuleID       *uuid.UUID    `json:"module_id"`
	OccurrenceKind string        `json:"occurrence_kind" binding:"required"`
	OccurrenceID   uuid.UUID     `json:"occurrence_id" binding:"required"`
	Payload        types.Payload `json:"payload"`
}

// PUT /api/courses/:course_id/resume
func (h *ProgressHandler) SetResumePosition(c *gin.Context) {
	scope, ok := requestScope(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	kind, err := types.ParseOccurrenceKind(req.OccurrenceKind)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_occurrence_kind", err)
		return
	}
	in := aggregate.ResumeInput{
		ModuleID:   req.ModuleID,
		Occurrence: types.Occurrence{Kind: kind, ID: req.OccurrenceID},
		Payload:    req.Payload,
	}
	cp, err := h.svc.SetResumePosition(c.Request.Context(), scope, courseID, in)
	if err != nil {
		response.RespondProgressError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course_progress": cp})
}
