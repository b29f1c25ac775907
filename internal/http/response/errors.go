package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/coursetrack-backend/internal/domain/progress"
	"github.com/yungbote/coursetrack-backend/internal/platform/apierr"
)

// StatusFor maps a progress error code onto an HTTP status.
func StatusFor(code types.ErrorCode) int {
	switch code {
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeValidation:
		return http.StatusBadRequest
	case types.CodeStorage:
		return http.StatusServiceUnavailable
	case types.CodePartialSync:
		return http.StatusMultiStatus
	case types.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondProgressError writes err using its progress code. Validation errors carry the
// rejected fields. An *apierr.Error keeps its own status and code.
func RespondProgressError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	code := types.CodeOf(err)
	if code == "" {
		code = types.CodeInternal
	}
	body := APIError{Message: err.Error(), Code: string(code)}
	if fields := types.FieldsOf(err); len(fields) > 0 {
		body.Fields = fields
	}
	abortWith(c, StatusFor(code), body)
}

// PartialSync is the 207 body: the work that succeeded plus the failed targets.
type PartialSync struct {
	Result any       `json:"result"`
	Error  SyncError `json:"error"`
}

type SyncError struct {
	Message   string                `json:"message"`
	Code      string                `json:"code"`
	Source    types.Occurrence      `json:"source"`
	Failures  []types.TargetFailure `json:"failures"`
	Succeeded []types.Occurrence    `json:"succeeded"`
}

// RespondResult writes payload with 200, or with 207 when err is a partial sync. Any
// other error is written through RespondProgressError.
func RespondResult(c *gin.Context, payload any, err error) {
	if err == nil {
		RespondOK(c, payload)
		return
	}
	var partial *types.PartialSyncError
	if payload != nil && errors.As(err, &partial) {
		c.JSON(http.StatusMultiStatus, PartialSync{
			Result: payload,
			Error: SyncError{
				Message:   partial.Error(),
				Code:      string(types.CodePartialSync),
				Source:    partial.Source,
				Failures:  partial.Failures,
				Succeeded: partial.Succeeded,
			},
		})
		return
	}
	RespondProgressError(c, err)
}
