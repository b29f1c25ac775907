package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
)

// APIError is the body of every non-2xx reply. RequestID echoes the
// X-Request-Id header so a learner-facing error can be matched to its log line.
type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Fields    any    `json:"fields,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError aborts the chain with status and a coded error body.
func RespondError(c *gin.Context, status int, code string, err error) {
	body := APIError{Message: http.StatusText(status), Code: code}
	if err != nil {
		body.Message = err.Error()
	}
	abortWith(c, status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func abortWith(c *gin.Context, status int, body APIError) {
	body.RequestID = ctxutil.CorrelationFrom(c.Request.Context()).RequestID
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}
