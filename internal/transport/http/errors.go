package http

import (
	"net/http"

	"tenant-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Message string `json:"message"`
}

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail renders err and aborts the request. Internal errors are logged and answered
// with a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(domain.KindOf(err))
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Message: domain.MessageOf(err)})
}

// ok wraps a payload in the {data: ...} envelope.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}
