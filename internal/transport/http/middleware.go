package http

import (
	"log/slog"
	"strings"
	"time"

	"tenant-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

const clientKey = "client"

// authenticate resolves the bearer token to an active client. The client's id is the
// tenant every downstream call is scoped to.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			h.fail(c, domain.Invalid("Missing authorization header."))
			return
		}
		scheme, token, found := strings.Cut(header, " ")
		if !found || scheme != "Bearer" || token == "" {
			h.fail(c, domain.Unauthorized("Invalid or missing authorization token."))
			return
		}
		client, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(clientKey, client)
		c.Next()
	}
}

// tenant returns the tenant id of the authenticated client.
func tenant(c *gin.Context) string {
	if v, ok := c.Get(clientKey); ok {
		if client, ok := v.(domain.Client); ok {
			return client.ID
		}
	}
	return ""
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if id := tenant(c); id != "" {
			attrs = append(attrs, "tenant_id", id)
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", attrs...)
		case c.Writer.Status() >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}
