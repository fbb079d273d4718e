package http

import (
	"net/http"

	"tenant-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

// issueToken accepts either a JSON or a form-encoded body.
func (h *Handler) issueToken(c *gin.Context) {
	var req tokenRequest
	if c.ContentType() == gin.MIMEPOSTForm {
		if err := c.ShouldBind(&req); err != nil {
			h.fail(c, domain.Invalid("Invalid request body: %s", err.Error()))
			return
		}
	} else if !h.bind(c, &req) {
		return
	}
	token, err := h.auth.IssueToken(c.Request.Context(), req.GrantType, req.ClientID, req.ClientSecret)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenDTO(token))
}
