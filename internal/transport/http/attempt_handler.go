package http

import (
	"net/http"

	"tenant-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type submitAnswerRequest struct {
	Answer domain.Answer `json:"answer"`
}

func (h *Handler) startAttempt(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "quizId")
	if !valid {
		return
	}
	view, err := h.attempts.Start(c.Request.Context(), tenant(c), ids[0], ids[1])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"attempt": toAttemptDTO(view)})
}

func (h *Handler) listQuizAttempts(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "quizId")
	if !valid {
		return
	}
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.attempts.ListForQuiz(c.Request.Context(), tenant(c), ids[0], ids[1], page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("attempts", result, toAttemptDTO))
}

func (h *Handler) listAttempts(c *gin.Context) {
	ids, valid := h.ids(c, "userId")
	if !valid {
		return
	}
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.attempts.List(c.Request.Context(), tenant(c), ids[0], page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("attempts", result, toAttemptDTO))
}

func (h *Handler) getAttempt(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId")
	if !valid {
		return
	}
	view, err := h.attempts.Get(c.Request.Context(), tenant(c), ids[0], ids[1])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"attempt": toAttemptDTO(view)})
}

func (h *Handler) endAttempt(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId")
	if !valid {
		return
	}
	view, err := h.attempts.End(c.Request.Context(), tenant(c), ids[0], ids[1])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"attempt": toAttemptDTO(view)})
}

func (h *Handler) listAttemptQuestions(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId")
	if !valid {
		return
	}
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.attempts.Questions(c.Request.Context(), tenant(c), ids[0], ids[1], page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("questions", result, toStrippedQuestionDTO))
}

func (h *Handler) getAttemptQuestion(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId", "questionId")
	if !valid {
		return
	}
	question, err := h.attempts.Question(c.Request.Context(), tenant(c), ids[0], ids[1], ids[2])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"question": toStrippedQuestionDTO(question)})
}

func (h *Handler) submitAnswer(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId", "questionId")
	if !valid {
		return
	}
	var req submitAnswerRequest
	if !h.bind(c, &req) {
		return
	}
	view, err := h.attempts.SubmitAnswer(c.Request.Context(), tenant(c), ids[0], ids[1], ids[2], req.Answer)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"response": toResponseDTO(view)})
}

func (h *Handler) listResponses(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId")
	if !valid {
		return
	}
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.attempts.Responses(c.Request.Context(), tenant(c), ids[0], ids[1], page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("responses", result, toResponseDTO))
}

func (h *Handler) getResponse(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId", "responseId")
	if !valid {
		return
	}
	view, err := h.attempts.Response(c.Request.Context(), tenant(c), ids[0], ids[1], ids[2])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"response": toResponseDTO(view)})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	ids, valid := h.ids(c, "userId", "attemptId")
	if !valid {
		return
	}
	analysis, err := h.attempts.Analysis(c.Request.Context(), tenant(c), ids[0], ids[1])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"analysis": toAnalysisDTO(analysis)})
}
