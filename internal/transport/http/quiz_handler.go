package http

import (
	"context"
	"net/http"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type createQuizRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    *int   `json:"duration"`
}

type updateQuizRequest struct {
	Title       optional[string] `json:"title"`
	Description optional[string] `json:"description"`
	Duration    optional[*int]   `json:"duration"`
}

type createQuestionRequest struct {
	Type    string        `json:"type"`
	Text    string        `json:"text"`
	Options []string      `json:"options"`
	Answer  domain.Answer `json:"answer"`
	Points  int           `json:"points"`
}

type updateQuestionRequest struct {
	Type    optional[string]        `json:"type"`
	Text    optional[string]        `json:"text"`
	Options optional[[]string]      `json:"options"`
	Answer  optional[domain.Answer] `json:"answer"`
	Points  optional[int]           `json:"points"`
}

func (r updateQuizRequest) patch() app.QuizPatch {
	var p app.QuizPatch
	if r.Title.Set {
		p.Title = &r.Title.Value
	}
	if r.Description.Set {
		p.Description = &r.Description.Value
	}
	if r.Duration.Set {
		p.Duration = r.Duration.Value
		p.SetDuration = true
	}
	return p
}

func (r updateQuestionRequest) patch() app.QuestionPatch {
	var p app.QuestionPatch
	if r.Type.Set {
		t := domain.QuestionType(r.Type.Value)
		p.Type = &t
	}
	if r.Text.Set {
		p.Text = &r.Text.Value
	}
	if r.Options.Set {
		p.Options = r.Options.Value
		p.SetOptions = true
	}
	if r.Answer.Set {
		p.Answer = &r.Answer.Value
	}
	if r.Points.Set {
		p.Points = &r.Points.Value
	}
	return p
}

func (h *Handler) createQuiz(c *gin.Context) {
	var req createQuizRequest
	if !h.bind(c, &req) {
		return
	}
	view, err := h.quizzes.Create(c.Request.Context(), tenant(c), app.QuizInput{
		Title:       req.Title,
		Description: req.Description,
		Duration:    req.Duration,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"quiz": toQuizDTO(view)})
}

func (h *Handler) listQuizzes(c *gin.Context) {
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.quizzes.List(c.Request.Context(), tenant(c), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("quizzes", result, toQuizDTO))
}

func (h *Handler) updateQuiz(c *gin.Context) {
	ids, valid := h.ids(c, "quizId")
	if !valid {
		return
	}
	var req updateQuizRequest
	if !h.bind(c, &req) {
		return
	}
	view, err := h.quizzes.Update(c.Request.Context(), tenant(c), ids[0], req.patch())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"quiz": toQuizDTO(view)})
}

func (h *Handler) getQuiz(c *gin.Context) {
	h.quizAction(c, h.quizzes.Get)
}

func (h *Handler) publishQuiz(c *gin.Context) {
	h.quizAction(c, h.quizzes.Publish)
}

func (h *Handler) draftQuiz(c *gin.Context) {
	h.quizAction(c, h.quizzes.Draft)
}

func (h *Handler) archiveQuiz(c *gin.Context) {
	h.quizAction(c, h.quizzes.Archive)
}

type quizFunc func(ctx context.Context, tenantID, quizID string) (domain.QuizView, error)

func (h *Handler) quizAction(c *gin.Context, fn quizFunc) {
	ids, valid := h.ids(c, "quizId")
	if !valid {
		return
	}
	view, err := fn(c.Request.Context(), tenant(c), ids[0])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"quiz": toQuizDTO(view)})
}

func (h *Handler) createQuestion(c *gin.Context) {
	ids, valid := h.ids(c, "quizId")
	if !valid {
		return
	}
	var req createQuestionRequest
	if !h.bind(c, &req) {
		return
	}
	question, err := h.questions.Create(c.Request.Context(), tenant(c), ids[0], app.QuestionInput{
		Type:    domain.QuestionType(req.Type),
		Text:    req.Text,
		Options: req.Options,
		Answer:  req.Answer,
		Points:  req.Points,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"question": toQuestionDTO(question)})
}

func (h *Handler) listQuestions(c *gin.Context) {
	ids, valid := h.ids(c, "quizId")
	if !valid {
		return
	}
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.questions.List(c.Request.Context(), tenant(c), ids[0], page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("questions", result, toQuestionDTO))
}

func (h *Handler) updateQuestion(c *gin.Context) {
	ids, valid := h.ids(c, "quizId", "questionId")
	if !valid {
		return
	}
	var req updateQuestionRequest
	if !h.bind(c, &req) {
		return
	}
	question, err := h.questions.Update(c.Request.Context(), tenant(c), ids[0], ids[1], req.patch())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"question": toQuestionDTO(question)})
}

func (h *Handler) deleteQuestion(c *gin.Context) {
	ids, valid := h.ids(c, "quizId", "questionId")
	if !valid {
		return
	}
	if _, err := h.questions.Delete(c.Request.Context(), tenant(c), ids[0], ids[1]); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getQuestion(c *gin.Context) {
	ids, valid := h.ids(c, "quizId", "questionId")
	if !valid {
		return
	}
	question, err := h.questions.Get(c.Request.Context(), tenant(c), ids[0], ids[1])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"question": toQuestionDTO(question)})
}

func (h *Handler) listVersions(c *gin.Context) {
	ids, valid := h.ids(c, "quizId")
	if !valid {
		return
	}
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.versions.List(c.Request.Context(), tenant(c), ids[0], page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("versions", result, func(v domain.QuizVersion) versionDTO {
		return toVersionDTO(v, true)
	}))
}

func (h *Handler) getVersion(c *gin.Context) {
	ids, valid := h.ids(c, "quizId", "versionId")
	if !valid {
		return
	}
	version, err := h.versions.Get(c.Request.Context(), tenant(c), ids[0], ids[1])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"version": toVersionDTO(version, true)})
}

func (h *Handler) listVersionQuestions(c *gin.Context) {
	ids, valid := h.ids(c, "quizId", "versionId")
	if !valid {
		return
	}
	page, valid := h.page(c)
	if !valid {
		return
	}
	result, err := h.versions.Questions(c.Request.Context(), tenant(c), ids[0], ids[1], page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list("questions", result, toQuestionDTO))
}

func (h *Handler) getVersionQuestion(c *gin.Context) {
	ids, valid := h.ids(c, "quizId", "versionId", "questionId")
	if !valid {
		return
	}
	question, err := h.versions.Question(c.Request.Context(), tenant(c), ids[0], ids[1], ids[2])
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"question": toQuestionDTO(question)})
}
