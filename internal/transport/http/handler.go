package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Quizzes   *app.QuizService
	Questions *app.QuestionService
	Versions  *app.VersionService
	Attempts  *app.AttemptService
	Auth      *app.Authenticator
}

// Handler serves the REST API.
type Handler struct {
	quizzes   *app.QuizService
	questions *app.QuestionService
	versions  *app.VersionService
	attempts  *app.AttemptService
	auth      *app.Authenticator
	logger    *slog.Logger
}

func NewHandler(s Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		quizzes:   s.Quizzes,
		questions: s.Questions,
		versions:  s.Versions,
		attempts:  s.Attempts,
		auth:      s.Auth,
		logger:    logger.With("component", "http"),
	}
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(s Services, logger *slog.Logger) *gin.Engine {
	h := NewHandler(s, logger)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))
	h.Register(r)
	return r
}

// Register mounts the routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/oauth/token", h.issueToken)

	api := r.Group("/api", h.authenticate())

	api.POST("/quizzes", h.createQuiz)
	api.GET("/quizzes", h.listQuizzes)
	api.PATCH("/quizzes/:quizId", h.updateQuiz)
	api.GET("/quizzes/:quizId", h.getQuiz)
	api.POST("/quizzes/:quizId/publish", h.publishQuiz)
	api.POST("/quizzes/:quizId/draft", h.draftQuiz)
	api.POST("/quizzes/:quizId/archive", h.archiveQuiz)

	api.POST("/quizzes/:quizId/questions", h.createQuestion)
	api.GET("/quizzes/:quizId/questions", h.listQuestions)
	api.PATCH("/quizzes/:quizId/questions/:questionId", h.updateQuestion)
	api.DELETE("/quizzes/:quizId/questions/:questionId", h.deleteQuestion)
	api.GET("/quizzes/:quizId/questions/:questionId", h.getQuestion)

	api.GET("/quizzes/:quizId/versions", h.listVersions)
	api.GET("/quizzes/:quizId/versions/:versionId", h.getVersion)
	api.GET("/quizzes/:quizId/versions/:versionId/questions", h.listVersionQuestions)
	api.GET("/quizzes/:quizId/versions/:versionId/questions/:questionId", h.getVersionQuestion)

	api.POST("/users/:userId/quizzes/:quizId/start", h.startAttempt)
	api.GET("/users/:userId/quizzes/:quizId/attempts", h.listQuizAttempts)
	api.GET("/users/:userId/attempts", h.listAttempts)
	api.GET("/users/:userId/attempts/:attemptId", h.getAttempt)
	api.POST("/users/:userId/attempts/:attemptId/end", h.endAttempt)
	api.GET("/users/:userId/attempts/:attemptId/questions", h.listAttemptQuestions)
	api.GET("/users/:userId/attempts/:attemptId/questions/:questionId", h.getAttemptQuestion)
	api.POST("/users/:userId/attempts/:attemptId/questions/:questionId/submit", h.submitAnswer)
	api.GET("/users/:userId/attempts/:attemptId/responses", h.listResponses)
	api.GET("/users/:userId/attempts/:attemptId/responses/:responseId", h.getResponse)
	api.GET("/users/:userId/attempts/:attemptId/analysis", h.getAnalysis)

	r.NoRoute(func(c *gin.Context) {
		h.fail(c, domain.NotFound("The requested endpoint '%s' was not found.", c.Request.URL.Path))
	})
}

// ids reads the named path parameters, which must all be UUIDs. They are returned in
// canonical lower-case hyphenated form so one id cannot be spelled several ways.
func (h *Handler) ids(c *gin.Context, names ...string) ([]string, bool) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		id, err := uuid.Parse(c.Param(name))
		if err != nil {
			h.fail(c, domain.Invalid("Invalid %q: It must be a valid UUID.", name))
			return nil, false
		}
		out = append(out, id.String())
	}
	return out, true
}

// page reads ?page=&limit=; absent values keep the defaults.
func (h *Handler) page(c *gin.Context) (domain.PageRequest, bool) {
	var req domain.PageRequest
	params := []struct {
		name string
		dst  *int
	}{{"page", &req.Page}, {"limit", &req.Limit}}
	for _, p := range params {
		name, dst := p.name, p.dst
		raw, present := c.GetQuery(name)
		if !present {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(c, domain.Invalid("Invalid %q: It must be a positive integer.", name))
			return domain.PageRequest{}, false
		}
		*dst = n
	}
	return req, true
}

// bind decodes the JSON body into v. An empty body decodes as {}.
func (h *Handler) bind(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		h.fail(c, domain.Invalid("Invalid %q: It has the wrong type.", typeErr.Field))
		return false
	}
	h.fail(c, domain.Invalid("Invalid request body: %s", err.Error()))
	return false
}

// optional records whether a JSON field was present, null included.
type optional[T any] struct {
	Set   bool
	Value T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}
