package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/infra/memory"
	"tenant-quiz-service/internal/scheduler"
	"github.com/gin-gonic/gin"
)

type testServer struct {
	router  *gin.Engine
	clients *app.ClientService
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clientStore := memory.NewClientStore()
	registry := app.NewTenantRegistry(memory.NewSchemaFactory())
	auth := app.NewAuthenticator(clientStore, "test-secret", time.Hour)
	s := &testServer{clients: app.NewClientService(clientStore)}
	s.router = NewRouter(Services{
		Quizzes:   app.NewQuizService(registry),
		Questions: app.NewQuestionService(registry),
		Versions:  app.NewVersionService(registry),
		Attempts:  app.NewAttemptService(registry, scheduler.New(memory.NewJobQueue())),
		Auth:      auth,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, creds, err := s.clients.Create(context.Background(), "acme")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	rec := s.do(t, http.MethodPost, "/oauth/token", map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tok tokenDTO
	decode(t, rec, &tok)
	if tok.TokenType != "Bearer" || tok.AccessToken == "" {
		t.Fatalf("unexpected token response %+v", tok)
	}
	s.token = tok.AccessToken
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) api(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, "/api"+path, body, s.token)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	expectStatus(t, rec, status)
	var body errorResponse
	decode(t, rec, &body)
	if body.Message != message {
		t.Fatalf("expected message %q, got %q", message, body.Message)
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/quizzes", nil, "")
	expectMessage(t, rec, http.StatusBadRequest, "Missing authorization header.")

	rec = s.do(t, http.MethodGet, "/api/quizzes", nil, "not-a-jwt")
	expectMessage(t, rec, http.StatusUnauthorized, `Invalid or expired "access_token".`)

	rec = s.do(t, http.MethodPost, "/oauth/token", map[string]string{
		"grant_type": "client_credentials", "client_id": "nope", "client_secret": "nope",
	}, "")
	expectMessage(t, rec, http.StatusUnauthorized, `Invalid "client_id" or "client_secret".`)

	rec = s.do(t, http.MethodGet, "/healthz", nil, "")
	expectStatus(t, rec, http.StatusOK)
}

func TestQuizAndAttemptFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(t, http.MethodPost, "/quizzes", map[string]any{"title": "Capitals", "description": "Europe", "duration": 120})
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		Data struct {
			Quiz quizDTO `json:"quiz"`
		} `json:"data"`
	}
	decode(t, rec, &created)
	quiz := created.Data.Quiz
	if quiz.Status != "drafted" || quiz.Version.Number != 1 || quiz.Version.Duration == nil || *quiz.Version.Duration != 120 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}

	rec = s.api(t, http.MethodPost, "/quizzes/"+quiz.ID+"/questions", map[string]any{
		"type": "multiple-choice", "text": "Capital of Spain", "options": []string{"Madrid", "Rome"}, "answer": "Madrid", "points": 2,
	})
	expectStatus(t, rec, http.StatusCreated)
	var question struct {
		Data struct {
			Question questionDTO `json:"question"`
		} `json:"data"`
	}
	decode(t, rec, &question)
	qid := question.Data.Question.ID

	rec = s.api(t, http.MethodPost, "/quizzes/"+quiz.ID+"/publish", nil)
	expectStatus(t, rec, http.StatusOK)

	user := "5f0c7a8e-3a51-4a0f-bb54-8a7d2e6c1c11"
	rec = s.api(t, http.MethodPost, "/users/"+user+"/quizzes/"+quiz.ID+"/start", nil)
	expectStatus(t, rec, http.StatusCreated)
	var started struct {
		Data struct {
			Attempt attemptDTO `json:"attempt"`
		} `json:"data"`
	}
	decode(t, rec, &started)
	attempt := started.Data.Attempt
	if !attempt.Active || attempt.EndTime == nil || *attempt.EndTime-attempt.StartTime != 120000 {
		t.Fatalf("unexpected attempt %+v", attempt)
	}

	rec = s.api(t, http.MethodGet, "/users/"+user+"/attempts/"+attempt.ID+"/questions", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), `"answer"`) {
		t.Fatalf("expected attempt questions without answer keys: %s", rec.Body.String())
	}

	rec = s.api(t, http.MethodPost, "/users/"+user+"/attempts/"+attempt.ID+"/questions/"+qid+"/submit", map[string]any{"answer": "Madrid"})
	expectStatus(t, rec, http.StatusOK)
	var submitted struct {
		Data struct {
			Response responseDTO `json:"response"`
		} `json:"data"`
	}
	decode(t, rec, &submitted)
	if submitted.Data.Response.Score != 2 {
		t.Fatalf("expected score 2, got %d", submitted.Data.Response.Score)
	}

	rec = s.api(t, http.MethodPost, "/users/"+user+"/attempts/"+attempt.ID+"/questions/"+qid+"/submit", map[string]any{"answer": "Rome"})
	expectMessage(t, rec, http.StatusBadRequest, "This question submitted.")

	rec = s.api(t, http.MethodPost, "/users/"+user+"/attempts/"+attempt.ID+"/end", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.api(t, http.MethodGet, "/users/"+user+"/attempts/"+attempt.ID+"/analysis", nil)
	expectStatus(t, rec, http.StatusOK)
	var analysis struct {
		Data struct {
			Analysis analysisDTO `json:"analysis"`
		} `json:"data"`
	}
	decode(t, rec, &analysis)
	a := analysis.Data.Analysis
	if a.TotalQuestions != 1 || a.TotalAnswers != 1 || a.TotalCorrectAnswers != 1 || a.TotalPoints != 2 || a.TotalScore != 2 {
		t.Fatalf("unexpected analysis %+v", a)
	}

	rec = s.api(t, http.MethodGet, "/users/"+user+"/attempts?page=1&limit=5", nil)
	expectStatus(t, rec, http.StatusOK)
	var listed struct {
		Data struct {
			Attempts   []attemptDTO `json:"attempts"`
			Pagination struct {
				Page      int `json:"page"`
				PageCount int `json:"pageCount"`
			} `json:"pagination"`
		} `json:"data"`
	}
	decode(t, rec, &listed)
	if len(listed.Data.Attempts) != 1 || listed.Data.Pagination.Page != 1 || listed.Data.Pagination.PageCount != 1 {
		t.Fatalf("unexpected attempts listing %+v", listed.Data)
	}
}

func TestQuizEditingEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(t, http.MethodPost, "/quizzes", map[string]any{"title": "T", "description": "D"})
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		Data struct {
			Quiz quizDTO `json:"quiz"`
		} `json:"data"`
	}
	decode(t, rec, &created)
	id := created.Data.Quiz.ID

	rec = s.api(t, http.MethodPatch, "/quizzes/"+id, map[string]any{"title": "New title", "duration": nil})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"title":"New title"`) || !strings.Contains(rec.Body.String(), `"duration":null`) {
		t.Fatalf("unexpected update response %s", rec.Body.String())
	}

	rec = s.api(t, http.MethodPost, "/quizzes", map[string]any{"title": 5, "description": "D"})
	expectMessage(t, rec, http.StatusBadRequest, `Invalid "title": It has the wrong type.`)

	rec = s.api(t, http.MethodPost, "/quizzes/"+id+"/questions", map[string]any{
		"type": "true-false", "text": "Sky is blue", "answer": true, "points": 1,
	})
	expectStatus(t, rec, http.StatusCreated)
	var question struct {
		Data struct {
			Question questionDTO `json:"question"`
		} `json:"data"`
	}
	decode(t, rec, &question)

	rec = s.api(t, http.MethodDelete, "/quizzes/"+id+"/questions/"+question.Data.Question.ID, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.api(t, http.MethodGet, "/quizzes/not-a-uuid", nil)
	expectMessage(t, rec, http.StatusBadRequest, `Invalid "quizId": It must be a valid UUID.`)

	rec = s.api(t, http.MethodGet, "/quizzes?page=0", nil)
	expectMessage(t, rec, http.StatusBadRequest, `Invalid "page": It must be a positive integer.`)

	rec = s.api(t, http.MethodPost, "/quizzes/"+id+"/archive", nil)
	expectStatus(t, rec, http.StatusOK)
	rec = s.api(t, http.MethodPost, "/quizzes/"+id+"/draft", nil)
	expectMessage(t, rec, http.StatusConflict, "This quiz is archived.")

	rec = s.api(t, http.MethodGet, "/quizzes/"+id+"/versions", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"active":`) {
		t.Fatalf("expected versions to carry the active flag: %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/nowhere", nil, "")
	expectMessage(t, rec, http.StatusNotFound, "The requested endpoint '/nowhere' was not found.")
}

func TestUserIDsAreCanonicalized(t *testing.T) {
	s := newTestServer(t)

	rec := s.api(t, http.MethodPost, "/quizzes", map[string]any{"title": "T", "description": "D"})
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		Data struct {
			Quiz quizDTO `json:"quiz"`
		} `json:"data"`
	}
	decode(t, rec, &created)
	id := created.Data.Quiz.ID
	rec = s.api(t, http.MethodPost, "/quizzes/"+id+"/questions", map[string]any{
		"type": "true-false", "text": "Sky is blue", "answer": true, "points": 1,
	})
	expectStatus(t, rec, http.StatusCreated)
	rec = s.api(t, http.MethodPost, "/quizzes/"+id+"/publish", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.api(t, http.MethodPost, "/users/5F0C7A8E-3A51-4A0F-BB54-8A7D2E6C1C11/quizzes/"+id+"/start", nil)
	expectStatus(t, rec, http.StatusCreated)

	rec = s.api(t, http.MethodPost, "/users/5f0c7a8e3a514a0fbb548a7d2e6c1c11/quizzes/"+id+"/start", nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = s.api(t, http.MethodGet, "/users/5f0c7a8e-3a51-4a0f-bb54-8a7d2e6c1c11/attempts", nil)
	expectStatus(t, rec, http.StatusOK)
	var listed struct {
		Data struct {
			Attempts []attemptDTO `json:"attempts"`
		} `json:"data"`
	}
	decode(t, rec, &listed)
	if len(listed.Data.Attempts) != 1 {
		t.Fatalf("expected one attempt under the canonical user id, got %d", len(listed.Data.Attempts))
	}
}
