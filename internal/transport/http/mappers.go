package http

import (
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
)

// Wire representations. Timestamps are epoch milliseconds.

type versionDTO struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    *int   `json:"duration"`
	Active      *bool  `json:"active,omitempty"`
}

type quizDTO struct {
	ID      string     `json:"id"`
	Status  string     `json:"status"`
	Version versionDTO `json:"version"`
}

type questionDTO struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Options []string       `json:"options"`
	Answer  *domain.Answer `json:"answer,omitempty"`
	Points  int            `json:"points"`
}

type attemptQuizDTO struct {
	ID      string     `json:"id"`
	Version versionDTO `json:"version"`
}

type attemptDTO struct {
	ID        string         `json:"id"`
	StartTime int64          `json:"startTime"`
	EndTime   *int64         `json:"endTime"`
	Active    bool           `json:"active"`
	Quiz      attemptQuizDTO `json:"quiz"`
}

type responseDTO struct {
	ID         string        `json:"id"`
	Answer     domain.Answer `json:"answer"`
	Score      int           `json:"score"`
	SubmitTime int64         `json:"submitTime"`
	Question   questionDTO   `json:"question"`
}

type analysisDTO struct {
	StartTime           int64  `json:"startTime"`
	EndTime             *int64 `json:"endTime"`
	TotalQuestions      int    `json:"totalQuestions"`
	TotalAnswers        int    `json:"totalAnswers"`
	TotalCorrectAnswers int    `json:"totalCorrectAnswers"`
	TotalPoints         int    `json:"totalPoints"`
	TotalScore          int    `json:"totalScore"`
}

type tokenDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

func toVersionDTO(v domain.QuizVersion, withActive bool) versionDTO {
	dto := versionDTO{
		ID:          v.ID,
		Number:      v.Number,
		Title:       v.Title,
		Description: v.Description,
		Duration:    v.Duration,
	}
	if withActive {
		active := v.Active
		dto.Active = &active
	}
	return dto
}

func toQuizDTO(view domain.QuizView) quizDTO {
	return quizDTO{
		ID:      view.Quiz.ID,
		Status:  string(view.Quiz.Status),
		Version: toVersionDTO(view.Version, false),
	}
}

func toQuestionDTO(q domain.Question) questionDTO {
	answer := q.Answer
	return questionDTO{
		ID:      q.ID,
		Type:    string(q.Type),
		Text:    q.Text,
		Options: q.Options,
		Answer:  &answer,
		Points:  q.Points,
	}
}

// toStrippedQuestionDTO hides the key from attempt takers.
func toStrippedQuestionDTO(q domain.Question) questionDTO {
	dto := toQuestionDTO(q)
	dto.Answer = nil
	return dto
}

func toAttemptDTO(view domain.AttemptView) attemptDTO {
	return attemptDTO{
		ID:        view.Attempt.ID,
		StartTime: millis(view.Attempt.StartTime),
		EndTime:   optionalMillis(view.Attempt.EndTime),
		Active:    view.Attempt.Active,
		Quiz: attemptQuizDTO{
			ID:      view.Attempt.QuizID,
			Version: toVersionDTO(view.Version, false),
		},
	}
}

func toResponseDTO(view domain.ResponseView) responseDTO {
	return responseDTO{
		ID:         view.Response.ID,
		Answer:     view.Response.Answer,
		Score:      view.Response.Score,
		SubmitTime: millis(view.Response.SubmitTime),
		Question:   toQuestionDTO(view.Question),
	}
}

func toAnalysisDTO(a domain.Analysis) analysisDTO {
	return analysisDTO{
		StartTime:           millis(a.StartTime),
		EndTime:             optionalMillis(a.EndTime),
		TotalQuestions:      a.TotalQuestions,
		TotalAnswers:        a.TotalAnswers,
		TotalCorrectAnswers: a.TotalCorrectAnswers,
		TotalPoints:         a.TotalPoints,
		TotalScore:          a.TotalScore,
	}
}

func toTokenDTO(t app.Token) tokenDTO {
	return tokenDTO{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresIn:   int64(t.ExpiresIn / time.Second),
	}
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

// optionalMillis renders a zero time as null.
func optionalMillis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// list renders a page as {<key>: [...], pagination: {...}}.
func list[T, U any](key string, page domain.Page[T], fn func(T) U) map[string]any {
	mapped := domain.MapPage(page, fn)
	return map[string]any{
		key:          mapped.Items,
		"pagination": mapped.Pagination,
	}
}
