package postgres

import (
	"time"

	"tenant-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// Row types map the tenant tables. Table names are per tenant and supplied with
// ModelTableExpr, so the bun table tag only fixes the alias.

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{ID: r.ID, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()}
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID        string    `bun:"id,pk"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func newQuizRow(q domain.Quiz) quizRow {
	return quizRow{ID: q.ID, Status: string(q.Status), CreatedAt: q.CreatedAt, UpdatedAt: q.UpdatedAt}
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:        r.ID,
		Status:    domain.QuizStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type versionRow struct {
	bun.BaseModel `bun:"table:quiz_versions,alias:v"`

	ID          string    `bun:"id,pk"`
	QuizID      string    `bun:"quiz_id,notnull"`
	Number      int       `bun:"number,notnull"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description,notnull"`
	Duration    *int      `bun:"duration"`
	Active      bool      `bun:"active,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func newVersionRow(v domain.QuizVersion) versionRow {
	return versionRow{
		ID:          v.ID,
		QuizID:      v.QuizID,
		Number:      v.Number,
		Title:       v.Title,
		Description: v.Description,
		Duration:    v.Duration,
		Active:      v.Active,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

func (r versionRow) toDomain() domain.QuizVersion {
	return domain.QuizVersion{
		ID:          r.ID,
		QuizID:      r.QuizID,
		Number:      r.Number,
		Title:       r.Title,
		Description: r.Description,
		Duration:    r.Duration,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qs"`

	ID        string        `bun:"id,pk"`
	QuizID    string        `bun:"quiz_id,notnull"`
	VersionID string        `bun:"version_id,notnull"`
	Type      string        `bun:"type,notnull"`
	Text      string        `bun:"text,notnull"`
	Options   []string      `bun:"options,type:jsonb"`
	Answer    domain.Answer `bun:"answer,type:jsonb"`
	Points    int           `bun:"points,notnull"`
	CreatedAt time.Time     `bun:"created_at,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

func newQuestionRow(q domain.Question) questionRow {
	return questionRow{
		ID:        q.ID,
		QuizID:    q.QuizID,
		VersionID: q.VersionID,
		Type:      string(q.Type),
		Text:      q.Text,
		Options:   q.Options,
		Answer:    q.Answer,
		Points:    q.Points,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:        r.ID,
		QuizID:    r.QuizID,
		VersionID: r.VersionID,
		Type:      domain.QuestionType(r.Type),
		Text:      r.Text,
		Options:   r.Options,
		Answer:    r.Answer,
		Points:    r.Points,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	QuizID    string    `bun:"quiz_id,notnull"`
	VersionID string    `bun:"version_id,notnull"`
	StartTime time.Time `bun:"start_time,notnull"`
	EndTime   time.Time `bun:"end_time,nullzero"`
	Active    bool      `bun:"active,notnull"`
}

func newAttemptRow(a domain.Attempt) attemptRow {
	return attemptRow{
		ID:        a.ID,
		UserID:    a.UserID,
		QuizID:    a.QuizID,
		VersionID: a.VersionID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Active:    a.Active,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	a := domain.Attempt{
		ID:        r.ID,
		UserID:    r.UserID,
		QuizID:    r.QuizID,
		VersionID: r.VersionID,
		StartTime: r.StartTime.UTC(),
		Active:    r.Active,
	}
	if !r.EndTime.IsZero() {
		a.EndTime = r.EndTime.UTC()
	}
	return a
}

type responseRow struct {
	bun.BaseModel `bun:"table:responses,alias:r"`

	ID         string        `bun:"id,pk"`
	AttemptID  string        `bun:"attempt_id,notnull"`
	QuestionID string        `bun:"question_id,notnull"`
	Answer     domain.Answer `bun:"answer,type:jsonb"`
	Score      int           `bun:"score,notnull"`
	SubmitTime time.Time     `bun:"submit_time,notnull"`
}

func newResponseRow(r domain.Response) responseRow {
	return responseRow{
		ID:         r.ID,
		AttemptID:  r.AttemptID,
		QuestionID: r.QuestionID,
		Answer:     r.Answer,
		Score:      r.Score,
		SubmitTime: r.SubmitTime,
	}
}

func (r responseRow) toDomain() domain.Response {
	return domain.Response{
		ID:         r.ID,
		AttemptID:  r.AttemptID,
		QuestionID: r.QuestionID,
		Answer:     r.Answer,
		Score:      r.Score,
		SubmitTime: r.SubmitTime.UTC(),
	}
}

// clientRow maps the global clients table created by migrations.
type clientRow struct {
	bun.BaseModel `bun:"table:clients,alias:c"`

	ID         string    `bun:"id,pk"`
	Name       string    `bun:"name,notnull"`
	ClientID   string    `bun:"client_id,notnull"`
	SecretHash string    `bun:"secret_hash,notnull"`
	Active     bool      `bun:"active,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func newClientRow(c domain.Client) clientRow {
	return clientRow{
		ID:         c.ID,
		Name:       c.Name,
		ClientID:   c.ClientID,
		SecretHash: c.SecretHash,
		Active:     c.Active,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (r clientRow) toDomain() domain.Client {
	return domain.Client{
		ID:         r.ID,
		Name:       r.Name,
		ClientID:   r.ClientID,
		SecretHash: r.SecretHash,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}
