package domain

import "time"

// QuizStatus is the lifecycle state of a quiz.
type QuizStatus string

const (
	QuizDrafted   QuizStatus = "drafted"
	QuizPublished QuizStatus = "published"
	QuizArchived  QuizStatus = "archived"
)

// QuestionType enumerates the auto-gradable question kinds.
type QuestionType string

const (
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionFillInBlank    QuestionType = "fill-in-the-blank"
)

// Valid reports whether t is a supported question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTrueFalse, QuestionMultipleChoice, QuestionFillInBlank:
		return true
	}
	return false
}

// Quiz owns a chain of versions, exactly one of which is active.
type Quiz struct {
	ID        string
	Status    QuizStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuizVersion holds the editable content of a quiz. Versions that are no longer
// active are never modified again.
type QuizVersion struct {
	ID          string
	QuizID      string
	Number      int
	Title       string
	Description string
	Duration    *int // seconds; nil means untimed
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Question belongs to exactly one version of a quiz.
type Question struct {
	ID        string
	QuizID    string
	VersionID string
	Type      QuestionType
	Text      string
	Options   []string // multiple-choice only
	Answer    Answer
	Points    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is an end-user of a tenant, created on first attempt.
type User struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attempt is a timed run of a user through a frozen quiz version.
// EndTime is the scheduled expiry until the attempt is ended.
type Attempt struct {
	ID        string
	UserID    string
	QuizID    string
	VersionID string
	StartTime time.Time
	EndTime   time.Time
	Active    bool
}

// Response is a graded answer to one question within one attempt.
type Response struct {
	ID         string
	AttemptID  string
	QuestionID string
	Answer     Answer
	Score      int
	SubmitTime time.Time
}

// Client is an API tenant. Its ID doubles as the tenant identifier.
type Client struct {
	ID         string
	Name       string
	ClientID   string
	SecretHash string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ClientCredentials are returned once, at creation or rotation.
type ClientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// QuizView pairs a quiz with its active version.
type QuizView struct {
	Quiz    Quiz
	Version QuizVersion
}

// AttemptView pairs an attempt with the version it was started on.
type AttemptView struct {
	Attempt Attempt
	Version QuizVersion
}

// ResponseView pairs a response with the question it answers.
type ResponseView struct {
	Response Response
	Question Question
}

// Analysis summarises the responses of one attempt.
type Analysis struct {
	StartTime           time.Time
	EndTime             time.Time
	TotalQuestions      int
	TotalAnswers        int
	TotalCorrectAnswers int
	TotalPoints         int
	TotalScore          int
}
