package app

import (
	"context"
	"time"

	"tenant-quiz-service/internal/domain"
)

// UserStore persists tenant end-users.
type UserStore interface {
	// Upsert creates the user on first sight and bumps UpdatedAt otherwise.
	Upsert(ctx context.Context, userID string, now time.Time) (domain.User, error)
	Exists(ctx context.Context, userID string) (bool, error)
}

// QuizStore persists quiz headers.
type QuizStore interface {
	Insert(ctx context.Context, quiz domain.Quiz) error
	Get(ctx context.Context, quizID string) (domain.Quiz, error)
	// SetStatus moves a quiz from one status to another and stamps its update time.
	// It fails with domain.ErrQuizStatusChanged when the stored status is no longer from.
	SetStatus(ctx context.Context, quizID string, from, to domain.QuizStatus, at time.Time) error
	Exists(ctx context.Context, quizID string) (bool, error)
}

// VersionStore persists quiz versions. Implementations reject a second active
// version for the same quiz with domain.ErrActiveVersionExists.
type VersionStore interface {
	Insert(ctx context.Context, version domain.QuizVersion) error
	Update(ctx context.Context, version domain.QuizVersion) error
	Get(ctx context.Context, versionID string) (domain.QuizVersion, error)
	// GetActive fails with domain.ErrQuizNotFound for an unknown quiz and
	// domain.ErrVersionNotFound when the quiz has no active version.
	GetActive(ctx context.Context, quizID string) (domain.QuizVersion, error)
	Count(ctx context.Context, quizID string) (int, error)
	// ListActive returns active versions of all quizzes, newest first.
	ListActive(ctx context.Context, page domain.PageRequest) ([]domain.QuizVersion, int, error)
	// ListByQuiz returns every version of a quiz, newest first.
	ListByQuiz(ctx context.Context, quizID string, page domain.PageRequest) ([]domain.QuizVersion, int, error)
}

// QuestionStore persists questions keyed by version.
type QuestionStore interface {
	Insert(ctx context.Context, questions ...domain.Question) error
	Update(ctx context.Context, question domain.Question) error
	Delete(ctx context.Context, versionID, questionID string) error
	Get(ctx context.Context, versionID, questionID string) (domain.Question, error)
	List(ctx context.Context, versionID string, page domain.PageRequest) ([]domain.Question, int, error)
	All(ctx context.Context, versionID string) ([]domain.Question, error)
}

// AttemptFilter narrows attempt listings. Empty fields match everything.
type AttemptFilter struct {
	UserID string
	QuizID string
}

// AttemptStore persists attempts. Implementations reject a second active attempt
// for the same user with domain.ErrActiveAttemptExists.
type AttemptStore interface {
	Insert(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	// FindActive returns the active attempt of a user, if any.
	FindActive(ctx context.Context, userID string) (domain.Attempt, bool, error)
	// End deactivates the attempt only if it is still active and reports whether it did.
	End(ctx context.Context, attemptID string, endTime time.Time) (bool, error)
	List(ctx context.Context, filter AttemptFilter, page domain.PageRequest) ([]domain.Attempt, int, error)
}

// ResponseStore persists graded responses. Implementations reject a second response
// for the same (attempt, question) with domain.ErrDuplicateResponse.
type ResponseStore interface {
	Insert(ctx context.Context, response domain.Response) error
	Exists(ctx context.Context, attemptID, questionID string) (bool, error)
	Get(ctx context.Context, attemptID, responseID string) (domain.Response, error)
	List(ctx context.Context, attemptID string, page domain.PageRequest) ([]domain.Response, int, error)
	All(ctx context.Context, attemptID string) ([]domain.Response, error)
}

// Stores is the bundle of six stores scoped to one tenant.
type Stores struct {
	Users     UserStore
	Quizzes   QuizStore
	Versions  VersionStore
	Questions QuestionStore
	Attempts  AttemptStore
	Responses ResponseStore

	tx TxRunner
}

// TxRunner applies fn atomically: either every write made through the stores handed
// to fn is committed or none is.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// NewStores assembles a bundle. tx may be nil for bundles already bound to a transaction.
func NewStores(users UserStore, quizzes QuizStore, versions VersionStore, questions QuestionStore,
	attempts AttemptStore, responses ResponseStore, tx TxRunner) Stores {
	return Stores{
		Users:     users,
		Quizzes:   quizzes,
		Versions:  versions,
		Questions: questions,
		Attempts:  attempts,
		Responses: responses,
		tx:        tx,
	}
}

// InTx runs fn in a transaction, or directly when the bundle is already transactional.
func (s Stores) InTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error {
	if s.tx == nil {
		return fn(ctx, s)
	}
	return s.tx.RunInTx(ctx, fn)
}

// ClientStore persists API clients; it is global, not tenant scoped.
type ClientStore interface {
	Insert(ctx context.Context, client domain.Client) error
	Update(ctx context.Context, client domain.Client) error
	Get(ctx context.Context, id string) (domain.Client, error)
	GetByClientID(ctx context.Context, clientID string) (domain.Client, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.Client, int, error)
}
