package app

import (
	"context"
	"errors"
	"time"

	"tenant-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// QuestionInput carries the fields of a new question.
type QuestionInput struct {
	Type    domain.QuestionType
	Text    string
	Options []string
	Answer  domain.Answer
	Points  int
}

// QuestionPatch carries optional question updates. SetOptions distinguishes an
// explicit null options list from an absent one.
type QuestionPatch struct {
	Type       *domain.QuestionType
	Text       *string
	Options    []string
	SetOptions bool
	Answer     *domain.Answer
	Points     *int
}

// QuestionService edits the questions of the active version of a drafted quiz.
type QuestionService struct {
	tenants TenantResolver
	now     func() time.Time
	newID   func() string
}

func NewQuestionService(tenants TenantResolver) *QuestionService {
	return NewQuestionServiceWithClock(tenants, time.Now)
}

// NewQuestionServiceWithClock allows deterministic timestamps in tests.
func NewQuestionServiceWithClock(tenants TenantResolver, now func() time.Time) *QuestionService {
	return &QuestionService{tenants: tenants, now: now, newID: uuid.NewString}
}

func (s *QuestionService) Create(ctx context.Context, tenantID, quizID string, in QuestionInput) (domain.Question, error) {
	stores, view, err := s.editable(ctx, tenantID, quizID)
	if err != nil {
		return domain.Question{}, err
	}

	if err := validateQuestionType(in.Type); err != nil {
		return domain.Question{}, err
	}
	if err := validateText(in.Text); err != nil {
		return domain.Question{}, err
	}
	if err := validateOptions(in.Type, in.Options); err != nil {
		return domain.Question{}, err
	}
	if err := validateAnswer(in.Type, in.Options, in.Answer); err != nil {
		return domain.Question{}, err
	}
	if err := validatePoints(in.Points); err != nil {
		return domain.Question{}, err
	}

	now := stamp(s.now())
	question := domain.Question{
		ID:        s.newID(),
		QuizID:    view.Quiz.ID,
		VersionID: view.Version.ID,
		Type:      in.Type,
		Text:      in.Text,
		Options:   in.Options,
		Answer:    in.Answer,
		Points:    in.Points,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = stores.InTx(ctx, func(ctx context.Context, tx Stores) error {
		if err := tx.Questions.Insert(ctx, question); err != nil {
			return err
		}
		return touch(ctx, tx, view, now)
	})
	if err != nil {
		return domain.Question{}, editFailed("create question", err)
	}
	return question, nil
}

// Update validates each changed field against the resulting type and options.
func (s *QuestionService) Update(ctx context.Context, tenantID, quizID, questionID string, patch QuestionPatch) (domain.Question, error) {
	stores, view, err := s.editable(ctx, tenantID, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	question, err := questionOf(ctx, stores, view.Version.ID, questionID)
	if err != nil {
		return domain.Question{}, err
	}

	if patch.Type != nil {
		if err := validateQuestionType(*patch.Type); err != nil {
			return domain.Question{}, err
		}
		question.Type = *patch.Type
	}
	if patch.Text != nil {
		if err := validateText(*patch.Text); err != nil {
			return domain.Question{}, err
		}
		question.Text = *patch.Text
	}
	if patch.SetOptions || patch.Options != nil {
		if err := validateOptions(question.Type, patch.Options); err != nil {
			return domain.Question{}, err
		}
		question.Options = patch.Options
	}
	if patch.Answer != nil {
		if err := validateAnswer(question.Type, question.Options, *patch.Answer); err != nil {
			return domain.Question{}, err
		}
		question.Answer = *patch.Answer
	}
	if patch.Points != nil {
		if err := validatePoints(*patch.Points); err != nil {
			return domain.Question{}, err
		}
		question.Points = *patch.Points
	}
	if patch.Type != nil {
		// A new type must still agree with the options it keeps.
		if err := validateOptions(question.Type, question.Options); err != nil {
			return domain.Question{}, err
		}
	}
	if patch.Type != nil || patch.SetOptions || patch.Options != nil {
		// The kept answer must still be valid for the resulting type and options.
		if err := validateAnswer(question.Type, question.Options, question.Answer); err != nil {
			return domain.Question{}, err
		}
	}

	now := stamp(s.now())
	question.UpdatedAt = now

	err = stores.InTx(ctx, func(ctx context.Context, tx Stores) error {
		if err := tx.Questions.Update(ctx, question); err != nil {
			return err
		}
		return touch(ctx, tx, view, now)
	})
	if err != nil {
		return domain.Question{}, editFailed("update question", err)
	}
	return question, nil
}

// Delete removes a question and returns it as it was.
func (s *QuestionService) Delete(ctx context.Context, tenantID, quizID, questionID string) (domain.Question, error) {
	stores, view, err := s.editable(ctx, tenantID, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	question, err := questionOf(ctx, stores, view.Version.ID, questionID)
	if err != nil {
		return domain.Question{}, err
	}

	err = stores.InTx(ctx, func(ctx context.Context, tx Stores) error {
		if err := tx.Questions.Delete(ctx, view.Version.ID, question.ID); err != nil {
			return err
		}
		return touch(ctx, tx, view, stamp(s.now()))
	})
	if err != nil {
		return domain.Question{}, editFailed("delete question", err)
	}
	return question, nil
}

func (s *QuestionService) Get(ctx context.Context, tenantID, quizID, questionID string) (domain.Question, error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Question{}, err
	}
	view, err := activeQuiz(ctx, stores, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	return questionOf(ctx, stores, view.Version.ID, questionID)
}

func (s *QuestionService) List(ctx context.Context, tenantID, quizID string, page domain.PageRequest) (domain.Page[domain.Question], error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Page[domain.Question]{}, err
	}
	view, err := activeQuiz(ctx, stores, quizID)
	if err != nil {
		return domain.Page[domain.Question]{}, err
	}
	return listQuestions(ctx, stores, view.Version.ID, page)
}

func (s *QuestionService) editable(ctx context.Context, tenantID, quizID string) (Stores, domain.QuizView, error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return Stores{}, domain.QuizView{}, err
	}
	view, err := activeQuiz(ctx, stores, quizID)
	if err != nil {
		return Stores{}, domain.QuizView{}, err
	}
	if err := ensureEditable(view.Quiz); err != nil {
		return Stores{}, domain.QuizView{}, err
	}
	return stores, view, nil
}

// touch bumps the update time of the quiz and its active version. It fails with
// domain.ErrQuizStatusChanged once the quiz is no longer drafted.
func touch(ctx context.Context, tx Stores, view domain.QuizView, now time.Time) error {
	if err := tx.Quizzes.SetStatus(ctx, view.Quiz.ID, domain.QuizDrafted, domain.QuizDrafted, now); err != nil {
		return err
	}
	version := view.Version
	version.UpdatedAt = now
	return tx.Versions.Update(ctx, version)
}

func questionOf(ctx context.Context, stores Stores, versionID, questionID string) (domain.Question, error) {
	question, err := stores.Questions.Get(ctx, versionID, questionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return domain.Question{}, domain.NotFound("There is no question with this id for this version.")
	}
	if err != nil {
		return domain.Question{}, domain.Internal("load question", err)
	}
	return question, nil
}

func listQuestions(ctx context.Context, stores Stores, versionID string, page domain.PageRequest) (domain.Page[domain.Question], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.Question]{}, err
	}
	questions, total, err := stores.Questions.List(ctx, versionID, page)
	if err != nil {
		return domain.Page[domain.Question]{}, domain.Internal("list questions", err)
	}
	return domain.NewPage(page, questions, total), nil
}
