package app

import (
	"context"
	"errors"
	"time"

	"tenant-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// TenantResolver hands out the stores of a tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID string) (Stores, error)
}

// QuizInput carries the fields of a new quiz.
type QuizInput struct {
	Title       string
	Description string
	Duration    *int
}

// QuizPatch carries optional quiz field updates. SetDuration distinguishes an
// explicit null duration from an absent one.
type QuizPatch struct {
	Title       *string
	Description *string
	Duration    *int
	SetDuration bool
}

// quizTransitions lists, for each target status, the statuses it may be entered from.
var quizTransitions = map[domain.QuizStatus][]domain.QuizStatus{
	domain.QuizPublished: {domain.QuizDrafted},
	domain.QuizDrafted:   {domain.QuizPublished},
	domain.QuizArchived:  {domain.QuizDrafted, domain.QuizPublished},
}

var alreadyInStatus = map[domain.QuizStatus]string{
	domain.QuizPublished: "This quiz is already published.",
	domain.QuizDrafted:   "This quiz is already drafted.",
	domain.QuizArchived:  "This quiz is already archived.",
}

// QuizService owns quiz status transitions and the version-copy algorithm.
type QuizService struct {
	tenants TenantResolver
	now     func() time.Time
	newID   func() string
}

func NewQuizService(tenants TenantResolver) *QuizService {
	return NewQuizServiceWithClock(tenants, time.Now)
}

// NewQuizServiceWithClock allows deterministic timestamps in tests.
func NewQuizServiceWithClock(tenants TenantResolver, now func() time.Time) *QuizService {
	return &QuizService{tenants: tenants, now: now, newID: uuid.NewString}
}

// Create stores a drafted quiz together with its first, active version.
func (s *QuizService) Create(ctx context.Context, tenantID string, in QuizInput) (domain.QuizView, error) {
	if err := validateTitle(in.Title); err != nil {
		return domain.QuizView{}, err
	}
	if err := validateDescription(in.Description); err != nil {
		return domain.QuizView{}, err
	}
	if err := validateDuration(in.Duration); err != nil {
		return domain.QuizView{}, err
	}

	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return domain.QuizView{}, err
	}

	now := stamp(s.now())
	quiz := domain.Quiz{ID: s.newID(), Status: domain.QuizDrafted, CreatedAt: now, UpdatedAt: now}
	version := domain.QuizVersion{
		ID:          s.newID(),
		QuizID:      quiz.ID,
		Number:      1,
		Title:       in.Title,
		Description: in.Description,
		Duration:    in.Duration,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = stores.InTx(ctx, func(ctx context.Context, tx Stores) error {
		if err := tx.Quizzes.Insert(ctx, quiz); err != nil {
			return err
		}
		return tx.Versions.Insert(ctx, version)
	})
	if err != nil {
		return domain.QuizView{}, domain.Internal("create quiz", err)
	}
	return domain.QuizView{Quiz: quiz, Version: version}, nil
}

// Update edits the active version of a drafted quiz in place.
func (s *QuizService) Update(ctx context.Context, tenantID, quizID string, patch QuizPatch) (domain.QuizView, error) {
	stores, view, err := s.load(ctx, tenantID, quizID)
	if err != nil {
		return domain.QuizView{}, err
	}
	if err := ensureEditable(view.Quiz); err != nil {
		return domain.QuizView{}, err
	}

	version := view.Version
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return domain.QuizView{}, err
		}
		version.Title = *patch.Title
	}
	if patch.Description != nil {
		if err := validateDescription(*patch.Description); err != nil {
			return domain.QuizView{}, err
		}
		version.Description = *patch.Description
	}
	if patch.SetDuration || patch.Duration != nil {
		if err := validateDuration(patch.Duration); err != nil {
			return domain.QuizView{}, err
		}
		version.Duration = patch.Duration
	}

	now := stamp(s.now())
	quiz := view.Quiz
	quiz.UpdatedAt = now
	version.UpdatedAt = now

	err = stores.InTx(ctx, func(ctx context.Context, tx Stores) error {
		if err := tx.Quizzes.SetStatus(ctx, quiz.ID, domain.QuizDrafted, domain.QuizDrafted, now); err != nil {
			return err
		}
		return tx.Versions.Update(ctx, version)
	})
	if err != nil {
		return domain.QuizView{}, editFailed("update quiz", err)
	}
	return domain.QuizView{Quiz: quiz, Version: version}, nil
}

// Publish makes the active version available to attempt takers.
func (s *QuizService) Publish(ctx context.Context, tenantID, quizID string) (domain.QuizView, error) {
	return s.setStatus(ctx, tenantID, quizID, domain.QuizPublished)
}

// Archive retires the quiz. There is no way back from archived.
func (s *QuizService) Archive(ctx context.Context, tenantID, quizID string) (domain.QuizView, error) {
	return s.setStatus(ctx, tenantID, quizID, domain.QuizArchived)
}

// Draft returns a published quiz to editing. The active version is frozen and a
// copy of it, questions included, becomes the new active version.
func (s *QuizService) Draft(ctx context.Context, tenantID, quizID string) (domain.QuizView, error) {
	stores, view, err := s.load(ctx, tenantID, quizID)
	if err != nil {
		return domain.QuizView{}, err
	}
	if err := transition(view.Quiz.Status, domain.QuizDrafted); err != nil {
		return domain.QuizView{}, err
	}

	now := stamp(s.now())
	quiz := view.Quiz
	quiz.Status = domain.QuizDrafted
	quiz.UpdatedAt = now

	var copied domain.QuizVersion
	err = stores.InTx(ctx, func(ctx context.Context, tx Stores) error {
		count, err := tx.Versions.Count(ctx, quiz.ID)
		if err != nil {
			return err
		}
		questions, err := tx.Questions.All(ctx, view.Version.ID)
		if err != nil {
			return err
		}

		copied = copyVersion(view.Version, s.newID(), count+1, now)
		// Insert the copy inactive first so the old version stays active until
		// the copy and its questions are written.
		copied.Active = false
		if err := tx.Versions.Insert(ctx, copied); err != nil {
			return err
		}
		if len(questions) > 0 {
			copies := make([]domain.Question, 0, len(questions))
			for _, q := range questions {
				copies = append(copies, copyQuestion(q, s.newID(), copied.ID, now))
			}
			if err := tx.Questions.Insert(ctx, copies...); err != nil {
				return err
			}
		}

		old := view.Version
		old.Active = false
		if err := tx.Versions.Update(ctx, old); err != nil {
			return err
		}
		copied.Active = true
		if err := tx.Versions.Update(ctx, copied); err != nil {
			return err
		}
		return tx.Quizzes.SetStatus(ctx, quiz.ID, view.Quiz.Status, domain.QuizDrafted, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrActiveVersionExists) || errors.Is(err, domain.ErrQuizStatusChanged) {
			return domain.QuizView{}, domain.Conflict("This quiz is already being drafted.")
		}
		return domain.QuizView{}, domain.Internal("draft quiz", err)
	}
	return domain.QuizView{Quiz: quiz, Version: copied}, nil
}

// Get returns a quiz with its active version.
func (s *QuizService) Get(ctx context.Context, tenantID, quizID string) (domain.QuizView, error) {
	_, view, err := s.load(ctx, tenantID, quizID)
	return view, err
}

// List pages through quizzes by their active version, newest first.
func (s *QuizService) List(ctx context.Context, tenantID string, page domain.PageRequest) (domain.Page[domain.QuizView], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.QuizView]{}, err
	}
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Page[domain.QuizView]{}, err
	}

	versions, total, err := stores.Versions.ListActive(ctx, page)
	if err != nil {
		return domain.Page[domain.QuizView]{}, domain.Internal("list quizzes", err)
	}
	views := make([]domain.QuizView, 0, len(versions))
	for _, v := range versions {
		quiz, err := stores.Quizzes.Get(ctx, v.QuizID)
		if err != nil {
			return domain.Page[domain.QuizView]{}, domain.Internal("list quizzes", err)
		}
		views = append(views, domain.QuizView{Quiz: quiz, Version: v})
	}
	return domain.NewPage(page, views, total), nil
}

func (s *QuizService) setStatus(ctx context.Context, tenantID, quizID string, status domain.QuizStatus) (domain.QuizView, error) {
	stores, view, err := s.load(ctx, tenantID, quizID)
	if err != nil {
		return domain.QuizView{}, err
	}
	if err := transition(view.Quiz.Status, status); err != nil {
		return domain.QuizView{}, err
	}

	quiz := view.Quiz
	quiz.Status = status
	quiz.UpdatedAt = stamp(s.now())
	err = stores.Quizzes.SetStatus(ctx, quiz.ID, view.Quiz.Status, status, quiz.UpdatedAt)
	if errors.Is(err, domain.ErrQuizStatusChanged) {
		return domain.QuizView{}, domain.Conflict("This quiz was changed by another request.")
	}
	if err != nil {
		return domain.QuizView{}, domain.Internal("set quiz status", err)
	}
	return domain.QuizView{Quiz: quiz, Version: view.Version}, nil
}

func (s *QuizService) load(ctx context.Context, tenantID, quizID string) (Stores, domain.QuizView, error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return Stores{}, domain.QuizView{}, err
	}
	view, err := activeQuiz(ctx, stores, quizID)
	return stores, view, err
}

// activeQuiz loads a quiz joined with its active version.
func activeQuiz(ctx context.Context, stores Stores, quizID string) (domain.QuizView, error) {
	version, err := stores.Versions.GetActive(ctx, quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		return domain.QuizView{}, domain.NotFound("There is no quiz with this id.")
	}
	if errors.Is(err, domain.ErrVersionNotFound) {
		return domain.QuizView{}, domain.NotFound("There is no active version for quiz with this id.")
	}
	if err != nil {
		return domain.QuizView{}, domain.Internal("load active version", err)
	}
	quiz, err := stores.Quizzes.Get(ctx, quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		return domain.QuizView{}, domain.NotFound("There is no quiz with this id.")
	}
	if err != nil {
		return domain.QuizView{}, domain.Internal("load quiz", err)
	}
	return domain.QuizView{Quiz: quiz, Version: version}, nil
}

// transition checks that a quiz in status from may move to status to.
// Archived is terminal.
func transition(from, to domain.QuizStatus) error {
	if from == to {
		return domain.Conflict("%s", alreadyInStatus[to])
	}
	if from == domain.QuizArchived {
		return domain.Conflict("This quiz is archived.")
	}
	for _, allowed := range quizTransitions[to] {
		if allowed == from {
			return nil
		}
	}
	return domain.Conflict("This quiz cannot move from %s to %s.", from, to)
}

// editFailed reports a quiz that stopped being editable during the write as a conflict.
func editFailed(op string, err error) error {
	if errors.Is(err, domain.ErrQuizStatusChanged) || errors.Is(err, domain.ErrActiveVersionExists) {
		return domain.Conflict("This quiz cannot be updated.")
	}
	return domain.Internal(op, err)
}

func ensureEditable(quiz domain.Quiz) error {
	if quiz.Status != domain.QuizDrafted {
		return domain.Conflict("This quiz cannot be updated.")
	}
	return nil
}

func copyVersion(v domain.QuizVersion, id string, number int, now time.Time) domain.QuizVersion {
	return domain.QuizVersion{
		ID:          id,
		QuizID:      v.QuizID,
		Number:      number,
		Title:       v.Title,
		Description: v.Description,
		Duration:    v.Duration,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func copyQuestion(q domain.Question, id, versionID string, now time.Time) domain.Question {
	var options []string
	if q.Options != nil {
		options = append([]string{}, q.Options...)
	}
	return domain.Question{
		ID:        id,
		QuizID:    q.QuizID,
		VersionID: versionID,
		Type:      q.Type,
		Text:      q.Text,
		Options:   options,
		Answer:    q.Answer,
		Points:    q.Points,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// stamp truncates to the millisecond granularity the stores keep.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
