package app

import (
	"context"
	"errors"
	"time"

	"tenant-quiz-service/internal/domain"
	"tenant-quiz-service/internal/scheduler"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// JobEndAttempt is the deferred job that force-ends an attempt at its deadline.
const JobEndAttempt = "end-attempt"

// EndAttemptPayload identifies the attempt a deferred end-attempt job targets.
type EndAttemptPayload struct {
	TenantID  string `json:"tenantId"`
	AttemptID string `json:"attemptId"`
}

// JobScheduler submits deferred work.
type JobScheduler interface {
	Schedule(ctx context.Context, kind, key string, payload any, delay time.Duration) (scheduler.Job, error)
}

// AttemptService runs timed attempts: start, answer, end and analysis.
type AttemptService struct {
	tenants   TenantResolver
	scheduler JobScheduler
	now       func() time.Time
	newID     func() string
}

func NewAttemptService(tenants TenantResolver, jobs JobScheduler) *AttemptService {
	return NewAttemptServiceWithClock(tenants, jobs, time.Now)
}

// NewAttemptServiceWithClock allows deterministic timestamps in tests.
func NewAttemptServiceWithClock(tenants TenantResolver, jobs JobScheduler, now func() time.Time) *AttemptService {
	return &AttemptService{tenants: tenants, scheduler: jobs, now: now, newID: uuid.NewString}
}

// Start opens an attempt of a published quiz for a user and schedules its forced end.
// A user has at most one active attempt across all quizzes of the tenant.
func (s *AttemptService) Start(ctx context.Context, tenantID, userID, quizID string) (domain.AttemptView, error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return domain.AttemptView{}, err
	}

	now := stamp(s.now())
	user, err := stores.Users.Upsert(ctx, userID, now)
	if err != nil {
		return domain.AttemptView{}, domain.Internal("upsert user", err)
	}

	active, found, err := stores.Attempts.FindActive(ctx, user.ID)
	if err != nil {
		return domain.AttemptView{}, domain.Internal("find active attempt", err)
	}
	if found {
		return domain.AttemptView{}, domain.Conflict("There is an active attempt with id %q for this user.", active.ID)
	}

	view, err := activeQuiz(ctx, stores, quizID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if view.Quiz.Status != domain.QuizPublished {
		return domain.AttemptView{}, domain.Invalid("This quiz not published.")
	}

	attempt := domain.Attempt{
		ID:        s.newID(),
		UserID:    user.ID,
		QuizID:    view.Quiz.ID,
		VersionID: view.Version.ID,
		StartTime: now,
		Active:    true,
	}
	var delay time.Duration
	if view.Version.Duration != nil {
		delay = time.Duration(*view.Version.Duration) * time.Second
		attempt.EndTime = now.Add(delay)
	}

	if err := stores.Attempts.Insert(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrActiveAttemptExists) {
			return domain.AttemptView{}, domain.Conflict("There is an active attempt for this user.")
		}
		return domain.AttemptView{}, domain.Internal("create attempt", err)
	}

	if view.Version.Duration != nil {
		payload := EndAttemptPayload{TenantID: tenantID, AttemptID: attempt.ID}
		if _, err := s.scheduler.Schedule(ctx, JobEndAttempt, tenantID+":"+attempt.ID, payload, delay); err != nil {
			// Without the deadline job the attempt would never expire; close it now.
			_, _ = stores.Attempts.End(ctx, attempt.ID, now)
			return domain.AttemptView{}, domain.Internal("schedule attempt end", err)
		}
	}
	return domain.AttemptView{Attempt: attempt, Version: view.Version}, nil
}

// End finishes an active attempt on behalf of its user.
func (s *AttemptService) End(ctx context.Context, tenantID, userID, attemptID string) (domain.AttemptView, error) {
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if !attempt.Active {
		return domain.AttemptView{}, domain.Invalid("This attempt has already been ended.")
	}

	now := stamp(s.now())
	ended, err := stores.Attempts.End(ctx, attempt.ID, now)
	if err != nil {
		return domain.AttemptView{}, domain.Internal("end attempt", err)
	}
	if !ended {
		return domain.AttemptView{}, domain.Invalid("This attempt has already been ended.")
	}
	attempt.Active = false
	attempt.EndTime = now
	return s.withVersion(ctx, stores, attempt)
}

// ForceEnd is the deadline path. It reports whether this call ended the attempt;
// an attempt that is already inactive is left untouched.
func (s *AttemptService) ForceEnd(ctx context.Context, tenantID, attemptID string) (bool, error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return false, err
	}
	attempt, err := stores.Attempts.Get(ctx, attemptID)
	if err != nil {
		return false, err
	}
	if !attempt.Active {
		return false, nil
	}
	return stores.Attempts.End(ctx, attempt.ID, stamp(s.now()))
}

func (s *AttemptService) Get(ctx context.Context, tenantID, userID, attemptID string) (domain.AttemptView, error) {
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	return s.withVersion(ctx, stores, attempt)
}

// List pages through the attempts of a user, newest first.
func (s *AttemptService) List(ctx context.Context, tenantID, userID string, page domain.PageRequest) (domain.Page[domain.AttemptView], error) {
	return s.list(ctx, tenantID, AttemptFilter{UserID: userID}, page)
}

// ListForQuiz pages through the attempts of a user on one quiz, newest first.
func (s *AttemptService) ListForQuiz(ctx context.Context, tenantID, userID, quizID string, page domain.PageRequest) (domain.Page[domain.AttemptView], error) {
	return s.list(ctx, tenantID, AttemptFilter{UserID: userID, QuizID: quizID}, page)
}

// SubmitAnswer grades and records the single response of a question in an attempt.
func (s *AttemptService) SubmitAnswer(ctx context.Context, tenantID, userID, attemptID, questionID string, answer domain.Answer) (domain.ResponseView, error) {
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.ResponseView{}, err
	}
	if !attempt.Active {
		return domain.ResponseView{}, domain.Invalid("This attempt ended.")
	}

	question, err := s.attemptQuestion(ctx, stores, attempt, questionID)
	if err != nil {
		return domain.ResponseView{}, err
	}

	submitted, err := stores.Responses.Exists(ctx, attempt.ID, question.ID)
	if err != nil {
		return domain.ResponseView{}, domain.Internal("check response", err)
	}
	if submitted {
		return domain.ResponseView{}, domain.Invalid("This question submitted.")
	}

	score, err := Grade(question, answer)
	if err != nil {
		return domain.ResponseView{}, err
	}

	response := domain.Response{
		ID:         s.newID(),
		AttemptID:  attempt.ID,
		QuestionID: question.ID,
		Answer:     answer,
		Score:      score,
		SubmitTime: stamp(s.now()),
	}
	if err := stores.Responses.Insert(ctx, response); err != nil {
		if errors.Is(err, domain.ErrDuplicateResponse) {
			return domain.ResponseView{}, domain.Invalid("This question submitted.")
		}
		return domain.ResponseView{}, domain.Internal("save response", err)
	}
	return domain.ResponseView{Response: response, Question: question}, nil
}

// Question returns a question of the attempt. Callers must strip the answer
// before showing it to the attempt taker.
func (s *AttemptService) Question(ctx context.Context, tenantID, userID, attemptID, questionID string) (domain.Question, error) {
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.Question{}, err
	}
	return s.attemptQuestion(ctx, stores, attempt, questionID)
}

// Questions pages through the questions of the attempt's frozen version.
func (s *AttemptService) Questions(ctx context.Context, tenantID, userID, attemptID string, page domain.PageRequest) (domain.Page[domain.Question], error) {
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.Page[domain.Question]{}, err
	}
	return listQuestions(ctx, stores, attempt.VersionID, page)
}

func (s *AttemptService) Response(ctx context.Context, tenantID, userID, attemptID, responseID string) (domain.ResponseView, error) {
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.ResponseView{}, err
	}
	response, err := stores.Responses.Get(ctx, attempt.ID, responseID)
	if errors.Is(err, domain.ErrResponseNotFound) {
		return domain.ResponseView{}, domain.NotFound("There is no response with this id for this attempt.")
	}
	if err != nil {
		return domain.ResponseView{}, domain.Internal("load response", err)
	}
	question, err := stores.Questions.Get(ctx, attempt.VersionID, response.QuestionID)
	if err != nil {
		return domain.ResponseView{}, domain.Internal("load response question", err)
	}
	return domain.ResponseView{Response: response, Question: question}, nil
}

// Responses pages through the responses of an attempt, latest submission first.
func (s *AttemptService) Responses(ctx context.Context, tenantID, userID, attemptID string, page domain.PageRequest) (domain.Page[domain.ResponseView], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.ResponseView]{}, err
	}
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.Page[domain.ResponseView]{}, err
	}
	responses, total, err := stores.Responses.List(ctx, attempt.ID, page)
	if err != nil {
		return domain.Page[domain.ResponseView]{}, domain.Internal("list responses", err)
	}
	views := make([]domain.ResponseView, 0, len(responses))
	for _, r := range responses {
		question, err := stores.Questions.Get(ctx, attempt.VersionID, r.QuestionID)
		if err != nil {
			return domain.Page[domain.ResponseView]{}, domain.Internal("load response question", err)
		}
		views = append(views, domain.ResponseView{Response: r, Question: question})
	}
	return domain.NewPage(page, views, total), nil
}

// Analysis aggregates the score of an attempt from its questions and responses.
func (s *AttemptService) Analysis(ctx context.Context, tenantID, userID, attemptID string) (domain.Analysis, error) {
	stores, attempt, err := s.userAttempt(ctx, tenantID, userID, attemptID)
	if err != nil {
		return domain.Analysis{}, err
	}

	var (
		questions []domain.Question
		responses []domain.Response
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		questions, err = stores.Questions.All(gctx, attempt.VersionID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = stores.Responses.All(gctx, attempt.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Analysis{}, domain.Internal("load attempt analysis", err)
	}
	return Analyze(attempt, questions, responses), nil
}

func (s *AttemptService) list(ctx context.Context, tenantID string, filter AttemptFilter, page domain.PageRequest) (domain.Page[domain.AttemptView], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.AttemptView]{}, err
	}
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Page[domain.AttemptView]{}, err
	}
	if err := ensureUser(ctx, stores, filter.UserID); err != nil {
		return domain.Page[domain.AttemptView]{}, err
	}
	if filter.QuizID != "" {
		ok, err := stores.Quizzes.Exists(ctx, filter.QuizID)
		if err != nil {
			return domain.Page[domain.AttemptView]{}, domain.Internal("check quiz", err)
		}
		if !ok {
			return domain.Page[domain.AttemptView]{}, domain.NotFound("There is no quiz with this id.")
		}
	}

	attempts, total, err := stores.Attempts.List(ctx, filter, page)
	if err != nil {
		return domain.Page[domain.AttemptView]{}, domain.Internal("list attempts", err)
	}
	versions := make(map[string]domain.QuizVersion)
	views := make([]domain.AttemptView, 0, len(attempts))
	for _, a := range attempts {
		v, ok := versions[a.VersionID]
		if !ok {
			if v, err = stores.Versions.Get(ctx, a.VersionID); err != nil {
				return domain.Page[domain.AttemptView]{}, domain.Internal("load attempt version", err)
			}
			versions[a.VersionID] = v
		}
		views = append(views, domain.AttemptView{Attempt: a, Version: v})
	}
	return domain.NewPage(page, views, total), nil
}

// userAttempt loads an attempt owned by the user.
func (s *AttemptService) userAttempt(ctx context.Context, tenantID, userID, attemptID string) (Stores, domain.Attempt, error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return Stores{}, domain.Attempt{}, err
	}
	if err := ensureUser(ctx, stores, userID); err != nil {
		return Stores{}, domain.Attempt{}, err
	}
	attempt, err := stores.Attempts.Get(ctx, attemptID)
	if errors.Is(err, domain.ErrAttemptNotFound) || (err == nil && attempt.UserID != userID) {
		return Stores{}, domain.Attempt{}, domain.NotFound("There is no attempt with this id for this user.")
	}
	if err != nil {
		return Stores{}, domain.Attempt{}, domain.Internal("load attempt", err)
	}
	return stores, attempt, nil
}

func (s *AttemptService) attemptQuestion(ctx context.Context, stores Stores, attempt domain.Attempt, questionID string) (domain.Question, error) {
	question, err := stores.Questions.Get(ctx, attempt.VersionID, questionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return domain.Question{}, domain.NotFound("There is no question with this id for this attempt.")
	}
	if err != nil {
		return domain.Question{}, domain.Internal("load question", err)
	}
	return question, nil
}

func (s *AttemptService) withVersion(ctx context.Context, stores Stores, attempt domain.Attempt) (domain.AttemptView, error) {
	version, err := stores.Versions.Get(ctx, attempt.VersionID)
	if err != nil {
		return domain.AttemptView{}, domain.Internal("load attempt version", err)
	}
	return domain.AttemptView{Attempt: attempt, Version: version}, nil
}

func ensureUser(ctx context.Context, stores Stores, userID string) error {
	ok, err := stores.Users.Exists(ctx, userID)
	if err != nil {
		return domain.Internal("check user", err)
	}
	if !ok {
		return domain.NotFound("There is no user with this id.")
	}
	return nil
}
