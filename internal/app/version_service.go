package app

import (
	"context"
	"errors"

	"tenant-quiz-service/internal/domain"
)

// VersionService reads the version history of a quiz, frozen versions included.
type VersionService struct {
	tenants TenantResolver
}

func NewVersionService(tenants TenantResolver) *VersionService {
	return &VersionService{tenants: tenants}
}

func (s *VersionService) Get(ctx context.Context, tenantID, quizID, versionID string) (domain.QuizVersion, error) {
	stores, err := s.quiz(ctx, tenantID, quizID)
	if err != nil {
		return domain.QuizVersion{}, err
	}
	return versionOf(ctx, stores, quizID, versionID)
}

func (s *VersionService) List(ctx context.Context, tenantID, quizID string, page domain.PageRequest) (domain.Page[domain.QuizVersion], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.QuizVersion]{}, err
	}
	stores, err := s.quiz(ctx, tenantID, quizID)
	if err != nil {
		return domain.Page[domain.QuizVersion]{}, err
	}
	versions, total, err := stores.Versions.ListByQuiz(ctx, quizID, page)
	if err != nil {
		return domain.Page[domain.QuizVersion]{}, domain.Internal("list versions", err)
	}
	return domain.NewPage(page, versions, total), nil
}

func (s *VersionService) Question(ctx context.Context, tenantID, quizID, versionID, questionID string) (domain.Question, error) {
	stores, err := s.quiz(ctx, tenantID, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	if _, err := versionOf(ctx, stores, quizID, versionID); err != nil {
		return domain.Question{}, err
	}
	return questionOf(ctx, stores, versionID, questionID)
}

func (s *VersionService) Questions(ctx context.Context, tenantID, quizID, versionID string, page domain.PageRequest) (domain.Page[domain.Question], error) {
	stores, err := s.quiz(ctx, tenantID, quizID)
	if err != nil {
		return domain.Page[domain.Question]{}, err
	}
	if _, err := versionOf(ctx, stores, quizID, versionID); err != nil {
		return domain.Page[domain.Question]{}, err
	}
	return listQuestions(ctx, stores, versionID, page)
}

func (s *VersionService) quiz(ctx context.Context, tenantID, quizID string) (Stores, error) {
	stores, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return Stores{}, err
	}
	ok, err := stores.Quizzes.Exists(ctx, quizID)
	if err != nil {
		return Stores{}, domain.Internal("check quiz", err)
	}
	if !ok {
		return Stores{}, domain.NotFound("There is no quiz with this id.")
	}
	return stores, nil
}

func versionOf(ctx context.Context, stores Stores, quizID, versionID string) (domain.QuizVersion, error) {
	version, err := stores.Versions.Get(ctx, versionID)
	if errors.Is(err, domain.ErrVersionNotFound) || (err == nil && version.QuizID != quizID) {
		return domain.QuizVersion{}, domain.NotFound("There is no version with this id for this quiz.")
	}
	if err != nil {
		return domain.QuizVersion{}, domain.Internal("load version", err)
	}
	return version, nil
}
