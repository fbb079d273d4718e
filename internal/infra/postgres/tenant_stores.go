package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// isUniqueViolation reports a unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

// table renders the aliased per-tenant table for ModelTableExpr.
func table(name, alias string) (string, bun.Ident, bun.Ident) {
	return "? AS ?", bun.Ident(name), bun.Ident(alias)
}

type userStore struct {
	db    bun.IDB
	table string
}

func (s *userStore) Upsert(ctx context.Context, userID string, now time.Time) (domain.User, error) {
	row := userRow{ID: userID, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.NewInsert().
		Model(&row).
		ModelTableExpr(table(s.table, "u")).
		On("CONFLICT (id) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *userStore) Exists(ctx context.Context, userID string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*userRow)(nil)).
		ModelTableExpr(table(s.table, "u")).
		Where("id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return ok, nil
}

type quizStore struct {
	db    bun.IDB
	table string
}

func (s *quizStore) Insert(ctx context.Context, quiz domain.Quiz) error {
	row := newQuizRow(quiz)
	if _, err := s.db.NewInsert().Model(&row).ModelTableExpr(table(s.table, "qz")).Exec(ctx); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *quizStore) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	var row quizRow
	err := s.db.NewSelect().
		Model(&row).
		ModelTableExpr(table(s.table, "qz")).
		Where("id = ?", quizID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	return row.toDomain(), nil
}

// SetStatus only writes while the row still holds from.
func (s *quizStore) SetStatus(ctx context.Context, quizID string, from, to domain.QuizStatus, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		ModelTableExpr(table(s.table, "qz")).
		Set("status = ?", string(to)).
		Set("updated_at = ?", at).
		Where("id = ?", quizID).
		Where("status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set quiz status: %w", err)
	}
	if err := affected(res, domain.ErrQuizStatusChanged); err != nil {
		if ok, existsErr := s.Exists(ctx, quizID); existsErr == nil && !ok {
			return domain.ErrQuizNotFound
		}
		return err
	}
	return nil
}

func (s *quizStore) Exists(ctx context.Context, quizID string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*quizRow)(nil)).
		ModelTableExpr(table(s.table, "qz")).
		Where("id = ?", quizID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check quiz: %w", err)
	}
	return ok, nil
}

type versionStore struct {
	db      bun.IDB
	table   string
	quizzes string
}

func (s *versionStore) Insert(ctx context.Context, version domain.QuizVersion) error {
	row := newVersionRow(version)
	if _, err := s.db.NewInsert().Model(&row).ModelTableExpr(table(s.table, "v")).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrActiveVersionExists
		}
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (s *versionStore) Update(ctx context.Context, version domain.QuizVersion) error {
	row := newVersionRow(version)
	res, err := s.db.NewUpdate().
		Model(&row).
		ModelTableExpr(table(s.table, "v")).
		Column("title", "description", "duration", "active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrActiveVersionExists
		}
		return fmt.Errorf("update version: %w", err)
	}
	return affected(res, domain.ErrVersionNotFound)
}

func (s *versionStore) Get(ctx context.Context, versionID string) (domain.QuizVersion, error) {
	var row versionRow
	err := s.db.NewSelect().
		Model(&row).
		ModelTableExpr(table(s.table, "v")).
		Where("id = ?", versionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizVersion{}, domain.ErrVersionNotFound
	}
	if err != nil {
		return domain.QuizVersion{}, fmt.Errorf("get version: %w", err)
	}
	return row.toDomain(), nil
}

func (s *versionStore) GetActive(ctx context.Context, quizID string) (domain.QuizVersion, error) {
	var row versionRow
	err := s.db.NewSelect().
		Model(&row).
		ModelTableExpr(table(s.table, "v")).
		Where("quiz_id = ?", quizID).
		Where("active").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		exists, err := s.db.NewSelect().
			Model((*quizRow)(nil)).
			ModelTableExpr(table(s.quizzes, "qz")).
			Where("id = ?", quizID).
			Exists(ctx)
		if err != nil {
			return domain.QuizVersion{}, fmt.Errorf("check quiz: %w", err)
		}
		if !exists {
			return domain.QuizVersion{}, domain.ErrQuizNotFound
		}
		return domain.QuizVersion{}, domain.ErrVersionNotFound
	}
	if err != nil {
		return domain.QuizVersion{}, fmt.Errorf("get active version: %w", err)
	}
	return row.toDomain(), nil
}

func (s *versionStore) Count(ctx context.Context, quizID string) (int, error) {
	n, err := s.db.NewSelect().
		Model((*versionRow)(nil)).
		ModelTableExpr(table(s.table, "v")).
		Where("quiz_id = ?", quizID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count versions: %w", err)
	}
	return n, nil
}

func (s *versionStore) ListActive(ctx context.Context, page domain.PageRequest) ([]domain.QuizVersion, int, error) {
	return s.list(ctx, page, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("active")
	})
}

func (s *versionStore) ListByQuiz(ctx context.Context, quizID string, page domain.PageRequest) ([]domain.QuizVersion, int, error) {
	return s.list(ctx, page, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("quiz_id = ?", quizID)
	})
}

func (s *versionStore) list(ctx context.Context, page domain.PageRequest, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.QuizVersion, int, error) {
	var rows []versionRow
	total, err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr(table(s.table, "v")).
		Apply(filter).
		Order("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list versions: %w", err)
	}
	out := make([]domain.QuizVersion, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

type questionStore struct {
	db    bun.IDB
	table string
}

func (s *questionStore) Insert(ctx context.Context, questions ...domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, newQuestionRow(q))
	}
	if _, err := s.db.NewInsert().Model(&rows).ModelTableExpr(table(s.table, "qs")).Exec(ctx); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

func (s *questionStore) Update(ctx context.Context, question domain.Question) error {
	row := newQuestionRow(question)
	res, err := s.db.NewUpdate().
		Model(&row).
		ModelTableExpr(table(s.table, "qs")).
		Column("type", "text", "options", "answer", "points", "updated_at").
		WherePK().
		Where("version_id = ?", question.VersionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return affected(res, domain.ErrQuestionNotFound)
}

func (s *questionStore) Delete(ctx context.Context, versionID, questionID string) error {
	res, err := s.db.NewDelete().
		Model((*questionRow)(nil)).
		ModelTableExpr(table(s.table, "qs")).
		Where("id = ?", questionID).
		Where("version_id = ?", versionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return affected(res, domain.ErrQuestionNotFound)
}

func (s *questionStore) Get(ctx context.Context, versionID, questionID string) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().
		Model(&row).
		ModelTableExpr(table(s.table, "qs")).
		Where("id = ?", questionID).
		Where("version_id = ?", versionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return row.toDomain(), nil
}

func (s *questionStore) List(ctx context.Context, versionID string, page domain.PageRequest) ([]domain.Question, int, error) {
	var rows []questionRow
	total, err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr(table(s.table, "qs")).
		Where("version_id = ?", versionID).
		Order("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	return questionsOf(rows), total, nil
}

func (s *questionStore) All(ctx context.Context, versionID string) ([]domain.Question, error) {
	var rows []questionRow
	err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr(table(s.table, "qs")).
		Where("version_id = ?", versionID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questionsOf(rows), nil
}

func questionsOf(rows []questionRow) []domain.Question {
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

type attemptStore struct {
	db    bun.IDB
	table string
}

func (s *attemptStore) Insert(ctx context.Context, attempt domain.Attempt) error {
	row := newAttemptRow(attempt)
	if _, err := s.db.NewInsert().Model(&row).ModelTableExpr(table(s.table, "a")).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrActiveAttemptExists
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *attemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		ModelTableExpr(table(s.table, "a")).
		Where("id = ?", attemptID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *attemptStore) FindActive(ctx context.Context, userID string) (domain.Attempt, bool, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		ModelTableExpr(table(s.table, "a")).
		Where("user_id = ?", userID).
		Where("active").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("find active attempt: %w", err)
	}
	return row.toDomain(), true, nil
}

// End flips active only when it is still set, so concurrent enders race safely.
func (s *attemptStore) End(ctx context.Context, attemptID string, endTime time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*attemptRow)(nil)).
		ModelTableExpr(table(s.table, "a")).
		Set("active = FALSE").
		Set("end_time = ?", endTime).
		Where("id = ?", attemptID).
		Where("active").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("end attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("end attempt: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, attemptID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *attemptStore) List(ctx context.Context, filter app.AttemptFilter, page domain.PageRequest) ([]domain.Attempt, int, error) {
	var rows []attemptRow
	q := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr(table(s.table, "a"))
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.QuizID != "" {
		q = q.Where("quiz_id = ?", filter.QuizID)
	}
	total, err := q.
		Order("start_time DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

type responseStore struct {
	db    bun.IDB
	table string
}

func (s *responseStore) Insert(ctx context.Context, response domain.Response) error {
	row := newResponseRow(response)
	if _, err := s.db.NewInsert().Model(&row).ModelTableExpr(table(s.table, "r")).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateResponse
		}
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *responseStore) Exists(ctx context.Context, attemptID, questionID string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*responseRow)(nil)).
		ModelTableExpr(table(s.table, "r")).
		Where("attempt_id = ?", attemptID).
		Where("question_id = ?", questionID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check response: %w", err)
	}
	return ok, nil
}

func (s *responseStore) Get(ctx context.Context, attemptID, responseID string) (domain.Response, error) {
	var row responseRow
	err := s.db.NewSelect().
		Model(&row).
		ModelTableExpr(table(s.table, "r")).
		Where("id = ?", responseID).
		Where("attempt_id = ?", attemptID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("get response: %w", err)
	}
	return row.toDomain(), nil
}

func (s *responseStore) List(ctx context.Context, attemptID string, page domain.PageRequest) ([]domain.Response, int, error) {
	var rows []responseRow
	total, err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr(table(s.table, "r")).
		Where("attempt_id = ?", attemptID).
		Order("submit_time DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list responses: %w", err)
	}
	return responsesOf(rows), total, nil
}

func (s *responseStore) All(ctx context.Context, attemptID string) ([]domain.Response, error) {
	var rows []responseRow
	err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr(table(s.table, "r")).
		Where("attempt_id = ?", attemptID).
		Order("submit_time DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	return responsesOf(rows), nil
}

func responsesOf(rows []responseRow) []domain.Response {
	out := make([]domain.Response, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// affected maps an update that touched no row to notFound.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
