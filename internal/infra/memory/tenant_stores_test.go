package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	stores, err := NewSchemaFactory().Materialize(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	boom := errors.New("boom")
	err = stores.InTx(ctx, func(ctx context.Context, tx app.Stores) error {
		if err := tx.Quizzes.Insert(ctx, domain.Quiz{ID: "q1", Status: domain.QuizDrafted, CreatedAt: t0}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ok, _ := stores.Quizzes.Exists(ctx, "q1"); ok {
		t.Fatalf("expected the insert to be rolled back")
	}

	err = stores.InTx(ctx, func(ctx context.Context, tx app.Stores) error {
		return tx.Quizzes.Insert(ctx, domain.Quiz{ID: "q1", Status: domain.QuizDrafted, CreatedAt: t0})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, _ := stores.Quizzes.Exists(ctx, "q1"); !ok {
		t.Fatalf("expected the committed quiz")
	}
}

func TestTenantsDoNotShareRecords(t *testing.T) {
	ctx := context.Background()
	factory := NewSchemaFactory()
	a, _ := factory.Materialize(ctx, "tenant-a")
	b, _ := factory.Materialize(ctx, "tenant-b")

	if _, err := a.Users.Upsert(ctx, "u1", t0); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ok, _ := b.Users.Exists(ctx, "u1"); ok {
		t.Fatalf("expected tenant b not to see tenant a's user")
	}

	again, _ := factory.Materialize(ctx, "tenant-a")
	if ok, _ := again.Users.Exists(ctx, "u1"); !ok {
		t.Fatalf("expected re-materializing to keep the tenant's data")
	}
}

func TestVersionStoreKeepsOneActiveVersion(t *testing.T) {
	ctx := context.Background()
	stores, _ := NewSchemaFactory().Materialize(ctx, "tenant-1")
	if err := stores.Quizzes.Insert(ctx, domain.Quiz{ID: "q1", CreatedAt: t0}); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
	if err := stores.Versions.Insert(ctx, domain.QuizVersion{ID: "v1", QuizID: "q1", Active: true, CreatedAt: t0}); err != nil {
		t.Fatalf("insert v1: %v", err)
	}
	err := stores.Versions.Insert(ctx, domain.QuizVersion{ID: "v2", QuizID: "q1", Active: true, CreatedAt: t0})
	if !errors.Is(err, domain.ErrActiveVersionExists) {
		t.Fatalf("expected ErrActiveVersionExists, got %v", err)
	}

	if _, err := stores.Versions.GetActive(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if err := stores.Versions.Update(ctx, domain.QuizVersion{ID: "v1", QuizID: "q1", CreatedAt: t0}); err != nil {
		t.Fatalf("deactivate v1: %v", err)
	}
	if _, err := stores.Versions.GetActive(ctx, "q1"); !errors.Is(err, domain.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestAttemptStoreEndIsConditional(t *testing.T) {
	ctx := context.Background()
	stores, _ := NewSchemaFactory().Materialize(ctx, "tenant-1")
	if err := stores.Attempts.Insert(ctx, domain.Attempt{ID: "a1", UserID: "u1", Active: true, StartTime: t0}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := stores.Attempts.Insert(ctx, domain.Attempt{ID: "a2", UserID: "u1", Active: true, StartTime: t0})
	if !errors.Is(err, domain.ErrActiveAttemptExists) {
		t.Fatalf("expected ErrActiveAttemptExists, got %v", err)
	}

	ended, err := stores.Attempts.End(ctx, "a1", t0.Add(time.Minute))
	if err != nil || !ended {
		t.Fatalf("expected the first end to win, got %v (%v)", ended, err)
	}
	ended, err = stores.Attempts.End(ctx, "a1", t0.Add(2*time.Minute))
	if err != nil || ended {
		t.Fatalf("expected the second end to be a no-op, got %v (%v)", ended, err)
	}
	got, _ := stores.Attempts.Get(ctx, "a1")
	if !got.EndTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected the first end time to stick, got %s", got.EndTime)
	}
	if _, err := stores.Attempts.End(ctx, "missing", t0); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
	if _, found, _ := stores.Attempts.FindActive(ctx, "u1"); found {
		t.Fatalf("expected no active attempt after end")
	}
}

func TestResponseStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	stores, _ := NewSchemaFactory().Materialize(ctx, "tenant-1")
	r := domain.Response{ID: "r1", AttemptID: "a1", QuestionID: "q1", Answer: domain.BoolAnswer(true), SubmitTime: t0}
	if err := stores.Responses.Insert(ctx, r); err != nil {
		t.Fatalf("insert: %v", err)
	}
	r.ID = "r2"
	if err := stores.Responses.Insert(ctx, r); !errors.Is(err, domain.ErrDuplicateResponse) {
		t.Fatalf("expected ErrDuplicateResponse, got %v", err)
	}
	if ok, _ := stores.Responses.Exists(ctx, "a1", "q1"); !ok {
		t.Fatalf("expected the response to exist")
	}
}

func TestQuizStoreSetStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	stores, _ := NewSchemaFactory().Materialize(ctx, "tenant-1")
	if err := stores.Quizzes.Insert(ctx, domain.Quiz{ID: "q1", Status: domain.QuizDrafted, CreatedAt: t0, UpdatedAt: t0}); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}

	later := t0.Add(time.Minute)
	if err := stores.Quizzes.SetStatus(ctx, "q1", domain.QuizDrafted, domain.QuizPublished, later); err != nil {
		t.Fatalf("publish: %v", err)
	}
	err := stores.Quizzes.SetStatus(ctx, "q1", domain.QuizDrafted, domain.QuizDrafted, later.Add(time.Minute))
	if !errors.Is(err, domain.ErrQuizStatusChanged) {
		t.Fatalf("expected ErrQuizStatusChanged, got %v", err)
	}
	quiz, err := stores.Quizzes.Get(ctx, "q1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Status != domain.QuizPublished || !quiz.UpdatedAt.Equal(later) {
		t.Fatalf("expected published quiz stamped at %v, got %+v", later, quiz)
	}

	if err := stores.Quizzes.SetStatus(ctx, "missing", domain.QuizDrafted, domain.QuizPublished, later); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}
