package app_test

import (
	"context"
	"testing"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"tenant-quiz-service/internal/infra/memory"
)

func TestCreateQuestionValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	quiz := h.createQuiz(t, nil)

	cases := []struct {
		name    string
		in      app.QuestionInput
		message string
	}{
		{
			name:    "unknown type",
			in:      app.QuestionInput{Type: "essay", Text: "Why?", Answer: domain.TextAnswer("because"), Points: 1},
			message: `Invalid "type".`,
		},
		{
			name:    "options on true-false",
			in:      app.QuestionInput{Type: domain.QuestionTrueFalse, Text: "Yes?", Options: []string{"a"}, Answer: domain.BoolAnswer(true), Points: 1},
			message: `Invalid "options": It must be null for non-multiple-choice questions.`,
		},
		{
			name:    "answer outside options",
			in:      multipleChoice("Pick", []string{"a", "b"}, "c", 1),
			message: `Invalid "answer": It must be one of the provided options for multiple-choice questions.`,
		},
		{
			name:    "multiple choice without options",
			in:      app.QuestionInput{Type: domain.QuestionMultipleChoice, Text: "Pick", Answer: domain.TextAnswer("a"), Points: 1},
			message: `Invalid "options": It must be an array containing between 1 and 100 options for multiple-choice questions.`,
		},
		{
			name:    "string answer on true-false",
			in:      app.QuestionInput{Type: domain.QuestionTrueFalse, Text: "Yes?", Answer: domain.TextAnswer("true"), Points: 1},
			message: `Invalid "answer": It must be a boolean for true-false questions.`,
		},
		{
			name:    "empty blank",
			in:      fillIn("Capital of France", "", 1),
			message: `Invalid "answer": It must be a string between 1 and 100 characters for fill-in-the-blank questions.`,
		},
		{
			name:    "zero points",
			in:      trueFalse("Yes?", true, 0),
			message: `Invalid "points": It must be a positive integer.`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.questions.Create(ctx, tenantA, quiz.Quiz.ID, tc.in)
			expectKind(t, err, domain.KindInvalid, tc.message)
		})
	}
}

func TestQuestionEditsRequireDraftedQuiz(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	quiz := h.createQuiz(t, nil)
	q := h.addQuestion(t, quiz.Quiz.ID, fillIn("Capital of France", "Paris", 3))
	h.publish(t, quiz.Quiz.ID)

	_, err := h.questions.Create(ctx, tenantA, quiz.Quiz.ID, trueFalse("Late", true, 1))
	expectKind(t, err, domain.KindConflict, "This quiz cannot be updated.")
	_, err = h.questions.Delete(ctx, tenantA, quiz.Quiz.ID, q.ID)
	expectKind(t, err, domain.KindConflict, "This quiz cannot be updated.")

	// Reads still work on a published quiz.
	got, err := h.questions.Get(ctx, tenantA, quiz.Quiz.ID, q.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if text, _ := got.Answer.Text(); text != "Paris" {
		t.Fatalf("expected answer Paris, got %q", text)
	}
}

func TestUpdateQuestionChecksResultingShape(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	quiz := h.createQuiz(t, nil)
	q := h.addQuestion(t, quiz.Quiz.ID, trueFalse("Water is wet", true, 1))

	mc := domain.QuestionMultipleChoice
	_, err := h.questions.Update(ctx, tenantA, quiz.Quiz.ID, q.ID, app.QuestionPatch{Type: &mc})
	expectKind(t, err, domain.KindInvalid, `Invalid "options": It must be an array containing between 1 and 100 options for multiple-choice questions.`)

	answer := domain.TextAnswer("yes")
	updated, err := h.questions.Update(ctx, tenantA, quiz.Quiz.ID, q.ID, app.QuestionPatch{
		Type:       &mc,
		Options:    []string{"yes", "no"},
		SetOptions: true,
		Answer:     &answer,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Type != mc || len(updated.Options) != 2 || !updated.Answer.Equal(answer) {
		t.Fatalf("unexpected question after update: %+v", updated)
	}
	if updated.Points != 1 || updated.Text != "Water is wet" {
		t.Fatalf("expected untouched fields to be kept, got %+v", updated)
	}
}

func TestUpdateOptionsKeepsAnswerAmongThem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	quiz := h.createQuiz(t, nil)
	q := h.addQuestion(t, quiz.Quiz.ID, multipleChoice("Pick b", []string{"a", "b", "c"}, "b", 1))

	_, err := h.questions.Update(ctx, tenantA, quiz.Quiz.ID, q.ID, app.QuestionPatch{Options: []string{"x", "y"}, SetOptions: true})
	expectKind(t, err, domain.KindInvalid, `Invalid "answer": It must be one of the provided options for multiple-choice questions.`)

	stored, err := h.questions.Get(ctx, tenantA, quiz.Quiz.ID, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Options) != 3 {
		t.Fatalf("expected rejected options to leave the question unchanged, got %v", stored.Options)
	}

	updated, err := h.questions.Update(ctx, tenantA, quiz.Quiz.ID, q.ID, app.QuestionPatch{Options: []string{"b", "d"}, SetOptions: true})
	if err != nil {
		t.Fatalf("update options keeping the answer: %v", err)
	}
	if len(updated.Options) != 2 || !updated.Answer.Equal(domain.TextAnswer("b")) {
		t.Fatalf("unexpected question after update: %+v", updated)
	}
}

// publishingQuizStore publishes the quiz right after the next read of it, so the
// caller acts on a drafted quiz that is already published.
type publishingQuizStore struct {
	app.QuizStore
	armed bool
}

func (s *publishingQuizStore) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.QuizStore.Get(ctx, quizID)
	if err == nil && s.armed {
		s.armed = false
		if err := s.QuizStore.SetStatus(ctx, quizID, domain.QuizDrafted, domain.QuizPublished, quiz.UpdatedAt); err != nil {
			return domain.Quiz{}, err
		}
	}
	return quiz, err
}

type publishingFactory struct {
	app.SchemaFactory
	quizzes *publishingQuizStore
}

func (f *publishingFactory) Materialize(ctx context.Context, tenantID string) (app.Stores, error) {
	stores, err := f.SchemaFactory.Materialize(ctx, tenantID)
	if err != nil {
		return app.Stores{}, err
	}
	f.quizzes.QuizStore = stores.Quizzes
	stores.Quizzes = f.quizzes
	return stores, nil
}

func TestEditsDoNotUndoConcurrentPublish(t *testing.T) {
	ctx := context.Background()
	racing := &publishingQuizStore{}
	registry := app.NewTenantRegistry(&publishingFactory{SchemaFactory: memory.NewSchemaFactory(), quizzes: racing})
	quizzes := app.NewQuizService(registry)
	questions := app.NewQuestionService(registry)

	view, err := quizzes.Create(ctx, tenantA, app.QuizInput{Title: "Race", Description: "Publish during edit"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	racing.armed = true
	_, err = questions.Create(ctx, tenantA, view.Quiz.ID, trueFalse("Q", true, 1))
	expectKind(t, err, domain.KindConflict, "This quiz cannot be updated.")

	got, err := quizzes.Get(ctx, tenantA, view.Quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.Quiz.Status != domain.QuizPublished {
		t.Fatalf("expected the concurrent publish to stand, got status %s", got.Quiz.Status)
	}
	listed, err := questions.List(ctx, tenantA, view.Quiz.ID, domain.PageRequest{})
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(listed.Items) != 0 {
		t.Fatalf("expected the rejected question to be rolled back, got %d", len(listed.Items))
	}

	if _, err := quizzes.Draft(ctx, tenantA, view.Quiz.ID); err != nil {
		t.Fatalf("draft: %v", err)
	}
	racing.armed = true
	title := "Renamed"
	_, err = quizzes.Update(ctx, tenantA, view.Quiz.ID, app.QuizPatch{Title: &title})
	expectKind(t, err, domain.KindConflict, "This quiz cannot be updated.")

	got, err = quizzes.Get(ctx, tenantA, view.Quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.Quiz.Status != domain.QuizPublished || got.Version.Title != "Race" {
		t.Fatalf("expected published quiz with its title untouched, got %+v", got)
	}
}

func TestDeleteQuestion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	quiz := h.createQuiz(t, nil)
	q := h.addQuestion(t, quiz.Quiz.ID, trueFalse("Delete me", false, 1))

	deleted, err := h.questions.Delete(ctx, tenantA, quiz.Quiz.ID, q.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != q.ID {
		t.Fatalf("expected the deleted question back, got %s", deleted.ID)
	}

	_, err = h.questions.Get(ctx, tenantA, quiz.Quiz.ID, q.ID)
	expectKind(t, err, domain.KindNotFound, "There is no question with this id for this version.")

	list, err := h.questions.List(ctx, tenantA, quiz.Quiz.ID, domain.PageRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Items) != 0 || list.Pagination.Page != 0 {
		t.Fatalf("expected an empty listing, got %+v", list.Pagination)
	}
}
