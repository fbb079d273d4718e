package app

import (
	"tenant-quiz-service/internal/domain"
)

// Grade scores a submitted answer: full points on an exact match with the key,
// zero otherwise. The answer must have the JSON type the question type expects.
func Grade(question domain.Question, answer domain.Answer) (int, error) {
	switch question.Type {
	case domain.QuestionTrueFalse:
		if answer.Kind() != domain.AnswerBool {
			return 0, domain.Invalid(`Invalid "answer": It must be a boolean, got %s.`, answer.Kind())
		}
	case domain.QuestionMultipleChoice, domain.QuestionFillInBlank:
		if answer.Kind() != domain.AnswerText {
			return 0, domain.Invalid(`Invalid "answer": It must be a string, got %s.`, answer.Kind())
		}
	default:
		return 0, domain.Invalid(`Invalid "answer": Open-ended questions are not supported.`)
	}
	if answer.Equal(question.Answer) {
		return question.Points, nil
	}
	return 0, nil
}

// Analyze derives the score summary of an attempt.
func Analyze(attempt domain.Attempt, questions []domain.Question, responses []domain.Response) domain.Analysis {
	a := domain.Analysis{
		StartTime:      attempt.StartTime,
		EndTime:        attempt.EndTime,
		TotalQuestions: len(questions),
		TotalAnswers:   len(responses),
	}
	for _, q := range questions {
		a.TotalPoints += q.Points
	}
	for _, r := range responses {
		if r.Score > 0 {
			a.TotalCorrectAnswers++
		}
		a.TotalScore += r.Score
	}
	return a
}
