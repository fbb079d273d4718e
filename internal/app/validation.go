package app

import (
	"tenant-quiz-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// lengthBetween reports whether s holds between min and max characters.
func lengthBetween(s string, rule string) bool {
	return validate.Var(s, rule) == nil
}

func validateTitle(title string) error {
	if !lengthBetween(title, "min=1,max=250") {
		return domain.Invalid(`Invalid "title": It must be a string between 1 and 250 characters.`)
	}
	return nil
}

func validateDescription(description string) error {
	if !lengthBetween(description, "min=1,max=500") {
		return domain.Invalid(`Invalid "description": It must be a string between 1 and 500 characters.`)
	}
	return nil
}

func validateDuration(duration *int) error {
	if duration != nil && validate.Var(*duration, "min=1") != nil {
		return domain.Invalid(`Invalid "duration": It must be a positive integer.`)
	}
	return nil
}

func validateQuestionType(t domain.QuestionType) error {
	if !t.Valid() {
		return domain.Invalid(`Invalid "type".`)
	}
	return nil
}

func validateText(text string) error {
	if !lengthBetween(text, "min=1,max=500") {
		return domain.Invalid(`Invalid "text": It must be a string between 1 and 500 characters.`)
	}
	return nil
}

func validateOptions(t domain.QuestionType, options []string) error {
	if t != domain.QuestionMultipleChoice {
		if options != nil {
			return domain.Invalid(`Invalid "options": It must be null for non-multiple-choice questions.`)
		}
		return nil
	}
	if validate.Var(options, "min=1,max=100") != nil {
		return domain.Invalid(`Invalid "options": It must be an array containing between 1 and 100 options for multiple-choice questions.`)
	}
	if validate.Var(options, "dive,min=1,max=100") != nil {
		return domain.Invalid(`Invalid "options": Each option must be a string between 1 and 100 characters for multiple-choice questions.`)
	}
	return nil
}

func validateAnswer(t domain.QuestionType, options []string, answer domain.Answer) error {
	switch t {
	case domain.QuestionTrueFalse:
		if _, ok := answer.Bool(); !ok {
			return domain.Invalid(`Invalid "answer": It must be a boolean for true-false questions.`)
		}
	case domain.QuestionMultipleChoice:
		text, ok := answer.Text()
		if !ok || !contains(options, text) {
			return domain.Invalid(`Invalid "answer": It must be one of the provided options for multiple-choice questions.`)
		}
	case domain.QuestionFillInBlank:
		text, ok := answer.Text()
		if !ok || !lengthBetween(text, "min=1,max=100") {
			return domain.Invalid(`Invalid "answer": It must be a string between 1 and 100 characters for fill-in-the-blank questions.`)
		}
	default:
		return domain.Invalid(`Invalid "answer": Open-ended questions are not supported.`)
	}
	return nil
}

func validatePoints(points int) error {
	if validate.Var(points, "min=1") != nil {
		return domain.Invalid(`Invalid "points": It must be a positive integer.`)
	}
	return nil
}

func validatePage(page domain.PageRequest) (domain.PageRequest, error) {
	if page.Page == 0 {
		page.Page = domain.DefaultPage
	}
	if page.Limit == 0 {
		page.Limit = domain.DefaultLimit
	}
	if page.Page < 1 {
		return page, domain.Invalid(`Invalid "page": It must be a positive integer.`)
	}
	if page.Limit < 1 {
		return page, domain.Invalid(`Invalid "limit": It must be a positive integer.`)
	}
	return page, nil
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
