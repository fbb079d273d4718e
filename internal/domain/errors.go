package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the boundary layer.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindUnauthorized
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified error raised by the core. Message is safe to show to callers
// for every kind except KindInternal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Invalid(format string, args ...any) error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. The message is only logged, never rendered.
func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf reports the classification of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of a classified error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "An unexpected error occurred on the server."
}

// Store level sentinels. Services translate them into classified errors.
var (
	// ErrQuizNotFound is returned when a quiz id does not exist in the tenant.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrVersionNotFound is returned when no (active) version matches.
	ErrVersionNotFound = errors.New("quiz version not found")
	// ErrQuestionNotFound indicates a question id is not part of the version.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAttemptNotFound is returned when the attempt does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrResponseNotFound is returned when the response does not exist.
	ErrResponseNotFound = errors.New("response not found")
	// ErrClientNotFound is returned for unknown API clients.
	ErrClientNotFound = errors.New("client not found")
	// ErrActiveVersionExists signals the one-active-version constraint fired.
	ErrActiveVersionExists = errors.New("quiz already has an active version")
	// ErrActiveAttemptExists signals the one-active-attempt-per-user constraint fired.
	ErrActiveAttemptExists = errors.New("user already has an active attempt")
	// ErrQuizStatusChanged signals that a quiz left the status a write was conditioned on.
	ErrQuizStatusChanged = errors.New("quiz status changed")
	// ErrDuplicateResponse signals a second response for the same attempt and question.
	ErrDuplicateResponse = errors.New("question already answered in attempt")
)
