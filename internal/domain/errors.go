package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when no profile exists for a user id.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering an id that is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrMissingAnswers rejects an evaluation with no questions or no answers.
	ErrMissingAnswers = errors.New("Missing questions or answers")
	// ErrMalformedQuestion rejects an evaluation whose answer key is unusable.
	ErrMalformedQuestion = errors.New("malformed question")
	// ErrQuizNotFound indicates a generated quiz is no longer cached.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoContent is returned by a generator that produced nothing usable.
	ErrNoContent = errors.New("no content generated")
)

// Kind classifies failures for callers of the pipeline.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindUpstream    Kind = "upstream_failure"
	KindValidation  Kind = "validation_failure"
	KindPersistence Kind = "persistence_failure"
	KindInternal    Kind = "internal"
)

// Error attaches a Kind and operation name to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind. A nil err stays nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err, inferring it from sentinels when unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrQuizNotFound):
		return KindNotFound
	case errors.Is(err, ErrMissingAnswers), errors.Is(err, ErrMalformedQuestion):
		return KindValidation
	default:
		return KindInternal
	}
}
