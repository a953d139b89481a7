// Package apperr defines the error taxonomy shared by the review and
// grade pipelines. Every user-visible failure carries a stable kind
// string; wrapped causes stay in logs.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindClone        Kind = "clone"
	KindAnalyze      Kind = "analyze"
	KindModel        Kind = "model"
	KindCancelled    Kind = "cancelled"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// Error is a classified error with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal if err is not
// a classified error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message of err without the
// kind prefix, falling back to err.Error().
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Err != nil {
			return fmt.Sprintf("%s: %v", ae.Message, ae.Err)
		}
		return ae.Message
	}
	return err.Error()
}
