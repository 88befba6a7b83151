// Package errors defines the error taxonomy shared across the capture
// pipeline. Every failure surfaced to a client is one of the kinds below;
// the router maps kinds to HTTP statuses and envelope contents.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for response mapping.
type Kind int

const (
	// KindConfiguration marks deployment bugs: missing schemas, unknown
	// type tags, captures without handlers. Never retried.
	KindConfiguration Kind = iota
	// KindValidation marks rejected input. The request aborts before
	// persistence.
	KindValidation
	// KindStorage marks schema-creation or insert failures, including
	// lock timeouts.
	KindStorage
	// KindNotifier marks an external send failure after a successful
	// persist. Data is saved, the notification is not.
	KindNotifier
	// KindAuthentication marks missing or bad credentials on a protected
	// action.
	KindAuthentication
)

// Error is the concrete error type used throughout the service.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the causal chain for errors.Is/As and Flatten.
func (e *Error) Unwrap() error { return e.cause }

// Kind reports the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// New constructs an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap constructs an error of the given kind with a cause attached.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Configuration reports a deployment bug.
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, fmt.Sprintf(format, args...))
}

// Validation reports rejected input.
func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

// Storage reports a persistence failure with its cause.
func Storage(msg string, cause error) *Error {
	return Wrap(KindStorage, msg, cause)
}

// Notifier reports an external send failure with its cause.
func Notifier(msg string, cause error) *Error {
	return Wrap(KindNotifier, msg, cause)
}

// Unauthorized reports a failed or missing authentication.
func Unauthorized(msg string) *Error {
	return New(KindAuthentication, msg)
}

// KindOf returns the kind of err, or ok=false when err carries no kind.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Flatten walks the causal chain of err and returns each message in cause
// order, outermost first. Used to build the debug list of a failure
// envelope.
func Flatten(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}
