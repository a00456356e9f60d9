package scraper

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass is the coarse reason a run attempt ended. Rotation decisions
// are made on it.
type ErrorClass string

const (
	ClassNone        ErrorClass = ""
	ClassCaptcha     ErrorClass = "captcha"
	ClassLoginFailed ErrorClass = "login-failed"
	ClassInvalidURL  ErrorClass = "invalid-url"
	ClassTransport   ErrorClass = "transport"
)

var (
	ErrChallengeFailure = errors.New("challenge failed")
	ErrAuthFailure      = errors.New("authentication failed")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrTransportAnomaly = errors.New("transport anomaly")
)

// RunError ends a run attempt.
type RunError struct {
	Class ErrorClass
	Page  int
	URL   string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s on page %d: %v", e.Class, e.Page, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func newRunError(class ErrorClass, page int, url string, err error) *RunError {
	return &RunError{Class: class, Page: page, URL: url, Err: err}
}

// ClassOf extracts the class of a run-ending error. Errors outside the
// taxonomy classify as ClassNone.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Class
	}
	switch {
	case errors.Is(err, ErrChallengeFailure):
		return ClassCaptcha
	case errors.Is(err, ErrAuthFailure):
		return ClassLoginFailed
	case errors.Is(err, ErrInvalidTarget):
		return ClassInvalidURL
	case errors.Is(err, ErrTransportAnomaly):
		return ClassTransport
	}
	return ClassNone
}

// Retryable reports whether the same target should be retried with a
// different credential.
func (c ErrorClass) Retryable() bool {
	return c == ClassCaptcha || c == ClassLoginFailed
}

func errorLabel(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	if class := ClassOf(err); class != ClassNone {
		return string(class)
	}
	return "other"
}
