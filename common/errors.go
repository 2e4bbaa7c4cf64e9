package common

import (
	"errors"
	"fmt"
	"strings"
)

// Commonly used errors
var (
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrUsernameTaken   = ErrInvalidInput("username already taken")
	ErrInvalidCreds    = ErrInvalidInput("username or password incorrect")
	ErrEmptyUsername   = ErrInvalidInput("empty username")
	ErrEmptyPassword   = ErrInvalidInput("empty password")
	ErrEmptyBody       = ErrInvalidInput("empty post body")
	ErrUsernameTooLong = ErrTooLong("username")
	ErrPasswordTooLong = ErrTooLong("password")
	ErrTitleTooLong    = ErrTooLong("thread title")
	ErrBodyTooLong     = ErrTooLong("post body")
	ErrContainsNull    = ErrInvalidInput("null byte in input")
	ErrNoPermissions   = ErrAccessDenied("insufficient permissions")
)

// StatusError is a simple error with HTTP status code attached
type StatusError struct {
	Err  error
	Code int
}

func (e StatusError) Error() string {
	var prefix string
	switch e.Code {
	case 400:
		prefix = "invalid input"
	case 403:
		prefix = "access denied"
	case 404:
		prefix = "not found"
	case 500:
		prefix = "internal server error"
	}
	return fmt.Sprintf("%s: %s", prefix, e.Err)
}

func (e StatusError) Unwrap() error {
	return e.Err
}

// ErrTooLong is passed, when a field exceeds the maximum string length for
// that specific field
func ErrTooLong(s string) error {
	return StatusError{errors.New(s + " too long"), 400}
}

// ErrInvalidInput is an error that invalid user input was supplied
func ErrInvalidInput(s string) error {
	return StatusError{errors.New(s), 400}
}

// ErrAccessDenied is an error that user does not have enough access rights
func ErrAccessDenied(s string) error {
	return StatusError{errors.New(s), 403}
}

// ErrNonPrintable is returned, when a string contains a character, that is
// not allowed in the field
type ErrNonPrintable rune

func (e ErrNonPrintable) Error() string {
	return fmt.Sprintf("contains non-printable character: %U", rune(e))
}

// ErrPostNotFound is returned, when a post referenced by ID does not exist
type ErrPostNotFound uint64

func (e ErrPostNotFound) Error() string {
	return fmt.Sprintf("post %d not found", uint64(e))
}

// ErrThreadNotFound is returned, when a thread referenced by ID does not
// exist
type ErrThreadNotFound uint64

func (e ErrThreadNotFound) Error() string {
	return fmt.Sprintf("thread %d not found", uint64(e))
}

// ErrUserNotFound is returned, when a user referenced by ID does not exist
type ErrUserNotFound uint64

func (e ErrUserNotFound) Error() string {
	return fmt.Sprintf("user %d not found", uint64(e))
}

// ErrThreadHasNoPosts is returned, when replying to a thread without a single
// stored post
type ErrThreadHasNoPosts uint64

func (e ErrThreadHasNoPosts) Error() string {
	return fmt.Sprintf("thread %d has no posts", uint64(e))
}

// ErrRendering wraps a failure of the HTML renderer
type ErrRendering struct {
	Err error
}

func (e ErrRendering) Error() string {
	return "rendering: " + e.Err.Error()
}

func (e ErrRendering) Unwrap() error {
	return e.Err
}

// ErrTask is returned, when a task offloaded to a worker pool could not be
// joined
type ErrTask struct {
	Err error
}

func (e ErrTask) Error() string {
	return "task: " + e.Err.Error()
}

func (e ErrTask) Unwrap() error {
	return e.Err
}

// IsNotFound returns, if err is caused by a missing entity
func IsNotFound(err error) bool {
	var (
		post    ErrPostNotFound
		thread  ErrThreadNotFound
		user    ErrUserNotFound
		noPosts ErrThreadHasNoPosts
	)
	return errors.As(err, &post) ||
		errors.As(err, &thread) ||
		errors.As(err, &user) ||
		errors.As(err, &noPosts)
}

// StatusCode returns the HTTP status code an error should be reported with
func StatusCode(err error) int {
	var (
		s  StatusError
		np ErrNonPrintable
	)
	switch {
	case errors.As(err, &s):
		return s.Code
	case errors.As(err, &np):
		return 400
	case IsNotFound(err):
		return 404
	default:
		return 500
	}
}

// CanIgnoreClientError returns, if client-caused error can be safely ignored
// and not logged
func CanIgnoreClientError(err error) bool {
	if err == nil {
		return true
	}
	if c := StatusCode(err); c >= 400 && c < 500 {
		return true
	}
	return strings.HasSuffix(err.Error(), "broken pipe")
}
