package media

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a task is not found.
	ErrTaskNotFound = errors.New("media task not found")

	// ErrTaskNotOwned is returned when the caller doesn't own the task.
	ErrTaskNotOwned = errors.New("task not owned by user")

	// ErrTaskTerminal is returned when mutating a task that already finished.
	ErrTaskTerminal = errors.New("task already in terminal state")

	// ErrTaskExists is returned when storing a task id twice.
	ErrTaskExists = errors.New("media task already exists")

	// ErrInvalidInput is returned when input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownModel is returned when no provider serves a model for a media type.
	ErrUnknownModel = errors.New("unknown model for media type")

	// ErrPollUnsupported is returned by providers that answer synchronously.
	ErrPollUnsupported = errors.New("provider does not support status polling")

	// ErrRecoveryExhausted is reported when no recovery candidate validated.
	ErrRecoveryExhausted = errors.New("cannot recover media automatically, provide a URL manually")
)

// SubmissionError is returned when a provider rejects the initial request.
// It is never retried automatically.
type SubmissionError struct {
	Provider   string
	StatusCode int
	Reason     string
	Err        error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("%s rejected submission", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransportError is a network, HTTP or auth failure while talking to a
// provider about an existing task. It never changes task status.
type TransportError struct {
	Provider   string
	Op         string
	StatusCode int
	Auth       bool
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsSubmissionError reports whether err is a SubmissionError.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// IsAuthError reports whether err is a TransportError caused by credentials.
func IsAuthError(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Auth
}
