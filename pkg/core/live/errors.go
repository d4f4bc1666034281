package live

import (
	"fmt"
)

// ErrorClass categorizes session errors by blast radius.
type ErrorClass string

const (
	// ErrAcquisition covers microphone or permission failures while opening
	// a session. Fatal to the connect attempt; no retry.
	ErrAcquisition ErrorClass = "acquisition_error"
	// ErrChannel covers remote channel failures (dial or mid-session).
	// Fatal to the session; full teardown, no automatic reconnect.
	ErrChannel ErrorClass = "channel_error"
	// ErrFormat covers malformed audio frames or segments. Local to one
	// frame; logged and dropped, the session continues.
	ErrFormat ErrorClass = "format_error"
	// ErrRecognizer covers wake recognizer failures. Non-fatal; the
	// recognizer is restarted on a fixed backoff while hands-free holds.
	ErrRecognizer ErrorClass = "recognizer_error"
)

// Error is the session error type.
type Error struct {
	Class   ErrorClass `json:"class"`
	Message string     `json:"message"`
	Cause   error      `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error class ends the session.
// Component-local errors (format, recognizer) are absorbed and never
// change session status.
func (e *Error) IsFatal() bool {
	switch e.Class {
	case ErrAcquisition, ErrChannel:
		return true
	default:
		return false
	}
}

// NewAcquisitionError creates a microphone/permission acquisition error.
func NewAcquisitionError(message string, cause error) *Error {
	return &Error{Class: ErrAcquisition, Message: message, Cause: cause}
}

// NewChannelError creates a remote channel error.
func NewChannelError(message string, cause error) *Error {
	return &Error{Class: ErrChannel, Message: message, Cause: cause}
}

// NewFormatError creates a malformed audio frame error.
func NewFormatError(message string) *Error {
	return &Error{Class: ErrFormat, Message: message}
}

// NewRecognizerError creates a wake recognizer error.
func NewRecognizerError(message string, cause error) *Error {
	return &Error{Class: ErrRecognizer, Message: message, Cause: cause}
}
