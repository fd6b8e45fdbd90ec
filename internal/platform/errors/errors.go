package errors

import (
	stderrors "errors"

	"golang.org/x/text/message"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context for clients
	Cause    error             // Wrapped underlying error

	sentinel bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code. Two distinct
// sentinels never match each other, even when they share a code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	if e.sentinel && t.sentinel {
		return false
	}
	return e.Code == t.Code
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Sentinel creates a package-level domain error. errors.Is tells sentinels
// apart by identity, while non-sentinel errors still match them by code.
func Sentinel(code Code, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		sentinel: true,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) && domainErr != nil {
		return domainErr.Code
	}
	return CodeUnknown
}

// UserMessage returns the localized client-facing copy for code.
func UserMessage(printer *message.Printer, code Code) string {
	key := messageKey(code)
	if printer == nil {
		return string(code)
	}
	text := printer.Sprintf(key)
	if text == key {
		return printer.Sprintf(messageKey(CodeUnknown))
	}
	return text
}

func messageKey(code Code) string {
	return "error." + string(code)
}
