// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Lookup and authorization errors
	CodeNotFound  Code = "NOT_FOUND"
	CodeForbidden Code = "FORBIDDEN"

	// Participation errors
	CodeSelfJoinForbidden Code = "SELF_JOIN_FORBIDDEN"
	CodeAlreadyRequested  Code = "ALREADY_REQUESTED"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"

	// Notification errors
	CodeInvalidNotification Code = "INVALID_NOTIFICATION"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// 400 - validation failures, bad input
	case CodeInvalidArgument,
		CodeInvalidNotification:
		return http.StatusBadRequest

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	// 403 - caller is not allowed to act on the resource
	case CodeForbidden,
		CodeSelfJoinForbidden:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	// 409 - state doesn't allow operation
	case CodeInvalidTransition,
		CodeAlreadyRequested,
		CodeCapacityExceeded:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
