package domain

import (
	"errors"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
)

var (
	// ErrNotFound indicates a referenced notification does not exist.
	ErrNotFound = apperrors.Sentinel(apperrors.CodeNotFound, "notification not found")
	// ErrInvalidNotification indicates an emit request failed scope, target, or message validation.
	ErrInvalidNotification = apperrors.Sentinel(apperrors.CodeInvalidNotification, "notification is invalid")
	// ErrUserIDRequired indicates the reader identity is missing.
	ErrUserIDRequired = apperrors.Sentinel(apperrors.CodeInvalidArgument, "user id is required")
	// ErrNotificationIDsRequired indicates MarkRead received no ids.
	ErrNotificationIDsRequired = apperrors.Sentinel(apperrors.CodeInvalidArgument, "notification ids are required")

	// ErrConflict indicates a write conflicted with existing uniqueness constraints.
	ErrConflict = errors.New("notification conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("notification id generator is not configured")
)

func invalidNotification(message string) error {
	return apperrors.New(apperrors.CodeInvalidNotification, message)
}

func pageError(err error) error {
	return apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
}
