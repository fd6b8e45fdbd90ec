package domain

import (
	"errors"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
)

var (
	// ErrPartyNotFound indicates the party does not exist.
	ErrPartyNotFound = apperrors.Sentinel(apperrors.CodeNotFound, "party not found")
	// ErrParticipationNotFound indicates the participation record does not exist.
	ErrParticipationNotFound = apperrors.Sentinel(apperrors.CodeNotFound, "participation not found")
	// ErrForbidden indicates the actor lacks the capability for the operation.
	ErrForbidden = apperrors.Sentinel(apperrors.CodeForbidden, "actor is not allowed to perform this operation")
	// ErrSelfJoinForbidden indicates an organizer tried to join their own party.
	ErrSelfJoinForbidden = apperrors.Sentinel(apperrors.CodeSelfJoinForbidden, "organizer cannot join own party")
	// ErrAlreadyRequested indicates an active participation already exists.
	ErrAlreadyRequested = apperrors.Sentinel(apperrors.CodeAlreadyRequested, "participation already requested")
	// ErrInvalidTransition indicates the record status does not permit the change.
	ErrInvalidTransition = apperrors.Sentinel(apperrors.CodeInvalidTransition, "participation status transition is not allowed")
	// ErrCapacityExceeded indicates an approval would breach the participant limit.
	ErrCapacityExceeded = apperrors.Sentinel(apperrors.CodeCapacityExceeded, "party participant limit reached")

	// ErrConflict indicates a write hit a uniqueness constraint.
	ErrConflict = errors.New("participation conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("party store is not configured")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("party id generator is not configured")
)

func invalidArgument(message string) error {
	return apperrors.New(apperrors.CodeInvalidArgument, message)
}
