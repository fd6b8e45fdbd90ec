package domain

import "strings"

// Status is the lifecycle state of one participation record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus normalizes a caller-provided status token.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return status, true
	default:
		return "", false
	}
}

// Active reports whether the record still holds or requests a seat.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Terminal reports whether only the explicit re-open can leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Actor identifies which side of the ledger requests a transition.
type Actor int

const (
	ActorParticipant Actor = iota + 1
	ActorOrganizer
)

// CanTransition reports whether actor may move a record from one status to another.
//
//	PENDING  -> APPROVED | REJECTED   organizer
//	PENDING  -> CANCELLED             participant
//	APPROVED -> CANCELLED             participant
//	REJECTED | CANCELLED -> PENDING   participant re-request
func CanTransition(actor Actor, from, to Status) bool {
	switch actor {
	case ActorOrganizer:
		return from == StatusPending && (to == StatusApproved || to == StatusRejected)
	case ActorParticipant:
		switch to {
		case StatusCancelled:
			return from.Active()
		case StatusPending:
			return from.Terminal()
		}
	}
	return false
}
