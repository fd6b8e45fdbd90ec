package domain

import "context"

// EventKind classifies a committed ledger change.
type EventKind string

const (
	EventParticipationRequested EventKind = "party.participation.requested"
	EventParticipationApproved  EventKind = "party.participation.approved"
	EventParticipationRejected  EventKind = "party.participation.rejected"
	EventParticipationCancelled EventKind = "party.participation.cancelled"
	EventPartyUpdated           EventKind = "party.updated"
)

// Event describes one committed change and the users it concerns.
type Event struct {
	Kind          EventKind
	ActorUserID   string
	Party         Party
	Participation *Participation
	// PreviousStatus is the record status before the change, empty for new records.
	PreviousStatus Status
	Recipients     []string
}

// Notifier receives committed ledger events. Implementations must not block
// the caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event) {}

func decisionEventKind(status Status) EventKind {
	if status == StatusApproved {
		return EventParticipationApproved
	}
	return EventParticipationRejected
}
