package domain

import "strings"

const (
	// ClassificationParticipationRequested tells an organizer someone asked to join.
	ClassificationParticipationRequested = "party.participation.requested"
	// ClassificationParticipationApproved tells a participant they were approved.
	ClassificationParticipationApproved = "party.participation.approved"
	// ClassificationParticipationRejected tells a participant they were rejected.
	ClassificationParticipationRejected = "party.participation.rejected"
	// ClassificationParticipationCancelled tells an organizer a participant left.
	ClassificationParticipationCancelled = "party.participation.cancelled"
	// ClassificationPartyUpdated tells approved participants the party changed.
	ClassificationPartyUpdated = "party.updated"
	// ClassificationAnnouncement is an operator broadcast.
	ClassificationAnnouncement = "system.announcement"
)

// DeliveryPolicy defines the effective channels for one classification.
type DeliveryPolicy struct {
	InApp bool
	Push  bool
}

// NormalizeClassification normalizes a producer-provided classification token.
func NormalizeClassification(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ResolveDeliveryPolicy returns the channel policy for one classification.
// Every notification lands in the feed; ledger changes and announcements are
// also pushed to connected clients.
func ResolveDeliveryPolicy(classification string) DeliveryPolicy {
	normalized := NormalizeClassification(classification)
	switch {
	case strings.HasPrefix(normalized, "party."), normalized == ClassificationAnnouncement:
		return DeliveryPolicy{InApp: true, Push: true}
	default:
		return DeliveryPolicy{InApp: true}
	}
}
