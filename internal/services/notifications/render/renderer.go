// Package render produces localized notification copy from a classification
// and its JSON payload.
package render

import (
	"encoding/json"
	"strings"

	"github.com/louisbranch/gathering.space/internal/platform/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// TopicParticipationRequested is rendered for organizers receiving a join request.
	TopicParticipationRequested = "party.participation.requested"
	// TopicParticipationApproved is rendered for participants who were approved.
	TopicParticipationApproved = "party.participation.approved"
	// TopicParticipationRejected is rendered for participants who were rejected.
	TopicParticipationRejected = "party.participation.rejected"
	// TopicParticipationCancelled is rendered for organizers when someone leaves.
	TopicParticipationCancelled = "party.participation.cancelled"
	// TopicPartyUpdated is rendered for approved participants after an edit.
	TopicPartyUpdated = "party.updated"

	defaultGenericTitle = "Notification"
	defaultGenericBody  = "You have a new notification."
	defaultPartyTitle   = "a party"
)

// Input is one render request for a notification.
type Input struct {
	Topic       string
	PayloadJSON string
}

// Output is localized copy derived from one notification.
type Output struct {
	Title    string
	BodyText string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// PartyPayload is the JSON payload carried by ledger notifications.
type PartyPayload struct {
	PartyID           string `json:"party_id"`
	PartyTitle        string `json:"party_title"`
	ParticipationID   string `json:"participation_id,omitempty"`
	ParticipantUserID string `json:"participant_user_id,omitempty"`
	ActorUserID       string `json:"actor_user_id,omitempty"`
	Status            string `json:"status,omitempty"`
}

// Printer returns a localizer for tag, falling back to the default language
// when tag has no catalog.
func Printer(tag language.Tag) *message.Printer {
	if tag == language.Und {
		tag = i18n.DefaultTag()
	}
	return message.NewPrinter(i18n.MatchTags([]language.Tag{tag}))
}

// Render returns localized copy for one notification.
func Render(loc Localizer, input Input) Output {
	var prefix string
	switch normalizeToken(input.Topic) {
	case TopicParticipationRequested:
		prefix = "notification.participation_requested"
	case TopicParticipationApproved:
		prefix = "notification.participation_approved"
	case TopicParticipationRejected:
		prefix = "notification.participation_rejected"
	case TopicParticipationCancelled:
		prefix = "notification.participation_cancelled"
	case TopicPartyUpdated:
		prefix = "notification.party_updated"
	default:
		return genericOutput(loc)
	}
	return renderParty(loc, prefix, input.PayloadJSON)
}

func renderParty(loc Localizer, prefix string, payloadJSON string) Output {
	payload := PartyPayload{}
	if raw := strings.TrimSpace(payloadJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return genericOutput(loc)
		}
	}
	partyTitle := strings.TrimSpace(payload.PartyTitle)
	if partyTitle == "" {
		partyTitle = localizeWithFallback(loc, "notification.party.unnamed", defaultPartyTitle)
	}

	titleKey := prefix + ".title"
	bodyKey := prefix + ".body"
	title := localize(loc, titleKey)
	body := localize(loc, bodyKey, partyTitle)
	if title == titleKey || body == bodyKey {
		return genericOutput(loc)
	}
	return Output{Title: title, BodyText: body}
}

func genericOutput(loc Localizer) Output {
	return Output{
		Title:    localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle),
		BodyText: localizeWithFallback(loc, "notification.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
