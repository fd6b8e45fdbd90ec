package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.body", defaultGenericBody)
	message.SetString(lang, "notification.party.unnamed", defaultPartyTitle)
	message.SetString(lang, "notification.participation_requested.title", "New join request")
	message.SetString(lang, "notification.participation_requested.body", "Someone asked to join %s.")
	message.SetString(lang, "notification.participation_approved.title", "Request approved")
	message.SetString(lang, "notification.participation_approved.body", "You are in! Your request to join %s was approved.")
	message.SetString(lang, "notification.participation_rejected.title", "Request declined")
	message.SetString(lang, "notification.participation_rejected.body", "Your request to join %s was declined.")
	message.SetString(lang, "notification.participation_cancelled.title", "Participant left")
	message.SetString(lang, "notification.participation_cancelled.body", "A participant cancelled their spot in %s.")
	message.SetString(lang, "notification.party_updated.title", "Party updated")
	message.SetString(lang, "notification.party_updated.body", "The organizer updated %s. Check the latest details.")
}
