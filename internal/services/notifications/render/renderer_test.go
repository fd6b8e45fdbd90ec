package render

import (
	"fmt"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestRenderPartyTopicsLocalized(t *testing.T) {
	t.Parallel()

	loc := fakeLocalizer{values: map[string]string{
		"notification.generic.title":                 "Notification",
		"notification.generic.body":                  "You have a new notification.",
		"notification.participation_approved.title":  "Approved",
		"notification.participation_approved.body":   "Welcome to %s.",
		"notification.participation_requested.title": "Request",
		"notification.participation_requested.body":  "Someone wants in on %s.",
		"notification.participation_cancelled.title": "Left",
		"notification.participation_cancelled.body":  "A spot opened in %s.",
		"notification.participation_rejected.title":  "Declined",
		"notification.participation_rejected.body":   "No room in %s.",
		"notification.party_updated.title":           "Updated",
		"notification.party_updated.body":            "%s changed.",
	}}

	tests := []struct {
		topic     string
		wantTitle string
		wantBody  string
	}{
		{topic: TopicParticipationApproved, wantTitle: "Approved", wantBody: "Welcome to Board games."},
		{topic: "  PARTY.PARTICIPATION.REQUESTED ", wantTitle: "Request", wantBody: "Someone wants in on Board games."},
		{topic: TopicParticipationCancelled, wantTitle: "Left", wantBody: "A spot opened in Board games."},
		{topic: TopicParticipationRejected, wantTitle: "Declined", wantBody: "No room in Board games."},
		{topic: TopicPartyUpdated, wantTitle: "Updated", wantBody: "Board games changed."},
	}
	for _, tt := range tests {
		out := Render(loc, Input{Topic: tt.topic, PayloadJSON: `{"party_id":"p1","party_title":"Board games"}`})
		if out.Title != tt.wantTitle {
			t.Fatalf("%s title = %q, want %q", tt.topic, out.Title, tt.wantTitle)
		}
		if out.BodyText != tt.wantBody {
			t.Fatalf("%s body = %q, want %q", tt.topic, out.BodyText, tt.wantBody)
		}
	}
}

func TestRenderMissingPartyTitleUsesPlaceholder(t *testing.T) {
	t.Parallel()

	loc := fakeLocalizer{values: map[string]string{
		"notification.participation_approved.title": "Approved",
		"notification.participation_approved.body":  "Welcome to %s.",
	}}

	out := Render(loc, Input{Topic: TopicParticipationApproved, PayloadJSON: `{"party_id":"p1"}`})
	if out.BodyText != "Welcome to a party." {
		t.Fatalf("body = %q, want placeholder party title", out.BodyText)
	}
}

func TestRenderMalformedPayloadFallsBack(t *testing.T) {
	t.Parallel()

	loc := fakeLocalizer{values: map[string]string{
		"notification.generic.title":                "Notification",
		"notification.generic.body":                 "You have a new notification.",
		"notification.participation_approved.title": "Approved",
		"notification.participation_approved.body":  "Welcome to %s.",
	}}

	out := Render(loc, Input{Topic: TopicParticipationApproved, PayloadJSON: `{"party_title":`})
	if out.Title != "Notification" {
		t.Fatalf("title = %q, want %q", out.Title, "Notification")
	}
	if out.BodyText != "You have a new notification." {
		t.Fatalf("body = %q, want %q", out.BodyText, "You have a new notification.")
	}
}

func TestRenderUnknownTopicFallsBack(t *testing.T) {
	t.Parallel()

	out := Render(fakeLocalizer{}, Input{Topic: "unknown.topic", PayloadJSON: `{}`})
	if out.Title != defaultGenericTitle {
		t.Fatalf("title = %q, want %q", out.Title, defaultGenericTitle)
	}
	if out.BodyText != defaultGenericBody {
		t.Fatalf("body = %q, want %q", out.BodyText, defaultGenericBody)
	}
}

func TestRenderWithNilLocalizerReturnsHumanReadableDefaults(t *testing.T) {
	t.Parallel()

	out := Render(nil, Input{Topic: TopicParticipationApproved, PayloadJSON: `{"party_title":"Picnic"}`})
	if out.Title != defaultGenericTitle {
		t.Fatalf("title = %q, want %q", out.Title, defaultGenericTitle)
	}
	if out.BodyText != defaultGenericBody {
		t.Fatalf("body = %q, want %q", out.BodyText, defaultGenericBody)
	}
}

func TestRenderWithRealPrinterUsesRegisteredCatalog(t *testing.T) {
	t.Parallel()

	en := Render(Printer(language.AmericanEnglish), Input{
		Topic:       TopicParticipationRejected,
		PayloadJSON: `{"party_title":"Picnic"}`,
	})
	if en.Title != "Request declined" {
		t.Fatalf("en title = %q, want %q", en.Title, "Request declined")
	}
	if en.BodyText != "Your request to join Picnic was declined." {
		t.Fatalf("en body = %q", en.BodyText)
	}

	pt := Render(Printer(language.BrazilianPortuguese), Input{
		Topic:       TopicParticipationRejected,
		PayloadJSON: `{"party_title":"Piquenique"}`,
	})
	if pt.Title != "Pedido recusado" {
		t.Fatalf("pt-BR title = %q, want %q", pt.Title, "Pedido recusado")
	}
	if pt.BodyText != "Seu pedido para participar de Piquenique foi recusado." {
		t.Fatalf("pt-BR body = %q", pt.BodyText)
	}
}

func TestPrinterFallsBackToDefaultLanguage(t *testing.T) {
	t.Parallel()

	out := Render(Printer(language.Japanese), Input{Topic: TopicPartyUpdated, PayloadJSON: `{"party_title":"Picnic"}`})
	if out.Title != "Party updated" {
		t.Fatalf("title = %q, want english fallback", out.Title)
	}
}

type fakeLocalizer struct {
	values map[string]string
}

func (f fakeLocalizer) Sprintf(key message.Reference, args ...any) string {
	asString, ok := key.(string)
	if !ok {
		return ""
	}
	template := f.values[asString]
	if template == "" {
		return asString
	}
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}
