package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	notificationsdomain "github.com/louisbranch/gathering.space/internal/services/notifications/domain"
	"github.com/louisbranch/gathering.space/internal/services/notifications/render"
	"github.com/louisbranch/gathering.space/internal/services/parties/domain"
)

const notificationSource = "parties"

// Emitter appends notifications.
type Emitter interface {
	Emit(ctx context.Context, input notificationsdomain.EmitInput) (notificationsdomain.Notification, error)
}

// notificationNotifier turns committed ledger events into TARGETED
// notifications. Emit failures are logged; the ledger change already
// committed.
type notificationNotifier struct {
	emitter Emitter
	loc     render.Localizer
}

func newNotificationNotifier(emitter Emitter, loc render.Localizer) *notificationNotifier {
	return &notificationNotifier{emitter: emitter, loc: loc}
}

func (n *notificationNotifier) Notify(ctx context.Context, event domain.Event) {
	if n == nil || n.emitter == nil {
		return
	}
	payload := render.PartyPayload{
		PartyID:     event.Party.ID,
		PartyTitle:  event.Party.Title,
		ActorUserID: event.ActorUserID,
	}
	relatedID := event.Party.ID
	version := event.Party.UpdatedAt.UnixNano()
	if event.Participation != nil {
		payload.ParticipationID = event.Participation.ID
		payload.ParticipantUserID = event.Participation.ParticipantUserID
		payload.Status = string(event.Participation.Status)
		relatedID = event.Participation.ID
		version = event.Participation.UpdatedAt.UnixNano()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("encode %s payload for party %s: %v", event.Kind, event.Party.ID, err)
		return
	}
	out := render.Render(n.loc, render.Input{Topic: string(event.Kind), PayloadJSON: string(raw)})

	for _, recipient := range event.Recipients {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		_, err := n.emitter.Emit(ctx, notificationsdomain.EmitInput{
			Scope:          notificationsdomain.ScopeTargeted,
			TargetUserID:   recipient,
			RelatedID:      relatedID,
			Classification: string(event.Kind),
			Message:        out.BodyText,
			PayloadJSON:    string(raw),
			DedupeKey:      fmt.Sprintf("%s:%s:%d", event.Kind, relatedID, version),
			Source:         notificationSource,
		})
		if err != nil {
			log.Printf("emit %s for party %s to %s: %v", event.Kind, event.Party.ID, recipient, err)
		}
	}
}
