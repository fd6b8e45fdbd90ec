package domain

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
	"github.com/louisbranch/gathering.space/internal/platform/id"
	"github.com/louisbranch/gathering.space/internal/platform/pagination"
)

// Option configures a Service.
type Option func(*Service)

// WithNotifier routes committed ledger events to notifier.
func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithRejoin sets whether REJECTED or CANCELLED records may be re-opened to
// PENDING by a new join request. When disabled such requests fail with
// ErrAlreadyRequested.
func WithRejoin(allow bool) Option {
	return func(s *Service) {
		s.allowRejoin = allow
	}
}

// Service orchestrates party and participation use-cases.
type Service struct {
	store       Store
	notifier    Notifier
	clock       func() time.Time
	newID       func() (string, error)
	allowRejoin bool
}

// NewService constructs party domain use-cases. Rejoin is allowed by default.
func NewService(store Store, clock func() time.Time, newID func() (string, error), opts ...Option) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	s := &Service{
		store:       store,
		notifier:    noopNotifier{},
		clock:       clock,
		newID:       newID,
		allowRejoin: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreatePartyInput describes a new party.
type CreatePartyInput struct {
	OrganizerUserID string
	Fields          PartyFields
}

// UpdatePartyInput describes an organizer edit.
type UpdatePartyInput struct {
	PartyID     string
	ActorUserID string
	Fields      PartyFields
}

// RequestJoinInput identifies who asks to join which party.
type RequestJoinInput struct {
	PartyID     string
	ActorUserID string
}

// CancelInput identifies the record to cancel, either directly or as the
// actor's own record within PartyID.
type CancelInput struct {
	ParticipationID string
	PartyID         string
	ActorUserID     string
}

// DecideInput is an organizer's approve or reject decision.
type DecideInput struct {
	ParticipationID string
	// PartyID, when set, must match the record's party.
	PartyID     string
	ActorUserID string
	Status      Status
}

// ListPartiesInput pages one user's parties.
type ListPartiesInput struct {
	UserID   string
	Page     int
	PageSize int
}

// CreateParty stores a new party owned by the organizer.
func (s *Service) CreateParty(ctx context.Context, input CreatePartyInput) (Party, error) {
	if s == nil || s.store == nil {
		return Party{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Party{}, ErrIDGeneratorNotConfigured
	}
	organizer := strings.TrimSpace(input.OrganizerUserID)
	if organizer == "" {
		return Party{}, invalidArgument("organizer user id is required")
	}
	fields, err := input.Fields.normalized()
	if err != nil {
		return Party{}, err
	}
	partyID, err := s.newID()
	if err != nil {
		return Party{}, err
	}
	now := s.nowUTC()
	party := Party{ID: partyID, OrganizerUserID: organizer, CreatedAt: now, UpdatedAt: now}.withFields(fields)
	if err := s.store.CreateParty(ctx, party); err != nil {
		return Party{}, err
	}
	return party, nil
}

// UpdateParty applies an organizer edit. Lowering the limit below the current
// approved count is rejected. Approved participants are told about the change.
func (s *Service) UpdateParty(ctx context.Context, input UpdatePartyInput) (Party, error) {
	if s == nil || s.store == nil {
		return Party{}, ErrStoreNotConfigured
	}
	actor := strings.TrimSpace(input.ActorUserID)
	partyID := strings.TrimSpace(input.PartyID)
	if actor == "" || partyID == "" {
		return Party{}, invalidArgument("party id and actor user id are required")
	}
	fields, err := input.Fields.normalized()
	if err != nil {
		return Party{}, err
	}

	var updated Party
	err = s.store.WithPartyLock(ctx, partyID, func(tx PartyTx) error {
		party := tx.Party()
		if err := RequireOrganizer(party, actor); err != nil {
			return err
		}
		if fields.ParticipantLimit != nil {
			approved, err := tx.CountApproved(ctx)
			if err != nil {
				return err
			}
			if approved > *fields.ParticipantLimit {
				return apperrors.WithMetadata(apperrors.CodeInvalidArgument,
					"participant limit is below the approved count",
					map[string]string{"approved_count": strconv.Itoa(approved)})
			}
		}
		updated = party.withFields(fields)
		updated.UpdatedAt = s.nowUTC()
		return tx.UpdateParty(ctx, updated)
	})
	if err != nil {
		return Party{}, err
	}

	approved, err := s.store.ListParticipations(ctx, partyID, StatusApproved)
	if err != nil {
		log.Printf("list approved participants for party %s update: %v", partyID, err)
		return updated, nil
	}
	if len(approved) > 0 {
		recipients := make([]string, 0, len(approved))
		for _, record := range approved {
			recipients = append(recipients, record.ParticipantUserID)
		}
		s.notifier.Notify(ctx, Event{Kind: EventPartyUpdated, ActorUserID: actor, Party: updated, Recipients: recipients})
	}
	return updated, nil
}

// RequestJoin opens a PENDING participation for the actor.
func (s *Service) RequestJoin(ctx context.Context, input RequestJoinInput) (Participation, error) {
	if s == nil || s.store == nil {
		return Participation{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Participation{}, ErrIDGeneratorNotConfigured
	}
	actor := strings.TrimSpace(input.ActorUserID)
	partyID := strings.TrimSpace(input.PartyID)
	if actor == "" || partyID == "" {
		return Participation{}, invalidArgument("party id and actor user id are required")
	}

	var (
		party    Party
		record   Participation
		previous Status
	)
	err := s.store.WithPartyLock(ctx, partyID, func(tx PartyTx) error {
		party = tx.Party()
		if IsOrganizer(party, actor) {
			return ErrSelfJoinForbidden
		}
		now := s.nowUTC()
		existing, err := tx.FindParticipation(ctx, actor)
		switch {
		case err == nil:
			if existing.Status.Active() || !s.allowRejoin {
				return ErrAlreadyRequested
			}
			if !CanTransition(ActorParticipant, existing.Status, StatusPending) {
				return ErrInvalidTransition
			}
			previous = existing.Status
			record = existing
			record.Status = StatusPending
			record.UpdatedAt = now
		case errors.Is(err, ErrParticipationNotFound):
			recordID, err := s.newID()
			if err != nil {
				return err
			}
			record = Participation{
				ID:                recordID,
				PartyID:           party.ID,
				ParticipantUserID: actor,
				Status:            StatusPending,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
		default:
			return err
		}
		if err := tx.PutParticipation(ctx, record); err != nil {
			if errors.Is(err, ErrConflict) {
				return ErrAlreadyRequested
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Participation{}, err
	}

	s.notifier.Notify(ctx, Event{
		Kind:           EventParticipationRequested,
		ActorUserID:    actor,
		Party:          party,
		Participation:  &record,
		PreviousStatus: previous,
		Recipients:     []string{party.OrganizerUserID},
	})
	return record, nil
}

// ParticipantCancel moves the actor's PENDING or APPROVED record to CANCELLED.
func (s *Service) ParticipantCancel(ctx context.Context, input CancelInput) (Participation, error) {
	if s == nil || s.store == nil {
		return Participation{}, ErrStoreNotConfigured
	}
	actor := strings.TrimSpace(input.ActorUserID)
	recordID := strings.TrimSpace(input.ParticipationID)
	partyID := strings.TrimSpace(input.PartyID)
	if actor == "" {
		return Participation{}, invalidArgument("actor user id is required")
	}
	if recordID == "" && partyID == "" {
		return Participation{}, invalidArgument("participation id or party id is required")
	}
	if recordID != "" {
		record, err := s.store.GetParticipation(ctx, recordID)
		if err != nil {
			return Participation{}, err
		}
		if partyID != "" && record.PartyID != partyID {
			return Participation{}, ErrParticipationNotFound
		}
		partyID = record.PartyID
	}

	var (
		party    Party
		record   Participation
		previous Status
	)
	err := s.store.WithPartyLock(ctx, partyID, func(tx PartyTx) error {
		party = tx.Party()
		var err error
		if recordID != "" {
			record, err = tx.GetParticipation(ctx, recordID)
		} else {
			record, err = tx.FindParticipation(ctx, actor)
		}
		if err != nil {
			return err
		}
		if err := RequireRecordOwner(record, actor); err != nil {
			return err
		}
		if !CanTransition(ActorParticipant, record.Status, StatusCancelled) {
			return ErrInvalidTransition
		}
		previous = record.Status
		record.Status = StatusCancelled
		record.UpdatedAt = s.nowUTC()
		return tx.PutParticipation(ctx, record)
	})
	if err != nil {
		return Participation{}, err
	}

	s.notifier.Notify(ctx, Event{
		Kind:           EventParticipationCancelled,
		ActorUserID:    actor,
		Party:          party,
		Participation:  &record,
		PreviousStatus: previous,
		Recipients:     []string{party.OrganizerUserID},
	})
	return record, nil
}

// OrganizerDecide approves or rejects a PENDING record. Approval re-counts
// the party's approved records under the party lock.
func (s *Service) OrganizerDecide(ctx context.Context, input DecideInput) (Participation, error) {
	if s == nil || s.store == nil {
		return Participation{}, ErrStoreNotConfigured
	}
	actor := strings.TrimSpace(input.ActorUserID)
	recordID := strings.TrimSpace(input.ParticipationID)
	partyID := strings.TrimSpace(input.PartyID)
	if actor == "" || recordID == "" {
		return Participation{}, invalidArgument("participation id and actor user id are required")
	}

	found, err := s.store.GetParticipation(ctx, recordID)
	if err != nil {
		return Participation{}, err
	}
	if partyID != "" && found.PartyID != partyID {
		return Participation{}, ErrParticipationNotFound
	}

	var (
		party    Party
		record   Participation
		previous Status
	)
	err = s.store.WithPartyLock(ctx, found.PartyID, func(tx PartyTx) error {
		party = tx.Party()
		var err error
		record, err = tx.GetParticipation(ctx, recordID)
		if err != nil {
			return err
		}
		if err := RequireOrganizer(party, actor); err != nil {
			return err
		}
		if !CanTransition(ActorOrganizer, record.Status, input.Status) {
			return ErrInvalidTransition
		}
		if input.Status == StatusApproved && party.ParticipantLimit != nil {
			approved, err := tx.CountApproved(ctx)
			if err != nil {
				return err
			}
			if !(Capacity{Limit: party.ParticipantLimit, Approved: approved}).HasRoom() {
				return ErrCapacityExceeded
			}
		}
		previous = record.Status
		record.Status = input.Status
		record.UpdatedAt = s.nowUTC()
		return tx.PutParticipation(ctx, record)
	})
	if err != nil {
		return Participation{}, err
	}

	s.notifier.Notify(ctx, Event{
		Kind:           decisionEventKind(record.Status),
		ActorUserID:    actor,
		Party:          party,
		Participation:  &record,
		PreviousStatus: previous,
		Recipients:     []string{record.ParticipantUserID},
	})
	return record, nil
}

// ApprovedCount returns the number of APPROVED records of a party.
func (s *Service) ApprovedCount(ctx context.Context, partyID string) (int, error) {
	capacity, err := s.RemainingCapacity(ctx, partyID)
	if err != nil {
		return 0, err
	}
	return capacity.Approved, nil
}

// RemainingCapacity returns the party's limit and approved count.
func (s *Service) RemainingCapacity(ctx context.Context, partyID string) (Capacity, error) {
	if s == nil || s.store == nil {
		return Capacity{}, ErrStoreNotConfigured
	}
	party, err := s.store.GetParty(ctx, strings.TrimSpace(partyID))
	if err != nil {
		return Capacity{}, err
	}
	approved, err := s.store.CountApproved(ctx, party.ID)
	if err != nil {
		return Capacity{}, err
	}
	return Capacity{Limit: party.ParticipantLimit, Approved: approved}, nil
}

// GetPartyDetails returns the party with its approved and pending roster.
// Pending requests are only listed for the organizer.
func (s *Service) GetPartyDetails(ctx context.Context, partyID string, viewerUserID string) (PartyDetails, error) {
	if s == nil || s.store == nil {
		return PartyDetails{}, ErrStoreNotConfigured
	}
	party, err := s.store.GetParty(ctx, strings.TrimSpace(partyID))
	if err != nil {
		return PartyDetails{}, err
	}
	approved, err := s.store.ListParticipations(ctx, party.ID, StatusApproved)
	if err != nil {
		return PartyDetails{}, err
	}
	details := PartyDetails{
		Party:    party,
		Capacity: Capacity{Limit: party.ParticipantLimit, Approved: len(approved)},
		Approved: approved,
	}
	if IsOrganizer(party, viewerUserID) {
		pending, err := s.store.ListParticipations(ctx, party.ID, StatusPending)
		if err != nil {
			return PartyDetails{}, err
		}
		details.Pending = pending
	}
	if viewer := strings.TrimSpace(viewerUserID); viewer != "" && !IsOrganizer(party, viewer) {
		record, err := s.store.FindParticipation(ctx, party.ID, viewer)
		switch {
		case err == nil:
			details.Viewer = &record
		case !errors.Is(err, ErrParticipationNotFound):
			return PartyDetails{}, err
		}
	}
	return details, nil
}

// ListOrganized pages the parties a user organizes, newest gathering first.
func (s *Service) ListOrganized(ctx context.Context, input ListPartiesInput) (PartyPage, error) {
	return s.listParties(ctx, input, func(userID string, limit, offset int) ([]Party, int, error) {
		return s.store.ListOrganizedParties(ctx, userID, limit, offset)
	})
}

// ListParticipated pages the parties where a user holds an APPROVED record.
func (s *Service) ListParticipated(ctx context.Context, input ListPartiesInput) (PartyPage, error) {
	return s.listParties(ctx, input, func(userID string, limit, offset int) ([]Party, int, error) {
		return s.store.ListParticipatedParties(ctx, userID, limit, offset)
	})
}

func (s *Service) listParties(ctx context.Context, input ListPartiesInput, list func(userID string, limit, offset int) ([]Party, int, error)) (PartyPage, error) {
	if s == nil || s.store == nil {
		return PartyPage{}, ErrStoreNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return PartyPage{}, err
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return PartyPage{}, invalidArgument("user id is required")
	}
	page, err := pagination.Normalize(input.Page, input.PageSize, pagination.DefaultConfig)
	if err != nil {
		return PartyPage{}, invalidArgument(err.Error())
	}
	parties, total, err := list(userID, page.Size, page.Offset())
	if err != nil {
		return PartyPage{}, err
	}
	return PartyPage{
		Parties:    parties,
		Page:       page.Page,
		PageSize:   page.Size,
		Total:      total,
		TotalPages: pagination.TotalPages(total, page.Size),
	}, nil
}

func (s *Service) nowUTC() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
