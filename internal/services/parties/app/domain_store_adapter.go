package server

import (
	"context"
	"errors"

	"github.com/louisbranch/gathering.space/internal/services/parties/domain"
	"github.com/louisbranch/gathering.space/internal/services/parties/storage"
)

type domainStoreAdapter struct {
	store storage.PartyStore
}

func newDomainStoreAdapter(store storage.PartyStore) *domainStoreAdapter {
	return &domainStoreAdapter{store: store}
}

func (a *domainStoreAdapter) CreateParty(ctx context.Context, party domain.Party) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapPartyError(a.store.PutParty(ctx, toPartyRecord(party)))
}

func (a *domainStoreAdapter) GetParty(ctx context.Context, partyID string) (domain.Party, error) {
	if a == nil || a.store == nil {
		return domain.Party{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetParty(ctx, partyID)
	if err != nil {
		return domain.Party{}, mapPartyError(err)
	}
	return toDomainParty(record), nil
}

func (a *domainStoreAdapter) GetParticipation(ctx context.Context, participationID string) (domain.Participation, error) {
	if a == nil || a.store == nil {
		return domain.Participation{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetParticipation(ctx, participationID)
	if err != nil {
		return domain.Participation{}, mapParticipationError(err)
	}
	return toDomainParticipation(record), nil
}

func (a *domainStoreAdapter) ListParticipations(ctx context.Context, partyID string, status domain.Status) ([]domain.Participation, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListParticipationsByStatus(ctx, partyID, string(status))
	if err != nil {
		return nil, mapParticipationError(err)
	}
	out := make([]domain.Participation, 0, len(records))
	for _, record := range records {
		out = append(out, toDomainParticipation(record))
	}
	return out, nil
}

func (a *domainStoreAdapter) FindParticipation(ctx context.Context, partyID string, userID string) (domain.Participation, error) {
	if a == nil || a.store == nil {
		return domain.Participation{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.FindParticipation(ctx, partyID, userID)
	if err != nil {
		return domain.Participation{}, mapParticipationError(err)
	}
	return toDomainParticipation(record), nil
}

func (a *domainStoreAdapter) CountApproved(ctx context.Context, partyID string) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	count, err := a.store.CountParticipationsByStatus(ctx, partyID, string(domain.StatusApproved))
	if err != nil {
		return 0, mapPartyError(err)
	}
	return count, nil
}

func (a *domainStoreAdapter) ListOrganizedParties(ctx context.Context, userID string, limit int, offset int) ([]domain.Party, int, error) {
	if a == nil || a.store == nil {
		return nil, 0, domain.ErrStoreNotConfigured
	}
	page, err := a.store.ListPartiesByOrganizer(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, mapPartyError(err)
	}
	return toDomainParties(page.Parties), page.Total, nil
}

func (a *domainStoreAdapter) ListParticipatedParties(ctx context.Context, userID string, limit int, offset int) ([]domain.Party, int, error) {
	if a == nil || a.store == nil {
		return nil, 0, domain.ErrStoreNotConfigured
	}
	page, err := a.store.ListPartiesByParticipant(ctx, userID, string(domain.StatusApproved), limit, offset)
	if err != nil {
		return nil, 0, mapPartyError(err)
	}
	return toDomainParties(page.Parties), page.Total, nil
}

func (a *domainStoreAdapter) WithPartyLock(ctx context.Context, partyID string, fn func(tx domain.PartyTx) error) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	err := a.store.WithPartyLock(ctx, partyID, func(tx storage.PartyTx) error {
		return fn(&partyTxAdapter{tx: tx})
	})
	return mapPartyError(err)
}

type partyTxAdapter struct {
	tx storage.PartyTx
}

func (t *partyTxAdapter) Party() domain.Party {
	return toDomainParty(t.tx.Party())
}

func (t *partyTxAdapter) GetParticipation(ctx context.Context, participationID string) (domain.Participation, error) {
	record, err := t.tx.GetParticipation(ctx, participationID)
	if err != nil {
		return domain.Participation{}, mapParticipationError(err)
	}
	return toDomainParticipation(record), nil
}

func (t *partyTxAdapter) FindParticipation(ctx context.Context, userID string) (domain.Participation, error) {
	record, err := t.tx.FindParticipation(ctx, userID)
	if err != nil {
		return domain.Participation{}, mapParticipationError(err)
	}
	return toDomainParticipation(record), nil
}

func (t *partyTxAdapter) CountApproved(ctx context.Context) (int, error) {
	return t.tx.CountParticipationsByStatus(ctx, string(domain.StatusApproved))
}

func (t *partyTxAdapter) PutParticipation(ctx context.Context, record domain.Participation) error {
	return mapParticipationError(t.tx.PutParticipation(ctx, toParticipationRecord(record)))
}

func (t *partyTxAdapter) UpdateParty(ctx context.Context, party domain.Party) error {
	return mapPartyError(t.tx.PutParty(ctx, toPartyRecord(party)))
}

func toPartyRecord(party domain.Party) storage.PartyRecord {
	return storage.PartyRecord{
		ID:               party.ID,
		OrganizerUserID:  party.OrganizerUserID,
		Title:            party.Title,
		Body:             party.Body,
		Notice:           party.Notice,
		PlaceName:        party.PlaceName,
		Address:          party.Address,
		ParticipantCost:  party.ParticipantCost,
		ParticipantLimit: party.ParticipantLimit,
		GatherAt:         party.GatherAt,
		DueAt:            party.DueAt,
		CreatedAt:        party.CreatedAt,
		UpdatedAt:        party.UpdatedAt,
	}
}

func toDomainParty(record storage.PartyRecord) domain.Party {
	return domain.Party{
		ID:               record.ID,
		OrganizerUserID:  record.OrganizerUserID,
		Title:            record.Title,
		Body:             record.Body,
		Notice:           record.Notice,
		PlaceName:        record.PlaceName,
		Address:          record.Address,
		ParticipantCost:  record.ParticipantCost,
		ParticipantLimit: record.ParticipantLimit,
		GatherAt:         record.GatherAt,
		DueAt:            record.DueAt,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func toDomainParties(records []storage.PartyRecord) []domain.Party {
	out := make([]domain.Party, 0, len(records))
	for _, record := range records {
		out = append(out, toDomainParty(record))
	}
	return out
}

func toParticipationRecord(record domain.Participation) storage.ParticipationRecord {
	return storage.ParticipationRecord{
		ID:                record.ID,
		PartyID:           record.PartyID,
		ParticipantUserID: record.ParticipantUserID,
		Status:            string(record.Status),
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func toDomainParticipation(record storage.ParticipationRecord) domain.Participation {
	status, ok := domain.ParseStatus(record.Status)
	if !ok {
		status = domain.Status(record.Status)
	}
	return domain.Participation{
		ID:                record.ID,
		PartyID:           record.PartyID,
		ParticipantUserID: record.ParticipantUserID,
		Status:            status,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func mapPartyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrPartyNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	default:
		return err
	}
}

func mapParticipationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrParticipationNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	default:
		return err
	}
}
