package domain

import "context"

// Store is the domain persistence boundary for the participation ledger.
//
// Lookups outside WithPartyLock are unserialized reads; every status or
// party write goes through a PartyTx.
type Store interface {
	CreateParty(ctx context.Context, party Party) error
	GetParty(ctx context.Context, partyID string) (Party, error)
	GetParticipation(ctx context.Context, participationID string) (Participation, error)
	ListParticipations(ctx context.Context, partyID string, status Status) ([]Participation, error)
	FindParticipation(ctx context.Context, partyID string, userID string) (Participation, error)
	CountApproved(ctx context.Context, partyID string) (int, error)
	ListOrganizedParties(ctx context.Context, userID string, limit int, offset int) ([]Party, int, error)
	ListParticipatedParties(ctx context.Context, userID string, limit int, offset int) ([]Party, int, error)

	// WithPartyLock runs fn while holding the party's write lock. It returns
	// ErrPartyNotFound when the party does not exist. fn's error rolls back
	// every write made through tx.
	WithPartyLock(ctx context.Context, partyID string, fn func(tx PartyTx) error) error
}

// PartyTx is the write view of one locked party.
type PartyTx interface {
	// Party returns the party row read under the lock.
	Party() Party
	GetParticipation(ctx context.Context, participationID string) (Participation, error)
	FindParticipation(ctx context.Context, userID string) (Participation, error)
	CountApproved(ctx context.Context) (int, error)
	// PutParticipation inserts or updates one record of the locked party.
	PutParticipation(ctx context.Context, record Participation) error
	UpdateParty(ctx context.Context, party Party) error
}
