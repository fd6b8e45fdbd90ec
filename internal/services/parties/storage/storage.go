// Package storage defines persistence records and contracts for the party
// participation ledger.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested party or participation record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// PartyRecord stores one party row.
type PartyRecord struct {
	ID               string
	OrganizerUserID  string
	Title            string
	Body             string
	Notice           string
	PlaceName        string
	Address          string
	ParticipantCost  int
	ParticipantLimit *int
	GatherAt         time.Time
	DueAt            *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ParticipationRecord stores one (party, user) participation row.
type ParticipationRecord struct {
	ID                string
	PartyID           string
	ParticipantUserID string
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PartyPage stores one offset page of parties with the unpaged total.
type PartyPage struct {
	Parties []PartyRecord
	Total   int
}

// PartyStore persists parties and their participation ledger.
type PartyStore interface {
	PutParty(ctx context.Context, record PartyRecord) error
	GetParty(ctx context.Context, partyID string) (PartyRecord, error)
	GetParticipation(ctx context.Context, participationID string) (ParticipationRecord, error)
	FindParticipation(ctx context.Context, partyID string, userID string) (ParticipationRecord, error)
	ListParticipationsByStatus(ctx context.Context, partyID string, status string) ([]ParticipationRecord, error)
	CountParticipationsByStatus(ctx context.Context, partyID string, status string) (int, error)
	ListPartiesByOrganizer(ctx context.Context, userID string, limit int, offset int) (PartyPage, error)
	ListPartiesByParticipant(ctx context.Context, userID string, status string, limit int, offset int) (PartyPage, error)

	// WithPartyLock runs fn inside one transaction holding the party's write
	// lock. It returns ErrNotFound when the party is missing and rolls back
	// when fn fails.
	WithPartyLock(ctx context.Context, partyID string, fn func(tx PartyTx) error) error
}

// PartyTx is the transactional view of one locked party.
type PartyTx interface {
	Party() PartyRecord
	GetParticipation(ctx context.Context, participationID string) (ParticipationRecord, error)
	FindParticipation(ctx context.Context, userID string) (ParticipationRecord, error)
	CountParticipationsByStatus(ctx context.Context, status string) (int, error)
	PutParticipation(ctx context.Context, record ParticipationRecord) error
	PutParty(ctx context.Context, record PartyRecord) error
}
