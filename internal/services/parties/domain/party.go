package domain

import (
	"strings"
	"time"
)

// Party is an organizer-owned event with an optional participant limit.
type Party struct {
	ID              string
	OrganizerUserID string
	Title           string
	Body            string
	Notice          string
	PlaceName       string
	Address         string
	ParticipantCost int
	// ParticipantLimit is nil for unlimited parties.
	ParticipantLimit *int
	GatherAt         time.Time
	DueAt            *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Participation is one user's request to join a party.
type Participation struct {
	ID                string
	PartyID           string
	ParticipantUserID string
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PartyDetails is the party view with its current roster.
type PartyDetails struct {
	Party    Party
	Capacity Capacity
	Approved []Participation
	Pending  []Participation
	// Viewer is the caller's own record, nil when the caller never requested.
	Viewer *Participation
}

// PartyPage is one offset page of parties.
type PartyPage struct {
	Parties    []Party
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// PartyFields are the organizer-editable attributes of a party.
type PartyFields struct {
	Title            string
	Body             string
	Notice           string
	PlaceName        string
	Address          string
	ParticipantCost  int
	ParticipantLimit *int
	GatherAt         time.Time
	DueAt            *time.Time
}

func (f PartyFields) normalized() (PartyFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Body = strings.TrimSpace(f.Body)
	f.Notice = strings.TrimSpace(f.Notice)
	f.PlaceName = strings.TrimSpace(f.PlaceName)
	f.Address = strings.TrimSpace(f.Address)
	if f.Title == "" {
		return PartyFields{}, invalidArgument("party title is required")
	}
	if f.ParticipantCost < 0 {
		return PartyFields{}, invalidArgument("participant cost must be non-negative")
	}
	if f.ParticipantLimit != nil {
		if *f.ParticipantLimit < 1 {
			return PartyFields{}, invalidArgument("participant limit must be at least 1")
		}
		limit := *f.ParticipantLimit
		f.ParticipantLimit = &limit
	}
	if f.GatherAt.IsZero() {
		return PartyFields{}, invalidArgument("gather time is required")
	}
	f.GatherAt = f.GatherAt.UTC()
	if f.DueAt != nil {
		due := f.DueAt.UTC()
		if due.After(f.GatherAt) {
			return PartyFields{}, invalidArgument("due time must not be after gather time")
		}
		f.DueAt = &due
	}
	return f, nil
}

func (p Party) withFields(f PartyFields) Party {
	p.Title = f.Title
	p.Body = f.Body
	p.Notice = f.Notice
	p.PlaceName = f.PlaceName
	p.Address = f.Address
	p.ParticipantCost = f.ParticipantCost
	p.ParticipantLimit = f.ParticipantLimit
	p.GatherAt = f.GatherAt
	p.DueAt = f.DueAt
	return p
}
