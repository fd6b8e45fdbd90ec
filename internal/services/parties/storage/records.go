package storage

import (
	"fmt"
	"strings"
)

// NormalizePartyRecord trims identifiers and validates required party fields.
func NormalizePartyRecord(record PartyRecord) (PartyRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.OrganizerUserID = strings.TrimSpace(record.OrganizerUserID)
	record.Title = strings.TrimSpace(record.Title)
	if record.ID == "" {
		return PartyRecord{}, fmt.Errorf("party id is required")
	}
	if record.OrganizerUserID == "" {
		return PartyRecord{}, fmt.Errorf("organizer user id is required")
	}
	if record.Title == "" {
		return PartyRecord{}, fmt.Errorf("party title is required")
	}
	if record.GatherAt.IsZero() {
		return PartyRecord{}, fmt.Errorf("gather_at is required")
	}
	if record.CreatedAt.IsZero() {
		return PartyRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return PartyRecord{}, fmt.Errorf("updated_at is required")
	}
	if record.ParticipantLimit != nil && *record.ParticipantLimit < 1 {
		return PartyRecord{}, fmt.Errorf("participant limit must be at least 1")
	}
	record.GatherAt = record.GatherAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if record.DueAt != nil {
		dueAt := record.DueAt.UTC()
		record.DueAt = &dueAt
	}
	return record, nil
}

// NormalizeParticipationRecord trims identifiers and validates required fields.
func NormalizeParticipationRecord(record ParticipationRecord) (ParticipationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.PartyID = strings.TrimSpace(record.PartyID)
	record.ParticipantUserID = strings.TrimSpace(record.ParticipantUserID)
	record.Status = strings.TrimSpace(record.Status)
	if record.ID == "" {
		return ParticipationRecord{}, fmt.Errorf("participation id is required")
	}
	if record.PartyID == "" {
		return ParticipationRecord{}, fmt.Errorf("party id is required")
	}
	if record.ParticipantUserID == "" {
		return ParticipationRecord{}, fmt.Errorf("participant user id is required")
	}
	if record.Status == "" {
		return ParticipationRecord{}, fmt.Errorf("participation status is required")
	}
	if record.CreatedAt.IsZero() {
		return ParticipationRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return ParticipationRecord{}, fmt.Errorf("updated_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
