package domain

import "strings"

// IsOrganizer reports whether userID organizes party.
func IsOrganizer(party Party, userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && party.OrganizerUserID == userID
}

// IsRecordOwner reports whether userID owns the participation record.
func IsRecordOwner(record Participation, userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && record.ParticipantUserID == userID
}

// RequireOrganizer returns ErrForbidden unless userID organizes party.
func RequireOrganizer(party Party, userID string) error {
	if !IsOrganizer(party, userID) {
		return ErrForbidden
	}
	return nil
}

// RequireRecordOwner returns ErrForbidden unless userID owns record.
func RequireRecordOwner(record Participation, userID string) error {
	if !IsRecordOwner(record, userID) {
		return ErrForbidden
	}
	return nil
}
