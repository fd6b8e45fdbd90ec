package storage

import (
	"fmt"
	"strings"
)

// NormalizeNotificationRecord trims fields and validates required values.
func NormalizeNotificationRecord(record NotificationRecord) (NotificationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Scope = strings.TrimSpace(record.Scope)
	record.TargetUserID = strings.TrimSpace(record.TargetUserID)
	record.RelatedID = strings.TrimSpace(record.RelatedID)
	record.Classification = strings.TrimSpace(record.Classification)
	record.DedupeKey = strings.TrimSpace(record.DedupeKey)
	record.Source = strings.TrimSpace(record.Source)
	record.PayloadJSON = strings.TrimSpace(record.PayloadJSON)
	if record.PayloadJSON == "" {
		record.PayloadJSON = "{}"
	}
	if record.ID == "" {
		return NotificationRecord{}, fmt.Errorf("notification id is required")
	}
	if record.Scope == "" {
		return NotificationRecord{}, fmt.Errorf("notification scope is required")
	}
	if strings.TrimSpace(record.Message) == "" {
		return NotificationRecord{}, fmt.Errorf("message is required")
	}
	if record.CreatedAt.IsZero() {
		return NotificationRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

// NormalizeDeliveryRecord trims fields and validates required values.
func NormalizeDeliveryRecord(record DeliveryRecord) (DeliveryRecord, error) {
	record.NotificationID = strings.TrimSpace(record.NotificationID)
	record.Channel = DeliveryChannel(strings.TrimSpace(string(record.Channel)))
	record.Status = DeliveryStatus(strings.TrimSpace(string(record.Status)))
	record.LastError = strings.TrimSpace(record.LastError)
	if record.NotificationID == "" {
		return DeliveryRecord{}, fmt.Errorf("notification id is required")
	}
	if record.Channel == "" {
		return DeliveryRecord{}, fmt.Errorf("delivery channel is required")
	}
	if record.Status == "" {
		return DeliveryRecord{}, fmt.Errorf("delivery status is required")
	}
	if record.NextAttemptAt.IsZero() {
		return DeliveryRecord{}, fmt.Errorf("next attempt at is required")
	}
	if record.CreatedAt.IsZero() {
		return DeliveryRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return DeliveryRecord{}, fmt.Errorf("updated_at is required")
	}
	record.NextAttemptAt = record.NextAttemptAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if record.DeliveredAt != nil {
		deliveredAt := record.DeliveredAt.UTC()
		record.DeliveredAt = &deliveredAt
	}
	return record, nil
}

// CompactIDs trims ids and drops blanks and duplicates, keeping order.
func CompactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
