package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/gathering.space/internal/services/notifications/domain"
	"github.com/louisbranch/gathering.space/internal/services/notifications/storage"
)

const pushDisabledReason = "push delivery disabled"

type domainStoreAdapter struct {
	store       storage.NotificationStore
	pushEnabled bool
}

func newDomainStoreAdapter(store storage.NotificationStore, pushEnabled bool) *domainStoreAdapter {
	return &domainStoreAdapter{store: store, pushEnabled: pushEnabled}
}

func (a *domainStoreAdapter) PutNotification(ctx context.Context, notification domain.Notification) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	baseTime := notification.CreatedAt.UTC()
	if baseTime.IsZero() {
		baseTime = time.Now().UTC()
	}

	policy := domain.ResolveDeliveryPolicy(notification.Classification)
	deliveries := make([]storage.DeliveryRecord, 0, 2)
	if policy.InApp {
		deliveries = append(deliveries, storage.DeliveryRecord{
			NotificationID: notification.ID,
			Channel:        storage.DeliveryChannelInApp,
			Status:         storage.DeliveryStatusDelivered,
			AttemptCount:   1,
			NextAttemptAt:  baseTime,
			CreatedAt:      baseTime,
			UpdatedAt:      baseTime,
			DeliveredAt:    &baseTime,
		})
	}
	if policy.Push {
		push := storage.DeliveryRecord{
			NotificationID: notification.ID,
			Channel:        storage.DeliveryChannelPush,
			Status:         storage.DeliveryStatusPending,
			NextAttemptAt:  baseTime,
			CreatedAt:      baseTime,
			UpdatedAt:      baseTime,
		}
		if !a.pushEnabled {
			push.Status = storage.DeliveryStatusSkipped
			push.LastError = pushDisabledReason
		}
		deliveries = append(deliveries, push)
	}

	return mapStorageError(a.store.PutNotificationWithDeliveries(ctx, toStorageNotification(notification), deliveries))
}

func (a *domainStoreAdapter) GetNotificationByDedupeKey(ctx context.Context, targetUserID string, dedupeKey string) (domain.Notification, error) {
	if a == nil || a.store == nil {
		return domain.Notification{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetNotificationByDedupeKey(ctx, targetUserID, dedupeKey)
	if err != nil {
		return domain.Notification{}, mapStorageError(err)
	}
	return toDomainNotification(record), nil
}

func (a *domainStoreAdapter) GetNotifications(ctx context.Context, ids []string) ([]domain.Notification, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.GetNotifications(ctx, ids)
	if err != nil {
		return nil, mapStorageError(err)
	}
	out := make([]domain.Notification, 0, len(records))
	for _, record := range records {
		out = append(out, toDomainNotification(record))
	}
	return out, nil
}

func (a *domainStoreAdapter) ListFeed(ctx context.Context, userID string, limit int, offset int) ([]domain.FeedItem, int, error) {
	if a == nil || a.store == nil {
		return nil, 0, domain.ErrStoreNotConfigured
	}
	page, err := a.store.ListFeed(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, mapStorageError(err)
	}
	items := make([]domain.FeedItem, 0, len(page.Items))
	for _, record := range page.Items {
		items = append(items, domain.FeedItem{
			Notification: toDomainNotification(record.Notification),
			IsRead:       record.ReadAt != nil,
			ReadAt:       record.ReadAt,
		})
	}
	return items, page.Total, nil
}

func (a *domainStoreAdapter) CountUnread(ctx context.Context, userID string) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	count, err := a.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return count, nil
}

func (a *domainStoreAdapter) PutReadMarks(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	created, err := a.store.PutReadMarks(ctx, userID, notificationIDs, readAt)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return created, nil
}

func (a *domainStoreAdapter) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	created, err := a.store.MarkAllRead(ctx, userID, readAt)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return created, nil
}

func toStorageNotification(notification domain.Notification) storage.NotificationRecord {
	record := storage.NotificationRecord{
		ID:             notification.ID,
		Scope:          string(notification.Scope),
		TargetUserID:   notification.TargetUserID,
		RelatedID:      notification.RelatedID,
		Classification: notification.Classification,
		Message:        notification.Message,
		PayloadJSON:    notification.PayloadJSON,
		DedupeKey:      notification.DedupeKey,
		Source:         notification.Source,
		CreatedAt:      notification.CreatedAt,
	}
	if notification.Scope == domain.ScopeGlobal {
		record.TargetUserID = ""
	}
	return record
}

func toDomainNotification(record storage.NotificationRecord) domain.Notification {
	scope, ok := domain.ParseScope(record.Scope)
	if !ok {
		scope = domain.Scope(strings.ToUpper(strings.TrimSpace(record.Scope)))
	}
	return domain.Notification{
		ID:             record.ID,
		Scope:          scope,
		TargetUserID:   record.TargetUserID,
		RelatedID:      record.RelatedID,
		Classification: record.Classification,
		Message:        record.Message,
		PayloadJSON:    record.PayloadJSON,
		DedupeKey:      record.DedupeKey,
		Source:         record.Source,
		CreatedAt:      record.CreatedAt,
	}
}

func mapStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	default:
		return err
	}
}
