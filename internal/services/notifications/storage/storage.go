// Package storage defines persistence records and contracts for
// notifications, read marks, and channel deliveries.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested notification or delivery record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// DeliveryChannel identifies one notification channel type.
type DeliveryChannel string

const (
	// DeliveryChannelInApp represents feed delivery, complete at creation.
	DeliveryChannelInApp DeliveryChannel = "in_app"
	// DeliveryChannelPush represents WebSocket push to connected clients.
	DeliveryChannelPush DeliveryChannel = "push"
)

// DeliveryStatus identifies one delivery lifecycle state.
type DeliveryStatus string

const (
	// DeliveryStatusPending means the delivery is queued for processing.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusFailed means the delivery attempt failed and can be retried.
	DeliveryStatusFailed DeliveryStatus = "failed"
	// DeliveryStatusDelivered means the channel delivery was completed.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusSkipped means the channel was intentionally skipped.
	DeliveryStatusSkipped DeliveryStatus = "skipped"
	// DeliveryStatusDead means retries were exhausted.
	DeliveryStatusDead DeliveryStatus = "dead"
)

// NotificationRecord stores one immutable notification row. GLOBAL rows
// carry an empty TargetUserID.
type NotificationRecord struct {
	ID             string
	Scope          string
	TargetUserID   string
	RelatedID      string
	Classification string
	Message        string
	PayloadJSON    string
	DedupeKey      string
	Source         string
	CreatedAt      time.Time
}

// FeedRecord is one notification joined with the reader's mark.
type FeedRecord struct {
	Notification NotificationRecord
	ReadAt       *time.Time
}

// FeedPage stores one offset page of a reader's feed with the unpaged total.
type FeedPage struct {
	Items []FeedRecord
	Total int
}

// DeliveryRecord stores one channel-delivery attempt state.
type DeliveryRecord struct {
	NotificationID string
	Channel        DeliveryChannel
	Status         DeliveryStatus
	AttemptCount   int
	NextAttemptAt  time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeliveredAt    *time.Time
}

// NotificationStore persists notifications and read marks.
type NotificationStore interface {
	// PutNotificationWithDeliveries atomically inserts a notification with
	// its initial channel deliveries.
	PutNotificationWithDeliveries(ctx context.Context, notification NotificationRecord, deliveries []DeliveryRecord) error
	GetNotification(ctx context.Context, notificationID string) (NotificationRecord, error)
	GetNotificationByDedupeKey(ctx context.Context, targetUserID string, dedupeKey string) (NotificationRecord, error)
	GetNotifications(ctx context.Context, notificationIDs []string) ([]NotificationRecord, error)
	ListFeed(ctx context.Context, userID string, limit int, offset int) (FeedPage, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	PutReadMarks(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int, error)
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error)
}

// DeliveryStore persists channel delivery attempt state.
type DeliveryStore interface {
	ListPendingDeliveries(ctx context.Context, channel DeliveryChannel, limit int, now time.Time) ([]DeliveryRecord, error)
	MarkDeliveryRetry(ctx context.Context, notificationID string, channel DeliveryChannel, attemptCount int, nextAttemptAt time.Time, lastError string) error
	MarkDeliveryFinal(ctx context.Context, notificationID string, channel DeliveryChannel, status DeliveryStatus, attemptCount int, at time.Time, lastError string) error
}
