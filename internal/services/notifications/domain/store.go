package domain

import (
	"context"
	"time"
)

// Store is the domain persistence boundary for notifications and read marks.
type Store interface {
	// PutNotification inserts one notification. A dedupe collision returns ErrConflict.
	PutNotification(ctx context.Context, notification Notification) error
	// GetNotificationByDedupeKey looks up a prior emission. GLOBAL
	// notifications use an empty targetUserID.
	GetNotificationByDedupeKey(ctx context.Context, targetUserID string, dedupeKey string) (Notification, error)
	// GetNotifications returns the subset of ids that exist, in any order.
	GetNotifications(ctx context.Context, ids []string) ([]Notification, error)
	// ListFeed returns GLOBAL and user-targeted notifications newest first,
	// with the unpaged total.
	ListFeed(ctx context.Context, userID string, limit int, offset int) ([]FeedItem, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	// PutReadMarks inserts missing marks and returns how many were created.
	PutReadMarks(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int, error)
	// MarkAllRead marks every visible unread notification and returns how many were created.
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error)
}
