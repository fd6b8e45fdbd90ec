// Package postgres provides the PostgreSQL-backed notification store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/louisbranch/gathering.space/internal/platform/storage/pgmigrate"
	"github.com/louisbranch/gathering.space/internal/services/notifications/storage"
	"github.com/louisbranch/gathering.space/internal/services/notifications/storage/postgres/migrations"
)

const migrationTable = "notifications_schema_migrations"

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store provides PostgreSQL-backed persistence for notifications state.
type Store struct {
	pool *pgxpool.Pool
}

// Open migrates the schema and connects a pool to dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if err := pgmigrate.ApplyMigrations(ctx, dsn, migrations.FS, migrationTable); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Ping checks database liveness for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.pool.Ping(ctx)
}

// PutNotificationWithDeliveries atomically persists one notification with initial deliveries.
func (s *Store) PutNotificationWithDeliveries(ctx context.Context, notification storage.NotificationRecord, deliveries []storage.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	record, err := storage.NormalizeNotificationRecord(notification)
	if err != nil {
		return err
	}
	normalizedDeliveries := make([]storage.DeliveryRecord, 0, len(deliveries))
	for _, delivery := range deliveries {
		normalized, normalizeErr := storage.NormalizeDeliveryRecord(delivery)
		if normalizeErr != nil {
			return normalizeErr
		}
		normalizedDeliveries = append(normalizedDeliveries, normalized)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
		INSERT INTO notifications (
			id, scope, target_user_id, related_id, classification, message, payload_json, dedupe_key, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			record.ID,
			record.Scope,
			record.TargetUserID,
			record.RelatedID,
			record.Classification,
			record.Message,
			record.PayloadJSON,
			record.DedupeKey,
			record.Source,
			record.CreatedAt,
		); err != nil {
			if hasCode(err, uniqueViolation) {
				return storage.ErrConflict
			}
			return fmt.Errorf("put notification: %w", err)
		}
		for _, delivery := range normalizedDeliveries {
			if _, err := tx.Exec(ctx, `
			INSERT INTO notification_deliveries (
				notification_id, channel, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (notification_id, channel) DO UPDATE SET
				status = EXCLUDED.status,
				attempt_count = EXCLUDED.attempt_count,
				next_attempt_at = EXCLUDED.next_attempt_at,
				last_error = EXCLUDED.last_error,
				updated_at = EXCLUDED.updated_at,
				delivered_at = EXCLUDED.delivered_at
			`,
				delivery.NotificationID,
				string(delivery.Channel),
				string(delivery.Status),
				delivery.AttemptCount,
				delivery.NextAttemptAt,
				delivery.LastError,
				delivery.CreatedAt,
				delivery.UpdatedAt,
				delivery.DeliveredAt,
			); err != nil {
				if hasCode(err, uniqueViolation) || hasCode(err, foreignKeyViolation) {
					return storage.ErrConflict
				}
				return fmt.Errorf("put delivery: %w", err)
			}
		}
		return nil
	})
}

// GetNotification loads one notification by id.
func (s *Store) GetNotification(ctx context.Context, notificationID string) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	if s == nil || s.pool == nil {
		return storage.NotificationRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.pool.QueryRow(ctx, selectNotification+`WHERE id = $1`, strings.TrimSpace(notificationID))
	return scanNotificationRow(row)
}

// GetNotificationByDedupeKey loads one notification by target and dedupe key.
func (s *Store) GetNotificationByDedupeKey(ctx context.Context, targetUserID string, dedupeKey string) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	if s == nil || s.pool == nil {
		return storage.NotificationRecord{}, fmt.Errorf("storage is not configured")
	}
	dedupeKey = strings.TrimSpace(dedupeKey)
	if dedupeKey == "" {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, selectNotification+`WHERE target_user_id = $1 AND dedupe_key = $2`, strings.TrimSpace(targetUserID), dedupeKey)
	return scanNotificationRow(row)
}

// GetNotifications returns the existing subset of notificationIDs.
func (s *Store) GetNotifications(ctx context.Context, notificationIDs []string) ([]storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	ids := storage.CompactIDs(notificationIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, selectNotification+`WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get notifications: %w", err)
	}
	defer rows.Close()

	results := make([]storage.NotificationRecord, 0, len(ids))
	for rows.Next() {
		record, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan notification row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return results, nil
}

// ListFeed lists GLOBAL and user-targeted notifications newest first.
func (s *Store) ListFeed(ctx context.Context, userID string, limit int, offset int) (storage.FeedPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.FeedPage{}, err
	}
	if s == nil || s.pool == nil {
		return storage.FeedPage{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.FeedPage{}, fmt.Errorf("user id is required")
	}
	if limit <= 0 || offset < 0 {
		return storage.FeedPage{}, fmt.Errorf("limit must be positive and offset non-negative")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `
SELECT COUNT(1) FROM notifications WHERE scope = 'GLOBAL' OR target_user_id = $1
`, userID).Scan(&total); err != nil {
		return storage.FeedPage{}, fmt.Errorf("count feed: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT n.id, n.scope, n.target_user_id, n.related_id, n.classification, n.message,
       n.payload_json::text, n.dedupe_key, n.source, n.created_at, r.read_at
FROM notifications n
LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
WHERE n.scope = 'GLOBAL' OR n.target_user_id = $1
ORDER BY n.created_at DESC, n.id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return storage.FeedPage{}, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()

	page := storage.FeedPage{Total: total, Items: make([]storage.FeedRecord, 0, limit)}
	for rows.Next() {
		var readAt *time.Time
		record, scanErr := scanNotification(rowFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &readAt)...)
		}))
		if scanErr != nil {
			return storage.FeedPage{}, fmt.Errorf("scan feed row: %w", scanErr)
		}
		item := storage.FeedRecord{Notification: record}
		if readAt != nil {
			value := readAt.UTC()
			item.ReadAt = &value
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return storage.FeedPage{}, fmt.Errorf("iterate feed rows: %w", err)
	}
	return page, nil
}

// CountUnread returns how many visible notifications the user has not read.
func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	var unread int
	if err := s.pool.QueryRow(ctx, `
SELECT COUNT(1)
FROM notifications n
LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
WHERE (n.scope = 'GLOBAL' OR n.target_user_id = $1)
  AND r.notification_id IS NULL
`, userID).Scan(&unread); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return unread, nil
}

// PutReadMarks inserts missing read marks and returns how many were created.
func (s *Store) PutReadMarks(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	ids := storage.CompactIDs(notificationIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO notification_reads (user_id, notification_id, read_at)
SELECT $1, id, $3 FROM unnest($2::text[]) AS id
ON CONFLICT (user_id, notification_id) DO NOTHING
`, userID, ids, readAt.UTC())
	if err != nil {
		if hasCode(err, foreignKeyViolation) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("put read marks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// MarkAllRead marks every visible unread notification for the user.
func (s *Store) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO notification_reads (user_id, notification_id, read_at)
SELECT $1, n.id, $2
FROM notifications n
WHERE n.scope = 'GLOBAL' OR n.target_user_id = $1
ON CONFLICT (user_id, notification_id) DO NOTHING
`, userID, readAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListPendingDeliveries lists due channel deliveries ordered by next-attempt time.
func (s *Store) ListPendingDeliveries(ctx context.Context, channel storage.DeliveryChannel, limit int, now time.Time) ([]storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(string(channel)) == "" {
		return nil, fmt.Errorf("delivery channel is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.pool.Query(ctx, `
SELECT notification_id, channel, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at
FROM notification_deliveries
WHERE channel = $1
  AND status IN ($2, $3)
  AND next_attempt_at <= $4
ORDER BY next_attempt_at ASC, notification_id ASC
LIMIT $5
`, string(channel), string(storage.DeliveryStatusPending), string(storage.DeliveryStatusFailed), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	results := make([]storage.DeliveryRecord, 0, limit)
	for rows.Next() {
		var record storage.DeliveryRecord
		var channelValue, statusValue string
		if err := rows.Scan(
			&record.NotificationID,
			&channelValue,
			&statusValue,
			&record.AttemptCount,
			&record.NextAttemptAt,
			&record.LastError,
			&record.CreatedAt,
			&record.UpdatedAt,
			&record.DeliveredAt,
		); err != nil {
			return nil, fmt.Errorf("scan pending delivery row: %w", err)
		}
		record.Channel = storage.DeliveryChannel(channelValue)
		record.Status = storage.DeliveryStatus(statusValue)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending delivery rows: %w", err)
	}
	return results, nil
}

// MarkDeliveryRetry records one failed delivery attempt and schedules the next retry.
func (s *Store) MarkDeliveryRetry(ctx context.Context, notificationID string, channel storage.DeliveryChannel, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE notification_deliveries
SET status = $1, attempt_count = $2, next_attempt_at = $3, last_error = $4, updated_at = now(), delivered_at = NULL
WHERE notification_id = $5 AND channel = $6
`, string(storage.DeliveryStatusFailed), attemptCount, nextAttemptAt.UTC(), strings.TrimSpace(lastError), strings.TrimSpace(notificationID), string(channel))
	if err != nil {
		return fmt.Errorf("mark delivery retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkDeliveryFinal records a delivered, skipped, or dead delivery.
func (s *Store) MarkDeliveryFinal(ctx context.Context, notificationID string, channel storage.DeliveryChannel, status storage.DeliveryStatus, attemptCount int, at time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	switch status {
	case storage.DeliveryStatusDelivered, storage.DeliveryStatusSkipped, storage.DeliveryStatusDead:
	default:
		return fmt.Errorf("delivery status %q is not final", status)
	}
	var deliveredAt *time.Time
	if status == storage.DeliveryStatusDelivered {
		value := at.UTC()
		deliveredAt = &value
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE notification_deliveries
SET status = $1, attempt_count = $2, updated_at = $3, delivered_at = $4, last_error = $5
WHERE notification_id = $6 AND channel = $7
`, string(status), attemptCount, at.UTC(), deliveredAt, strings.TrimSpace(lastError), strings.TrimSpace(notificationID), string(channel))
	if err != nil {
		return fmt.Errorf("mark delivery final: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const selectNotification = `
SELECT id, scope, target_user_id, related_id, classification, message, payload_json::text, dedupe_key, source, created_at
FROM notifications
`

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func scanNotification(row pgx.Row) (storage.NotificationRecord, error) {
	var record storage.NotificationRecord
	if err := row.Scan(
		&record.ID,
		&record.Scope,
		&record.TargetUserID,
		&record.RelatedID,
		&record.Classification,
		&record.Message,
		&record.PayloadJSON,
		&record.DedupeKey,
		&record.Source,
		&record.CreatedAt,
	); err != nil {
		return storage.NotificationRecord{}, err
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

func scanNotificationRow(row pgx.Row) (storage.NotificationRecord, error) {
	record, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.NotificationRecord{}, storage.ErrNotFound
		}
		return storage.NotificationRecord{}, fmt.Errorf("get notification: %w", err)
	}
	return record, nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
