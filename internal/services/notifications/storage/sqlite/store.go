// Package sqlite provides the SQLite-backed notification store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/gathering.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/gathering.space/internal/services/notifications/storage"
	"github.com/louisbranch/gathering.space/internal/services/notifications/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const migrationNamespace = "notifications"

// Store provides SQLite-backed persistence for notifications state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a notifications SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, migrationNamespace); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks database liveness for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// PutNotificationWithDeliveries atomically persists one notification with initial deliveries.
func (s *Store) PutNotificationWithDeliveries(ctx context.Context, notification storage.NotificationRecord, deliveries []storage.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	normalizedNotification, err := storage.NormalizeNotificationRecord(notification)
	if err != nil {
		return err
	}
	normalizedDeliveries := make([]storage.DeliveryRecord, 0, len(deliveries))
	for _, delivery := range deliveries {
		normalizedDelivery, normalizeErr := storage.NormalizeDeliveryRecord(delivery)
		if normalizeErr != nil {
			return normalizeErr
		}
		normalizedDeliveries = append(normalizedDeliveries, normalizedDelivery)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback notification write: %v", cause, rollbackErr)
		}
		return cause
	}

	if err := insertNotificationExec(ctx, tx, normalizedNotification); err != nil {
		return rollbackWith(err)
	}
	for _, delivery := range normalizedDeliveries {
		if err := putDeliveryExec(ctx, tx, delivery); err != nil {
			return rollbackWith(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification write: %w", err)
	}
	return nil
}

// GetNotification loads one notification by id.
func (s *Store) GetNotification(ctx context.Context, notificationID string) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.NotificationRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, selectNotification+`WHERE id = ?`, strings.TrimSpace(notificationID))
	record, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotificationRecord{}, storage.ErrNotFound
		}
		return storage.NotificationRecord{}, fmt.Errorf("get notification: %w", err)
	}
	return record, nil
}

// GetNotificationByDedupeKey loads one notification by target and dedupe key.
func (s *Store) GetNotificationByDedupeKey(ctx context.Context, targetUserID string, dedupeKey string) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.NotificationRecord{}, fmt.Errorf("storage is not configured")
	}
	dedupeKey = strings.TrimSpace(dedupeKey)
	if dedupeKey == "" {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, selectNotification+`
WHERE target_user_id = ? AND dedupe_key = ?
`, strings.TrimSpace(targetUserID), dedupeKey)
	record, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotificationRecord{}, storage.ErrNotFound
		}
		return storage.NotificationRecord{}, fmt.Errorf("get notification by dedupe key: %w", err)
	}
	return record, nil
}

// GetNotifications returns the existing subset of notificationIDs.
func (s *Store) GetNotifications(ctx context.Context, notificationIDs []string) ([]storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	ids := storage.CompactIDs(notificationIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, value := range ids {
		args = append(args, value)
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectNotification+`WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get notifications: %w", err)
	}
	defer rows.Close()

	results := make([]storage.NotificationRecord, 0, len(ids))
	for rows.Next() {
		record, scanErr := scanNotification(rows.Scan)
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
	if s == nil || s.sqlDB == nil {
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
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM notifications WHERE scope = 'GLOBAL' OR target_user_id = ?
`, userID).Scan(&total); err != nil {
		return storage.FeedPage{}, fmt.Errorf("count feed: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT n.id, n.scope, n.target_user_id, n.related_id, n.classification, n.message,
       n.payload_json, n.dedupe_key, n.source, n.created_at, r.read_at
FROM notifications n
LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = ?
WHERE n.scope = 'GLOBAL' OR n.target_user_id = ?
ORDER BY n.created_at DESC, n.id DESC
LIMIT ? OFFSET ?
`, userID, userID, limit, offset)
	if err != nil {
		return storage.FeedPage{}, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()

	page := storage.FeedPage{Total: total, Items: make([]storage.FeedRecord, 0, limit)}
	for rows.Next() {
		var readAt sql.NullInt64
		record, scanErr := scanNotification(func(dest ...any) error {
			return rows.Scan(append(dest, &readAt)...)
		})
		if scanErr != nil {
			return storage.FeedPage{}, fmt.Errorf("scan feed row: %w", scanErr)
		}
		item := storage.FeedRecord{Notification: record}
		if readAt.Valid {
			value := fromMillis(readAt.Int64)
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
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	var unreadCount int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM notifications n
LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = ?
WHERE (n.scope = 'GLOBAL' OR n.target_user_id = ?)
  AND r.notification_id IS NULL
`, userID, userID).Scan(&unreadCount); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return unreadCount, nil
}

// PutReadMarks inserts missing read marks and returns how many were created.
func (s *Store) PutReadMarks(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin read mark write: %w", err)
	}
	created := 0
	for _, notificationID := range ids {
		result, err := tx.ExecContext(ctx, `
INSERT INTO notification_reads (user_id, notification_id, read_at)
VALUES (?, ?, ?)
ON CONFLICT(user_id, notification_id) DO NOTHING
`, userID, notificationID, toMillis(readAt))
		if err != nil {
			_ = tx.Rollback()
			if isForeignKeyConstraintError(err) {
				return 0, storage.ErrNotFound
			}
			return 0, fmt.Errorf("put read mark: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("put read mark rows affected: %w", err)
		}
		created += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit read marks: %w", err)
	}
	return created, nil
}

// MarkAllRead marks every visible unread notification for the user.
func (s *Store) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO notification_reads (user_id, notification_id, read_at)
SELECT ?, n.id, ?
FROM notifications n
WHERE n.scope = 'GLOBAL' OR n.target_user_id = ?
`, userID, toMillis(readAt), userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all read rows affected: %w", err)
	}
	return int(affected), nil
}

// ListPendingDeliveries lists due channel deliveries ordered by next-attempt time.
func (s *Store) ListPendingDeliveries(ctx context.Context, channel storage.DeliveryChannel, limit int, now time.Time) ([]storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	channel = storage.DeliveryChannel(strings.TrimSpace(string(channel)))
	if channel == "" {
		return nil, fmt.Errorf("delivery channel is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if now.IsZero() {
		return nil, fmt.Errorf("now is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT notification_id, channel, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at
FROM notification_deliveries
WHERE channel = ?
  AND status IN (?, ?)
  AND next_attempt_at <= ?
ORDER BY next_attempt_at ASC, notification_id ASC
LIMIT ?
`, channel, storage.DeliveryStatusPending, storage.DeliveryStatusFailed, toMillis(now.UTC()), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	results := make([]storage.DeliveryRecord, 0, limit)
	for rows.Next() {
		record, scanErr := scanDelivery(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan pending delivery row: %w", scanErr)
		}
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
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	notificationID = strings.TrimSpace(notificationID)
	channel = storage.DeliveryChannel(strings.TrimSpace(string(channel)))
	if notificationID == "" {
		return fmt.Errorf("notification id is required")
	}
	if channel == "" {
		return fmt.Errorf("delivery channel is required")
	}
	if attemptCount < 0 {
		return fmt.Errorf("attempt count must be non-negative")
	}
	if nextAttemptAt.IsZero() {
		return fmt.Errorf("next attempt at is required")
	}

	now := time.Now().UTC()
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notification_deliveries
SET status = ?, attempt_count = ?, next_attempt_at = ?, last_error = ?, updated_at = ?, delivered_at = NULL
WHERE notification_id = ? AND channel = ?
`, storage.DeliveryStatusFailed, attemptCount, toMillis(nextAttemptAt), strings.TrimSpace(lastError), toMillis(now), notificationID, channel)
	if err != nil {
		return fmt.Errorf("mark delivery retry: %w", err)
	}
	return requireAffected(result, "mark delivery retry")
}

// MarkDeliveryFinal records a delivered, skipped, or dead delivery.
func (s *Store) MarkDeliveryFinal(ctx context.Context, notificationID string, channel storage.DeliveryChannel, status storage.DeliveryStatus, attemptCount int, at time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	notificationID = strings.TrimSpace(notificationID)
	channel = storage.DeliveryChannel(strings.TrimSpace(string(channel)))
	if notificationID == "" {
		return fmt.Errorf("notification id is required")
	}
	if channel == "" {
		return fmt.Errorf("delivery channel is required")
	}
	switch status {
	case storage.DeliveryStatusDelivered, storage.DeliveryStatusSkipped, storage.DeliveryStatusDead:
	default:
		return fmt.Errorf("delivery status %q is not final", status)
	}
	if at.IsZero() {
		return fmt.Errorf("final time is required")
	}

	var deliveredAt sql.NullInt64
	if status == storage.DeliveryStatusDelivered {
		deliveredAt = sql.NullInt64{Int64: toMillis(at), Valid: true}
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notification_deliveries
SET status = ?, attempt_count = ?, updated_at = ?, delivered_at = ?, last_error = ?
WHERE notification_id = ? AND channel = ?
`, status, attemptCount, toMillis(at), deliveredAt, strings.TrimSpace(lastError), notificationID, channel)
	if err != nil {
		return fmt.Errorf("mark delivery final: %w", err)
	}
	return requireAffected(result, "mark delivery final")
}

// GetDelivery loads one delivery row.
func (s *Store) GetDelivery(ctx context.Context, notificationID string, channel storage.DeliveryChannel) (storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DeliveryRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.DeliveryRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT notification_id, channel, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at
FROM notification_deliveries
WHERE notification_id = ? AND channel = ?
`, strings.TrimSpace(notificationID), channel)
	record, err := scanDelivery(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DeliveryRecord{}, storage.ErrNotFound
		}
		return storage.DeliveryRecord{}, fmt.Errorf("get delivery: %w", err)
	}
	return record, nil
}

const selectNotification = `
SELECT id, scope, target_user_id, related_id, classification, message, payload_json, dedupe_key, source, created_at
FROM notifications
`

type scanner func(dest ...any) error

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func requireAffected(result sql.Result, action string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", action, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func insertNotificationExec(ctx context.Context, execer sqlExecer, record storage.NotificationRecord) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO notifications (
		id, scope, target_user_id, related_id, classification, message, payload_json, dedupe_key, source, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

func putDeliveryExec(ctx context.Context, execer sqlExecer, record storage.DeliveryRecord) error {
	var deliveredAt sql.NullInt64
	if record.DeliveredAt != nil {
		deliveredAt = sql.NullInt64{Int64: toMillis(*record.DeliveredAt), Valid: true}
	}

	_, err := execer.ExecContext(ctx, `
	INSERT INTO notification_deliveries (
		notification_id, channel, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(notification_id, channel) DO UPDATE SET
		status = excluded.status,
		attempt_count = excluded.attempt_count,
		next_attempt_at = excluded.next_attempt_at,
		last_error = excluded.last_error,
		updated_at = excluded.updated_at,
		delivered_at = excluded.delivered_at
	`,
		record.NotificationID,
		record.Channel,
		record.Status,
		record.AttemptCount,
		toMillis(record.NextAttemptAt),
		record.LastError,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		deliveredAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) || isForeignKeyConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put delivery: %w", err)
	}
	return nil
}

func scanNotification(scan scanner) (storage.NotificationRecord, error) {
	var record storage.NotificationRecord
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.Scope,
		&record.TargetUserID,
		&record.RelatedID,
		&record.Classification,
		&record.Message,
		&record.PayloadJSON,
		&record.DedupeKey,
		&record.Source,
		&createdAt,
	); err != nil {
		return storage.NotificationRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func scanDelivery(scan scanner) (storage.DeliveryRecord, error) {
	var record storage.DeliveryRecord
	var nextAttemptAt int64
	var createdAt int64
	var updatedAt int64
	var deliveredAt sql.NullInt64
	if err := scan(
		&record.NotificationID,
		&record.Channel,
		&record.Status,
		&record.AttemptCount,
		&nextAttemptAt,
		&record.LastError,
		&createdAt,
		&updatedAt,
		&deliveredAt,
	); err != nil {
		return storage.DeliveryRecord{}, err
	}
	record.NextAttemptAt = fromMillis(nextAttemptAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	if deliveredAt.Valid {
		value := fromMillis(deliveredAt.Int64)
		record.DeliveredAt = &value
	}
	return record, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
