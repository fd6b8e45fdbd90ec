// Package sqlite provides the SQLite-backed party ledger store.
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
	"github.com/louisbranch/gathering.space/internal/services/parties/storage"
	"github.com/louisbranch/gathering.space/internal/services/parties/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const migrationNamespace = "parties"

// Store provides SQLite-backed persistence for parties and participations.
//
// WithPartyLock opens BEGIN IMMEDIATE transactions, so SQLite serializes all
// ledger writers on the database file rather than per party.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a party SQLite store at the provided path and applies migrations.
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
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// PutParty upserts one party row.
func (s *Store) PutParty(ctx context.Context, record storage.PartyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := storage.NormalizePartyRecord(record)
	if err != nil {
		return err
	}
	return putPartyExec(ctx, s.sqlDB, normalized)
}

// GetParty loads one party by id.
func (s *Store) GetParty(ctx context.Context, partyID string) (storage.PartyRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PartyRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PartyRecord{}, fmt.Errorf("storage is not configured")
	}
	return getParty(ctx, s.sqlDB, strings.TrimSpace(partyID))
}

// GetParticipation loads one participation by id.
func (s *Store) GetParticipation(ctx context.Context, participationID string) (storage.ParticipationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ParticipationRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, selectParticipation+`WHERE id = ?`, strings.TrimSpace(participationID))
	return scanParticipationRow(row.Scan)
}

// FindParticipation loads the participation row of one user in one party.
func (s *Store) FindParticipation(ctx context.Context, partyID string, userID string) (storage.ParticipationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ParticipationRecord{}, fmt.Errorf("storage is not configured")
	}
	return findParticipation(ctx, s.sqlDB, strings.TrimSpace(partyID), strings.TrimSpace(userID))
}

// ListParticipationsByStatus lists one party's rows in one status, oldest first.
func (s *Store) ListParticipationsByStatus(ctx context.Context, partyID string, status string) ([]storage.ParticipationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectParticipation+`
WHERE party_id = ? AND status = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(partyID), strings.TrimSpace(status))
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	var results []storage.ParticipationRecord
	for rows.Next() {
		record, scanErr := scanParticipation(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan participation row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participation rows: %w", err)
	}
	return results, nil
}

// CountParticipationsByStatus counts one party's rows in one status.
func (s *Store) CountParticipationsByStatus(ctx context.Context, partyID string, status string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	return countParticipations(ctx, s.sqlDB, strings.TrimSpace(partyID), strings.TrimSpace(status))
}

// ListPartiesByOrganizer pages one organizer's parties, latest gathering first.
func (s *Store) ListPartiesByOrganizer(ctx context.Context, userID string, limit int, offset int) (storage.PartyPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.PartyPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PartyPage{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if limit <= 0 || offset < 0 {
		return storage.PartyPage{}, fmt.Errorf("limit must be positive and offset non-negative")
	}

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM parties WHERE organizer_user_id = ?`, userID).Scan(&total); err != nil {
		return storage.PartyPage{}, fmt.Errorf("count organized parties: %w", err)
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectParty+`
WHERE organizer_user_id = ?
ORDER BY gather_at DESC, id DESC
LIMIT ? OFFSET ?
`, userID, limit, offset)
	if err != nil {
		return storage.PartyPage{}, fmt.Errorf("list organized parties: %w", err)
	}
	defer rows.Close()
	return collectPartyPage(rows, total)
}

// ListPartiesByParticipant pages parties where the user holds a row in status.
func (s *Store) ListPartiesByParticipant(ctx context.Context, userID string, status string, limit int, offset int) (storage.PartyPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.PartyPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PartyPage{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	status = strings.TrimSpace(status)
	if limit <= 0 || offset < 0 {
		return storage.PartyPage{}, fmt.Errorf("limit must be positive and offset non-negative")
	}

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM participations WHERE participant_user_id = ? AND status = ?
`, userID, status).Scan(&total); err != nil {
		return storage.PartyPage{}, fmt.Errorf("count participated parties: %w", err)
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT p.id, p.organizer_user_id, p.title, p.body, p.notice, p.place_name, p.address,
       p.participant_cost, p.participant_limit, p.gather_at, p.due_at, p.created_at, p.updated_at
FROM parties p
JOIN participations r ON r.party_id = p.id
WHERE r.participant_user_id = ? AND r.status = ?
ORDER BY p.gather_at DESC, p.id DESC
LIMIT ? OFFSET ?
`, userID, status, limit, offset)
	if err != nil {
		return storage.PartyPage{}, fmt.Errorf("list participated parties: %w", err)
	}
	defer rows.Close()
	return collectPartyPage(rows, total)
}

// WithPartyLock runs fn inside one immediate transaction scoped to partyID.
func (s *Store) WithPartyLock(ctx context.Context, partyID string, fn func(tx storage.PartyTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("party lock callback is required")
	}
	partyID = strings.TrimSpace(partyID)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin party transaction: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback party transaction: %v", cause, rollbackErr)
		}
		return cause
	}

	party, err := getParty(ctx, tx, partyID)
	if err != nil {
		return rollbackWith(err)
	}
	if err := fn(&partyTx{tx: tx, party: party}); err != nil {
		return rollbackWith(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit party transaction: %w", err)
	}
	return nil
}

type partyTx struct {
	tx    *sql.Tx
	party storage.PartyRecord
}

func (t *partyTx) Party() storage.PartyRecord {
	return t.party
}

func (t *partyTx) GetParticipation(ctx context.Context, participationID string) (storage.ParticipationRecord, error) {
	row := t.tx.QueryRowContext(ctx, selectParticipation+`WHERE id = ? AND party_id = ?`, strings.TrimSpace(participationID), t.party.ID)
	return scanParticipationRow(row.Scan)
}

func (t *partyTx) FindParticipation(ctx context.Context, userID string) (storage.ParticipationRecord, error) {
	return findParticipation(ctx, t.tx, t.party.ID, strings.TrimSpace(userID))
}

func (t *partyTx) CountParticipationsByStatus(ctx context.Context, status string) (int, error) {
	return countParticipations(ctx, t.tx, t.party.ID, strings.TrimSpace(status))
}

func (t *partyTx) PutParticipation(ctx context.Context, record storage.ParticipationRecord) error {
	normalized, err := storage.NormalizeParticipationRecord(record)
	if err != nil {
		return err
	}
	if normalized.PartyID != t.party.ID {
		return fmt.Errorf("participation party %s does not match locked party %s", normalized.PartyID, t.party.ID)
	}
	_, err = t.tx.ExecContext(ctx, `
	INSERT INTO participations (
		id, party_id, participant_user_id, status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		updated_at = excluded.updated_at
	`,
		normalized.ID,
		normalized.PartyID,
		normalized.ParticipantUserID,
		normalized.Status,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put participation: %w", err)
	}
	return nil
}

func (t *partyTx) PutParty(ctx context.Context, record storage.PartyRecord) error {
	normalized, err := storage.NormalizePartyRecord(record)
	if err != nil {
		return err
	}
	if normalized.ID != t.party.ID {
		return fmt.Errorf("party %s does not match locked party %s", normalized.ID, t.party.ID)
	}
	if err := putPartyExec(ctx, t.tx, normalized); err != nil {
		return err
	}
	t.party = normalized
	return nil
}

const selectParty = `
SELECT id, organizer_user_id, title, body, notice, place_name, address,
       participant_cost, participant_limit, gather_at, due_at, created_at, updated_at
FROM parties
`

const selectParticipation = `
SELECT id, party_id, participant_user_id, status, created_at, updated_at
FROM participations
`

type scanner func(dest ...any) error

type sqlQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getParty(ctx context.Context, q sqlQueryer, partyID string) (storage.PartyRecord, error) {
	row := q.QueryRowContext(ctx, selectParty+`WHERE id = ?`, partyID)
	record, err := scanParty(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PartyRecord{}, storage.ErrNotFound
		}
		return storage.PartyRecord{}, fmt.Errorf("get party: %w", err)
	}
	return record, nil
}

func findParticipation(ctx context.Context, q sqlQueryer, partyID string, userID string) (storage.ParticipationRecord, error) {
	row := q.QueryRowContext(ctx, selectParticipation+`WHERE party_id = ? AND participant_user_id = ?`, partyID, userID)
	return scanParticipationRow(row.Scan)
}

func countParticipations(ctx context.Context, q sqlQueryer, partyID string, status string) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `
SELECT COUNT(1) FROM participations WHERE party_id = ? AND status = ?
`, partyID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return count, nil
}

func putPartyExec(ctx context.Context, q sqlQueryer, record storage.PartyRecord) error {
	var limit sql.NullInt64
	if record.ParticipantLimit != nil {
		limit = sql.NullInt64{Int64: int64(*record.ParticipantLimit), Valid: true}
	}
	var dueAt sql.NullInt64
	if record.DueAt != nil {
		dueAt = sql.NullInt64{Int64: toMillis(*record.DueAt), Valid: true}
	}

	_, err := q.ExecContext(ctx, `
	INSERT INTO parties (
		id, organizer_user_id, title, body, notice, place_name, address,
		participant_cost, participant_limit, gather_at, due_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		notice = excluded.notice,
		place_name = excluded.place_name,
		address = excluded.address,
		participant_cost = excluded.participant_cost,
		participant_limit = excluded.participant_limit,
		gather_at = excluded.gather_at,
		due_at = excluded.due_at,
		updated_at = excluded.updated_at
	`,
		record.ID,
		record.OrganizerUserID,
		record.Title,
		record.Body,
		record.Notice,
		record.PlaceName,
		record.Address,
		record.ParticipantCost,
		limit,
		toMillis(record.GatherAt),
		dueAt,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put party: %w", err)
	}
	return nil
}

func scanParty(scan scanner) (storage.PartyRecord, error) {
	var record storage.PartyRecord
	var limit sql.NullInt64
	var gatherAt int64
	var dueAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.OrganizerUserID,
		&record.Title,
		&record.Body,
		&record.Notice,
		&record.PlaceName,
		&record.Address,
		&record.ParticipantCost,
		&limit,
		&gatherAt,
		&dueAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.PartyRecord{}, err
	}
	if limit.Valid {
		value := int(limit.Int64)
		record.ParticipantLimit = &value
	}
	record.GatherAt = fromMillis(gatherAt)
	if dueAt.Valid {
		value := fromMillis(dueAt.Int64)
		record.DueAt = &value
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func scanParticipation(scan scanner) (storage.ParticipationRecord, error) {
	var record storage.ParticipationRecord
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.PartyID,
		&record.ParticipantUserID,
		&record.Status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.ParticipationRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func scanParticipationRow(scan scanner) (storage.ParticipationRecord, error) {
	record, err := scanParticipation(scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ParticipationRecord{}, storage.ErrNotFound
		}
		return storage.ParticipationRecord{}, fmt.Errorf("get participation: %w", err)
	}
	return record, nil
}

func collectPartyPage(rows *sql.Rows, total int) (storage.PartyPage, error) {
	page := storage.PartyPage{Total: total}
	for rows.Next() {
		record, err := scanParty(rows.Scan)
		if err != nil {
			return storage.PartyPage{}, fmt.Errorf("scan party row: %w", err)
		}
		page.Parties = append(page.Parties, record)
	}
	if err := rows.Err(); err != nil {
		return storage.PartyPage{}, fmt.Errorf("iterate party rows: %w", err)
	}
	return page, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}
