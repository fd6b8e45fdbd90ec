// Package postgres provides the PostgreSQL-backed party ledger store.
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
	"github.com/louisbranch/gathering.space/internal/services/parties/storage"
	"github.com/louisbranch/gathering.space/internal/services/parties/storage/postgres/migrations"
)

const migrationTable = "parties_schema_migrations"

const uniqueViolation = "23505"

// Store provides PostgreSQL-backed persistence for parties and participations.
//
// WithPartyLock takes a row lock on the party, so writers of different
// parties proceed in parallel.
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

// PutParty upserts one party row.
func (s *Store) PutParty(ctx context.Context, record storage.PartyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := storage.NormalizePartyRecord(record)
	if err != nil {
		return err
	}
	return putParty(ctx, s.pool, normalized)
}

// GetParty loads one party by id.
func (s *Store) GetParty(ctx context.Context, partyID string) (storage.PartyRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PartyRecord{}, err
	}
	if s == nil || s.pool == nil {
		return storage.PartyRecord{}, fmt.Errorf("storage is not configured")
	}
	return getParty(ctx, s.pool, strings.TrimSpace(partyID), "")
}

// GetParticipation loads one participation by id.
func (s *Store) GetParticipation(ctx context.Context, participationID string) (storage.ParticipationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipationRecord{}, err
	}
	if s == nil || s.pool == nil {
		return storage.ParticipationRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.pool.QueryRow(ctx, selectParticipation+`WHERE id = $1`, strings.TrimSpace(participationID))
	return scanParticipationRow(row)
}

// FindParticipation loads the participation row of one user in one party.
func (s *Store) FindParticipation(ctx context.Context, partyID string, userID string) (storage.ParticipationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipationRecord{}, err
	}
	if s == nil || s.pool == nil {
		return storage.ParticipationRecord{}, fmt.Errorf("storage is not configured")
	}
	return findParticipation(ctx, s.pool, strings.TrimSpace(partyID), strings.TrimSpace(userID))
}

// ListParticipationsByStatus lists one party's rows in one status, oldest first.
func (s *Store) ListParticipationsByStatus(ctx context.Context, partyID string, status string) ([]storage.ParticipationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.pool.Query(ctx, selectParticipation+`
WHERE party_id = $1 AND status = $2
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(partyID), strings.TrimSpace(status))
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	var results []storage.ParticipationRecord
	for rows.Next() {
		record, scanErr := scanParticipation(rows)
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
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	return countParticipations(ctx, s.pool, strings.TrimSpace(partyID), strings.TrimSpace(status))
}

// ListPartiesByOrganizer pages one organizer's parties, latest gathering first.
func (s *Store) ListPartiesByOrganizer(ctx context.Context, userID string, limit int, offset int) (storage.PartyPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.PartyPage{}, err
	}
	if s == nil || s.pool == nil {
		return storage.PartyPage{}, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 || offset < 0 {
		return storage.PartyPage{}, fmt.Errorf("limit must be positive and offset non-negative")
	}
	userID = strings.TrimSpace(userID)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM parties WHERE organizer_user_id = $1`, userID).Scan(&total); err != nil {
		return storage.PartyPage{}, fmt.Errorf("count organized parties: %w", err)
	}
	rows, err := s.pool.Query(ctx, selectParty+`
WHERE organizer_user_id = $1
ORDER BY gather_at DESC, id DESC
LIMIT $2 OFFSET $3
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
	if s == nil || s.pool == nil {
		return storage.PartyPage{}, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 || offset < 0 {
		return storage.PartyPage{}, fmt.Errorf("limit must be positive and offset non-negative")
	}
	userID = strings.TrimSpace(userID)
	status = strings.TrimSpace(status)

	var total int
	if err := s.pool.QueryRow(ctx, `
SELECT COUNT(1) FROM participations WHERE participant_user_id = $1 AND status = $2
`, userID, status).Scan(&total); err != nil {
		return storage.PartyPage{}, fmt.Errorf("count participated parties: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
SELECT p.id, p.organizer_user_id, p.title, p.body, p.notice, p.place_name, p.address,
       p.participant_cost, p.participant_limit, p.gather_at, p.due_at, p.created_at, p.updated_at
FROM parties p
JOIN participations r ON r.party_id = p.id
WHERE r.participant_user_id = $1 AND r.status = $2
ORDER BY p.gather_at DESC, p.id DESC
LIMIT $3 OFFSET $4
`, userID, status, limit, offset)
	if err != nil {
		return storage.PartyPage{}, fmt.Errorf("list participated parties: %w", err)
	}
	defer rows.Close()
	return collectPartyPage(rows, total)
}

// WithPartyLock runs fn inside one transaction holding FOR UPDATE on the party row.
func (s *Store) WithPartyLock(ctx context.Context, partyID string, fn func(tx storage.PartyTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("party lock callback is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin party transaction: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: rollback party transaction: %v", cause, rollbackErr)
		}
		return cause
	}

	party, err := getParty(ctx, tx, strings.TrimSpace(partyID), " FOR UPDATE")
	if err != nil {
		return rollbackWith(err)
	}
	if err := fn(&partyTx{tx: tx, party: party}); err != nil {
		return rollbackWith(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit party transaction: %w", err)
	}
	return nil
}

type partyTx struct {
	tx    pgx.Tx
	party storage.PartyRecord
}

func (t *partyTx) Party() storage.PartyRecord {
	return t.party
}

func (t *partyTx) GetParticipation(ctx context.Context, participationID string) (storage.ParticipationRecord, error) {
	row := t.tx.QueryRow(ctx, selectParticipation+`WHERE id = $1 AND party_id = $2`, strings.TrimSpace(participationID), t.party.ID)
	return scanParticipationRow(row)
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
	_, err = t.tx.Exec(ctx, `
	INSERT INTO participations (
		id, party_id, participant_user_id, status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at
	`,
		normalized.ID,
		normalized.PartyID,
		normalized.ParticipantUserID,
		normalized.Status,
		normalized.CreatedAt,
		normalized.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
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
	if err := putParty(ctx, t.tx, normalized); err != nil {
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

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getParty(ctx context.Context, q querier, partyID string, lockClause string) (storage.PartyRecord, error) {
	row := q.QueryRow(ctx, selectParty+`WHERE id = $1`+lockClause, partyID)
	record, err := scanParty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.PartyRecord{}, storage.ErrNotFound
		}
		return storage.PartyRecord{}, fmt.Errorf("get party: %w", err)
	}
	return record, nil
}

func findParticipation(ctx context.Context, q querier, partyID string, userID string) (storage.ParticipationRecord, error) {
	row := q.QueryRow(ctx, selectParticipation+`WHERE party_id = $1 AND participant_user_id = $2`, partyID, userID)
	return scanParticipationRow(row)
}

func countParticipations(ctx context.Context, q querier, partyID string, status string) (int, error) {
	var count int
	if err := q.QueryRow(ctx, `
SELECT COUNT(1) FROM participations WHERE party_id = $1 AND status = $2
`, partyID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return count, nil
}

func putParty(ctx context.Context, q querier, record storage.PartyRecord) error {
	_, err := q.Exec(ctx, `
	INSERT INTO parties (
		id, organizer_user_id, title, body, notice, place_name, address,
		participant_cost, participant_limit, gather_at, due_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		body = EXCLUDED.body,
		notice = EXCLUDED.notice,
		place_name = EXCLUDED.place_name,
		address = EXCLUDED.address,
		participant_cost = EXCLUDED.participant_cost,
		participant_limit = EXCLUDED.participant_limit,
		gather_at = EXCLUDED.gather_at,
		due_at = EXCLUDED.due_at,
		updated_at = EXCLUDED.updated_at
	`,
		record.ID,
		record.OrganizerUserID,
		record.Title,
		record.Body,
		record.Notice,
		record.PlaceName,
		record.Address,
		record.ParticipantCost,
		record.ParticipantLimit,
		record.GatherAt,
		record.DueAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put party: %w", err)
	}
	return nil
}

func scanParty(row pgx.Row) (storage.PartyRecord, error) {
	var record storage.PartyRecord
	var dueAt *time.Time
	if err := row.Scan(
		&record.ID,
		&record.OrganizerUserID,
		&record.Title,
		&record.Body,
		&record.Notice,
		&record.PlaceName,
		&record.Address,
		&record.ParticipantCost,
		&record.ParticipantLimit,
		&record.GatherAt,
		&dueAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return storage.PartyRecord{}, err
	}
	record.GatherAt = record.GatherAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if dueAt != nil {
		value := dueAt.UTC()
		record.DueAt = &value
	}
	return record, nil
}

func scanParticipation(row pgx.Row) (storage.ParticipationRecord, error) {
	var record storage.ParticipationRecord
	if err := row.Scan(
		&record.ID,
		&record.PartyID,
		&record.ParticipantUserID,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return storage.ParticipationRecord{}, err
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func scanParticipationRow(row pgx.Row) (storage.ParticipationRecord, error) {
	record, err := scanParticipation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ParticipationRecord{}, storage.ErrNotFound
		}
		return storage.ParticipationRecord{}, fmt.Errorf("get participation: %w", err)
	}
	return record, nil
}

func collectPartyPage(rows pgx.Rows, total int) (storage.PartyPage, error) {
	page := storage.PartyPage{Total: total}
	for rows.Next() {
		record, err := scanParty(rows)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
