// Package pgmigrate applies embedded golang-migrate migrations to PostgreSQL.
package pgmigrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations runs every pending up migration from migrationFS.
//
// Files follow the golang-migrate naming scheme (NNN_name.up.sql). Each
// store passes its own table so version histories stay independent when
// stores share a database.
func ApplyMigrations(ctx context.Context, dsn string, migrationFS fs.FS, table string) error {
	if migrationFS == nil {
		return fmt.Errorf("migration fs is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	databaseURL, err := MigrateURL(dsn, table)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateURL rewrites a postgres:// DSN into the pgx5:// form golang-migrate
// expects and pins the version table.
func MigrateURL(dsn, table string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", fmt.Errorf("postgres dsn is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres dsn: %w", err)
	}
	switch parsed.Scheme {
	case "postgres", "postgresql", "pgx5":
		parsed.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("postgres dsn must be a postgres:// URL, got scheme %q", parsed.Scheme)
	}
	if table = strings.TrimSpace(table); table != "" {
		query := parsed.Query()
		query.Set("x-migrations-table", table)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}
