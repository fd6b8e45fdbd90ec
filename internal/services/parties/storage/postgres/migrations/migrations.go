// Package migrations embeds the party ledger PostgreSQL schema.
package migrations

import "embed"

// FS holds golang-migrate up/down files.
//
//go:embed *.sql
var FS embed.FS
