// Package domain implements the party participation ledger.
//
// A participation moves through PENDING, APPROVED, REJECTED, and CANCELLED.
// Every mutation runs inside Store.WithPartyLock so the approved-count check
// and the status write cannot interleave with another writer for the same
// party. Committed transitions are announced through a Notifier after the
// lock is released.
package domain
