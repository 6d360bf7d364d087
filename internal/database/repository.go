// Package database holds persistence interfaces for the roster and the
// attendance ledger, and the registry of configured backends.
package database

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// RosterReader provides read-only access to registered identities
type RosterReader interface {
	// List returns all entries in registration order
	List(ctx context.Context) ([]roster.Entry, error)
	// Count returns the number of registered identities
	Count(ctx context.Context) (int, error)
}

// RosterRepository persists roster entries. The roster is append-only:
// entries are never updated or deleted.
type RosterRepository interface {
	RosterReader

	// Save appends one entry. A label that already exists (after
	// normalization) fails with *roster.DuplicateIdentityError.
	Save(ctx context.Context, entry roster.Entry) error
}

// AttendanceStorage is a ledger.Storage kept in a database. Save must be
// idempotent per (identity, date) so re-flushing the full set is safe.
type AttendanceStorage interface {
	ledger.Storage
}
