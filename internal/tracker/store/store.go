// Package store provides persistence for account snapshots.
package store

import (
	"context"
	"time"

	"pulseboard/internal/tracker"
)

// Store is the snapshot persistence interface. The postgres implementation
// backs production; the in-memory one backs tests and local runs without a
// database.
type Store interface {
	// Append records a snapshot. Returns tracker.ErrDuplicateTimestamp
	// when a snapshot already exists for the account at that instant.
	Append(ctx context.Context, snap tracker.AccountSnapshot) error

	// Latest returns the most recent snapshot for an account, or
	// tracker.ErrNotFound when the account has none.
	Latest(ctx context.Context, username string) (tracker.AccountSnapshot, error)

	// Before returns the newest snapshot observed at or before t, or
	// tracker.ErrNoHistory when no snapshot is old enough.
	Before(ctx context.Context, username string, t time.Time) (tracker.AccountSnapshot, error)

	// Range returns snapshots within [from, to] in ascending order of
	// observation time. An empty range for a known account is not an
	// error; an unknown account returns tracker.ErrNotFound.
	Range(ctx context.Context, username string, from, to time.Time) ([]tracker.AccountSnapshot, error)

	// Usernames returns every account with at least one snapshot.
	Usernames(ctx context.Context) ([]string, error)

	// Retain deletes snapshots older than maxAge, always keeping at
	// least one snapshot older than 24h per account so the 24h growth
	// window stays computable. Returns the number of rows deleted.
	Retain(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error)
}
