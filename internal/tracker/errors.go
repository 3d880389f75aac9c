package tracker

import "errors"

var (
	// ErrNotFound indicates the account has no snapshots at all.
	ErrNotFound = errors.New("account not found")

	// ErrNoHistory indicates the account exists but has no snapshot in
	// the requested range.
	ErrNoHistory = errors.New("no history in range")

	// ErrDuplicateTimestamp indicates a snapshot already exists for the
	// account at that exact timestamp.
	ErrDuplicateTimestamp = errors.New("duplicate snapshot timestamp")

	// ErrAllAccountsFailed indicates every fetch in a tick failed, so no
	// new leaderboard was published.
	ErrAllAccountsFailed = errors.New("all account fetches failed")

	// ErrStoreUnavailable indicates the snapshot store could not be
	// reached and the tick was aborted.
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
)
