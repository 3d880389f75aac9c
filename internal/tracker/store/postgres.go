package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulseboard/internal/tracker"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema creates the snapshot table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS account_snapshots (
			username        TEXT NOT NULL,
			observed_at     TIMESTAMPTZ NOT NULL,
			display_name    TEXT NOT NULL DEFAULT '',
			bio             TEXT NOT NULL DEFAULT '',
			verified        BOOLEAN NOT NULL DEFAULT FALSE,
			followers       BIGINT NOT NULL,
			following       BIGINT NOT NULL,
			posts           BIGINT NOT NULL,
			engagement_rate DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (username, observed_at)
		)
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return nil
}

// Append inserts a snapshot. A conflicting (username, observed_at) pair
// maps to tracker.ErrDuplicateTimestamp.
func (s *PostgresStore) Append(ctx context.Context, snap tracker.AccountSnapshot) error {
	query := `
		INSERT INTO account_snapshots
			(username, observed_at, display_name, bio, verified, followers, following, posts, engagement_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (username, observed_at) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		snap.Username, snap.ObservedAt, snap.DisplayName, snap.Bio, snap.Verified,
		snap.Followers, snap.Following, snap.Posts, snap.EngagementRate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tracker.ErrDuplicateTimestamp
	}
	return nil
}

const snapshotColumns = `username, observed_at, display_name, bio, verified, followers, following, posts, engagement_rate`

func scanSnapshot(row pgx.Row) (tracker.AccountSnapshot, error) {
	var snap tracker.AccountSnapshot
	err := row.Scan(
		&snap.Username, &snap.ObservedAt, &snap.DisplayName, &snap.Bio, &snap.Verified,
		&snap.Followers, &snap.Following, &snap.Posts, &snap.EngagementRate,
	)
	return snap, err
}

// Latest returns the most recent snapshot for an account.
func (s *PostgresStore) Latest(ctx context.Context, username string) (tracker.AccountSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM account_snapshots
		WHERE username = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return tracker.AccountSnapshot{}, tracker.ErrNotFound
	}
	if err != nil {
		return tracker.AccountSnapshot{}, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return snap, nil
}

// Before returns the newest snapshot observed at or before t.
func (s *PostgresStore) Before(ctx context.Context, username string, t time.Time) (tracker.AccountSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM account_snapshots
		WHERE username = $1 AND observed_at <= $2
		ORDER BY observed_at DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, username, t))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish an unknown account from one with only newer data
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM account_snapshots WHERE username = $1)`, username,
		).Scan(&exists); err != nil {
			return tracker.AccountSnapshot{}, fmt.Errorf("failed to check account existence: %w", err)
		}
		if !exists {
			return tracker.AccountSnapshot{}, tracker.ErrNotFound
		}
		return tracker.AccountSnapshot{}, tracker.ErrNoHistory
	}
	if err != nil {
		return tracker.AccountSnapshot{}, fmt.Errorf("failed to query prior snapshot: %w", err)
	}
	return snap, nil
}

// Range returns snapshots within [from, to] in ascending order.
func (s *PostgresStore) Range(ctx context.Context, username string, from, to time.Time) ([]tracker.AccountSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM account_snapshots
		WHERE username = $1 AND observed_at BETWEEN $2 AND $3
		ORDER BY observed_at ASC
	`

	rows, err := s.pool.Query(ctx, query, username, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot range: %w", err)
	}
	defer rows.Close()

	snaps := []tracker.AccountSnapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}

	if len(snaps) == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM account_snapshots WHERE username = $1)`, username,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check account existence: %w", err)
		}
		if !exists {
			return nil, tracker.ErrNotFound
		}
	}
	return snaps, nil
}

// Usernames returns every account with at least one snapshot.
func (s *PostgresStore) Usernames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT username FROM account_snapshots ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Retain deletes snapshots older than maxAge, keeping per account the
// newest snapshot at least 24h old.
func (s *PostgresStore) Retain(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	query := `
		DELETE FROM account_snapshots s
		WHERE s.observed_at < $1
		  AND s.observed_at IS DISTINCT FROM (
			SELECT max(a.observed_at)
			FROM account_snapshots a
			WHERE a.username = s.username AND a.observed_at <= $2
		  )
	`

	tag, err := s.pool.Exec(ctx, query, now.Add(-maxAge), now.Add(-24*time.Hour))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
