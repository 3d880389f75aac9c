package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pulseboard/internal/tracker"
)

// MemoryStore is an in-process Store backed by per-account sorted slices.
// Used by tests and by local runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string][]tracker.AccountSnapshot // ascending by ObservedAt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string][]tracker.AccountSnapshot),
	}
}

// Append records a snapshot, keeping the slice sorted.
func (s *MemoryStore) Append(ctx context.Context, snap tracker.AccountSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.accounts[snap.Username]

	// Insert position: first index with ObservedAt > snap.ObservedAt
	i := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].ObservedAt.After(snap.ObservedAt)
	})

	if i > 0 && snaps[i-1].ObservedAt.Equal(snap.ObservedAt) {
		return tracker.ErrDuplicateTimestamp
	}

	snaps = append(snaps, tracker.AccountSnapshot{})
	copy(snaps[i+1:], snaps[i:])
	snaps[i] = snap
	s.accounts[snap.Username] = snaps
	return nil
}

// Latest returns the most recent snapshot for an account.
func (s *MemoryStore) Latest(ctx context.Context, username string) (tracker.AccountSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.accounts[username]
	if len(snaps) == 0 {
		return tracker.AccountSnapshot{}, tracker.ErrNotFound
	}
	return snaps[len(snaps)-1], nil
}

// Before returns the newest snapshot observed at or before t.
func (s *MemoryStore) Before(ctx context.Context, username string, t time.Time) (tracker.AccountSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.accounts[username]
	if len(snaps) == 0 {
		return tracker.AccountSnapshot{}, tracker.ErrNotFound
	}

	// First index strictly after t; the one before it is the answer.
	i := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].ObservedAt.After(t)
	})
	if i == 0 {
		return tracker.AccountSnapshot{}, tracker.ErrNoHistory
	}
	return snaps[i-1], nil
}

// Range returns snapshots within [from, to] ascending.
func (s *MemoryStore) Range(ctx context.Context, username string, from, to time.Time) ([]tracker.AccountSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.accounts[username]
	if len(snaps) == 0 {
		return nil, tracker.ErrNotFound
	}

	lo := sort.Search(len(snaps), func(i int) bool {
		return !snaps[i].ObservedAt.Before(from)
	})
	hi := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].ObservedAt.After(to)
	})
	if lo >= hi {
		return []tracker.AccountSnapshot{}, nil
	}

	out := make([]tracker.AccountSnapshot, hi-lo)
	copy(out, snaps[lo:hi])
	return out, nil
}

// Usernames returns every account with at least one snapshot.
func (s *MemoryStore) Usernames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.accounts))
	for name, snaps := range s.accounts {
		if len(snaps) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Retain deletes snapshots older than maxAge, keeping per account the
// newest snapshot at least 24h old so the longest growth window never
// loses its anchor.
func (s *MemoryStore) Retain(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	dayAgo := now.Add(-24 * time.Hour)

	var deleted int64
	for name, snaps := range s.accounts {
		// Anchor: newest snapshot observed at or before now-24h
		anchor := -1
		for i, sn := range snaps {
			if !sn.ObservedAt.After(dayAgo) {
				anchor = i
			}
		}

		kept := snaps[:0]
		for i, sn := range snaps {
			if sn.ObservedAt.Before(cutoff) && i != anchor {
				deleted++
				continue
			}
			kept = append(kept, sn)
		}
		s.accounts[name] = kept
	}
	return deleted, nil
}
