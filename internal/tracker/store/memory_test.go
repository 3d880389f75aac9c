package store

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"pulseboard/internal/tracker"
)

func snap(username string, followers int64, at time.Time) tracker.AccountSnapshot {
	return tracker.AccountSnapshot{
		Username:   username,
		Followers:  followers,
		ObservedAt: at,
	}
}

func TestMemoryStore_AppendAndLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, snap("ethereum", int64(1000+i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	latest, err := s.Latest(ctx, "ethereum")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Followers != 1004 {
		t.Errorf("Expected followers=1004, got %d", latest.Followers)
	}

	if _, err := s.Latest(ctx, "unknown"); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_DuplicateTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Append(ctx, snap("bitcoin", 100, at)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, snap("bitcoin", 200, at)); !errors.Is(err, tracker.ErrDuplicateTimestamp) {
		t.Errorf("Expected ErrDuplicateTimestamp, got %v", err)
	}

	// Original value must survive the rejected insert
	latest, _ := s.Latest(ctx, "bitcoin")
	if latest.Followers != 100 {
		t.Errorf("Expected followers=100, got %d", latest.Followers)
	}
}

func TestMemoryStore_Before(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Snapshots at t+0m, t+10m, t+20m
	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, snap("solana", int64(i), base.Add(time.Duration(i*10)*time.Minute))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		at      time.Time
		wantIdx int64
		wantErr error
	}{
		{"exact match", base.Add(10 * time.Minute), 1, nil},
		{"between snapshots", base.Add(15 * time.Minute), 1, nil},
		{"after all", base.Add(time.Hour), 2, nil},
		{"before all", base.Add(-time.Minute), 0, tracker.ErrNoHistory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Before(ctx, "solana", tt.at)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Before() error = %v", err)
			}
			if got.Followers != tt.wantIdx {
				t.Errorf("Expected snapshot %d, got %d", tt.wantIdx, got.Followers)
			}
		})
	}

	if _, err := s.Before(ctx, "unknown", base); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// Before must always return the newest snapshot at or before the query
// time, regardless of insertion order.
func TestMemoryStore_BeforeRandomized(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))

	offsets := rng.Perm(100)
	for _, off := range offsets {
		if err := s.Append(ctx, snap("cardano", int64(off), base.Add(time.Duration(off)*time.Minute))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	for trial := 0; trial < 50; trial++ {
		q := rng.Intn(100)
		got, err := s.Before(ctx, "cardano", base.Add(time.Duration(q)*time.Minute+30*time.Second))
		if err != nil {
			t.Fatalf("Before() error = %v", err)
		}
		if got.Followers != int64(q) {
			t.Errorf("Before(t+%dm30s) = snapshot %d, want %d", q, got.Followers, q)
		}
	}
}

func TestMemoryStore_Range(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if err := s.Append(ctx, snap("ripple", int64(i), base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.Range(ctx, "ripple", base.Add(2*time.Hour), base.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 snapshots, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].ObservedAt.After(got[i-1].ObservedAt) {
			t.Error("Range result not in ascending order")
		}
	}

	// Empty range on a known account is not an error
	empty, err := s.Range(ctx, "ripple", base.Add(100*time.Hour), base.Add(200*time.Hour))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty range, got %d", len(empty))
	}

	if _, err := s.Range(ctx, "unknown", base, base.Add(time.Hour)); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Usernames(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, name := range []string{"solana", "bitcoin", "ethereum"} {
		if err := s.Append(ctx, snap(name, 1, at)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	names, err := s.Usernames(ctx)
	if err != nil {
		t.Fatalf("Usernames() error = %v", err)
	}
	want := []string{"bitcoin", "ethereum", "solana"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestMemoryStore_Retain(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	// Snapshots at now-72h, now-60h, now-30h, now-1h
	ages := []time.Duration{72 * time.Hour, 60 * time.Hour, 30 * time.Hour, time.Hour}
	for i, age := range ages {
		if err := s.Append(ctx, snap("ethereum", int64(i), now.Add(-age))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	deleted, err := s.Retain(ctx, now, 48*time.Hour)
	if err != nil {
		t.Fatalf("Retain() error = %v", err)
	}
	// now-72h and now-60h are older than 48h, but now-30h is the newest
	// snapshot older than 24h and stays regardless
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	remaining, err := s.Range(ctx, "ethereum", now.Add(-100*time.Hour), now)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("Expected 2 remaining, got %d", len(remaining))
	}
	if remaining[0].Followers != 2 || remaining[1].Followers != 3 {
		t.Errorf("Unexpected survivors: %+v", remaining)
	}
}

// The 24h anchor must survive even when it is older than the retention
// window itself.
func TestMemoryStore_RetainKeepsAnchor(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	if err := s.Append(ctx, snap("bitcoin", 0, now.Add(-90*time.Hour))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, snap("bitcoin", 1, now.Add(-time.Hour))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	deleted, err := s.Retain(ctx, now, 48*time.Hour)
	if err != nil {
		t.Fatalf("Retain() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deleted, got %d", deleted)
	}

	// The old snapshot is the only one past 24h; it must remain so the
	// 24h growth window stays computable
	old, err := s.Before(ctx, "bitcoin", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Before() error = %v", err)
	}
	if old.Followers != 0 {
		t.Errorf("Expected anchor snapshot, got %+v", old)
	}
}
