package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulseboard/internal/alert"
	"pulseboard/internal/board"
	"pulseboard/internal/growth"
	"pulseboard/internal/score"
	"pulseboard/internal/tracker"
	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/config"
	"pulseboard/pkg/logger"
)

// fakeClock advances only when told to, so tick boundaries are
// deterministic.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	tick chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, tick: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	return c
}

func (c *fakeClock) C() <-chan time.Time { return c.tick }
func (c *fakeClock) Stop()               {}

// Fire advances the clock one interval and delivers a tick.
func (c *fakeClock) Fire(d time.Duration) {
	c.Advance(d)
	c.tick <- c.Now()
}

// fakeFetcher serves canned follower counts and fails listed accounts.
type fakeFetcher struct {
	mu        sync.Mutex
	followers map[string]int64
	failing   map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		followers: make(map[string]int64),
		failing:   make(map[string]bool),
	}
}

func (f *fakeFetcher) set(username string, followers int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followers[username] = followers
}

func (f *fakeFetcher) fail(username string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[username] = v
}

func (f *fakeFetcher) Fetch(ctx context.Context, username string) (tracker.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[username] {
		return tracker.AccountSnapshot{}, fmt.Errorf("fetch %s: connection refused", username)
	}
	n, ok := f.followers[username]
	if !ok {
		return tracker.AccountSnapshot{}, fmt.Errorf("fetch %s: unknown account", username)
	}
	return tracker.AccountSnapshot{
		Username:       username,
		Followers:      n,
		EngagementRate: 0.05,
	}, nil
}

// flakyStore wraps a MemoryStore with switchable append failures.
type flakyStore struct {
	store.Store
	mu         sync.Mutex
	appendFail bool
}

func (s *flakyStore) setAppendFail(v bool) {
	s.mu.Lock()
	s.appendFail = v
	s.mu.Unlock()
}

func (s *flakyStore) Append(ctx context.Context, snap tracker.AccountSnapshot) error {
	s.mu.Lock()
	fail := s.appendFail
	s.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return s.Store.Append(ctx, snap)
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "json"})
}

func newTestLoop(accounts []string, fetcher Fetcher, s store.Store, clock Clock) *Loop {
	calc := growth.NewCalculator(s, 2.0, 5.0)
	scorer := score.NewEngine("", 0.5, 0.5)
	alerts := alert.NewGenerator(10.0)
	return NewLoop(
		Config{
			Accounts:     accounts,
			TickInterval: 5 * time.Minute,
			FetchTimeout: time.Second,
			Workers:      3,
			RetentionAge: 48 * time.Hour,
		},
		fetcher, nil, s, calc, scorer, alerts, board.NewPublisher(), clock, testLogger(),
	)
}

func TestTickPublishesAllAccounts(t *testing.T) {
	accounts := []string{"ethereum", "bitcoin", "solana", "cardano", "ripple"}
	fetcher := newFakeFetcher()
	for i, a := range accounts {
		fetcher.set(a, int64(1000*(i+1)))
	}

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	loop := newTestLoop(accounts, fetcher, store.NewMemoryStore(), clock)

	require.NoError(t, loop.Tick(context.Background(), clock.Now()))

	snap := loop.publisher.Current()
	require.NotNil(t, snap)
	require.Len(t, snap.Entries, 5)

	// Highest followers ranks first when engagement is uniform
	require.Equal(t, "ripple", snap.Entries[0].Username)
	require.Equal(t, 1, snap.Entries[0].Rank)
	for _, e := range snap.Entries {
		require.False(t, e.Stale)
	}
}

func TestTickPartialFailureCarriesForward(t *testing.T) {
	accounts := []string{"ethereum", "bitcoin", "solana", "cardano", "ripple"}
	fetcher := newFakeFetcher()
	for i, a := range accounts {
		fetcher.set(a, int64(1000*(i+1)))
	}

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	loop := newTestLoop(accounts, fetcher, store.NewMemoryStore(), clock)
	ctx := context.Background()

	require.NoError(t, loop.Tick(ctx, clock.Now()))

	// Two accounts fail on the second tick
	fetcher.fail("bitcoin", true)
	fetcher.fail("cardano", true)
	clock.Advance(5 * time.Minute)

	require.NoError(t, loop.Tick(ctx, clock.Now()))

	snap := loop.publisher.Current()
	require.Len(t, snap.Entries, 5, "failed accounts must still appear")

	staleCount := 0
	for _, e := range snap.Entries {
		if e.Stale {
			staleCount++
			require.Contains(t, []string{"bitcoin", "cardano"}, e.Username)
		}
	}
	require.Equal(t, 2, staleCount)
}

func TestTickAllFailKeepsPreviousSnapshot(t *testing.T) {
	accounts := []string{"ethereum", "bitcoin"}
	fetcher := newFakeFetcher()
	fetcher.set("ethereum", 1000)
	fetcher.set("bitcoin", 2000)

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	loop := newTestLoop(accounts, fetcher, store.NewMemoryStore(), clock)
	ctx := context.Background()

	require.NoError(t, loop.Tick(ctx, clock.Now()))
	first := loop.publisher.Current()

	fetcher.fail("ethereum", true)
	fetcher.fail("bitcoin", true)
	clock.Advance(5 * time.Minute)

	err := loop.Tick(ctx, clock.Now())
	require.ErrorIs(t, err, tracker.ErrAllAccountsFailed)
	require.Same(t, first, loop.publisher.Current(), "previous snapshot must remain published")
}

func TestTickStoreUnavailableSkipsPublish(t *testing.T) {
	accounts := []string{"ethereum"}
	fetcher := newFakeFetcher()
	fetcher.set("ethereum", 1000)

	s := &flakyStore{Store: store.NewMemoryStore()}
	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	loop := newTestLoop(accounts, fetcher, s, clock)
	ctx := context.Background()

	require.NoError(t, loop.Tick(ctx, clock.Now()))
	first := loop.publisher.Current()

	s.setAppendFail(true)
	clock.Advance(5 * time.Minute)

	err := loop.Tick(ctx, clock.Now())
	require.ErrorIs(t, err, tracker.ErrStoreUnavailable)
	require.Same(t, first, loop.publisher.Current())

	// The loop recovers on the next tick
	s.setAppendFail(false)
	clock.Advance(5 * time.Minute)
	require.NoError(t, loop.Tick(ctx, clock.Now()))
	require.NotSame(t, first, loop.publisher.Current())
}

func TestTickFollowerChange(t *testing.T) {
	accounts := []string{"ethereum"}
	fetcher := newFakeFetcher()
	fetcher.set("ethereum", 1000)

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	loop := newTestLoop(accounts, fetcher, store.NewMemoryStore(), clock)
	ctx := context.Background()

	require.NoError(t, loop.Tick(ctx, clock.Now()))

	fetcher.set("ethereum", 1150)
	clock.Advance(5 * time.Minute)
	require.NoError(t, loop.Tick(ctx, clock.Now()))

	e := loop.publisher.Current().Entry("ethereum")
	require.NotNil(t, e)
	require.Equal(t, int64(150), e.FollowerChange)

	// 5m growth: 1000 -> 1150 is 15%, spiking with threshold 2
	require.NotNil(t, e.Growth.M5)
	require.InDelta(t, 15.0, *e.Growth.M5, 1e-9)
	require.Equal(t, tracker.StatusSpiking, e.Status)

	// Spike also produces an alert
	require.NotEmpty(t, loop.publisher.Current().Alerts)
	require.Equal(t, "ethereum grew 15.0% in 5m", loop.publisher.Current().Alerts[0].Message)
}

func TestTickDeterministicOrder(t *testing.T) {
	// Identical metrics everywhere: order falls back to username asc
	accounts := []string{"solana", "bitcoin", "ethereum"}
	fetcher := newFakeFetcher()
	for _, a := range accounts {
		fetcher.set(a, 1000)
	}

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	loop := newTestLoop(accounts, fetcher, store.NewMemoryStore(), clock)

	require.NoError(t, loop.Tick(context.Background(), clock.Now()))

	snap := loop.publisher.Current()
	got := []string{}
	for _, e := range snap.Entries {
		got = append(got, e.Username)
	}
	require.Equal(t, []string{"bitcoin", "ethereum", "solana"}, got)
}

func TestRunFirstTickImmediateAndDrains(t *testing.T) {
	accounts := []string{"ethereum"}
	fetcher := newFakeFetcher()
	fetcher.set("ethereum", 1000)

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	loop := newTestLoop(accounts, fetcher, store.NewMemoryStore(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	// First tick fires without waiting for the interval
	waitFor(t, func() bool { return loop.Ticks() == 1 })
	require.NotNil(t, loop.publisher.Current())

	clock.Fire(5 * time.Minute)
	waitFor(t, func() bool { return loop.Ticks() == 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not drain and exit after cancel")
	}
	require.Equal(t, StateIdle, loop.State())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
