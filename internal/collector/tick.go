package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pulseboard/internal/tracker"
	"pulseboard/pkg/metrics"
)

type fetchResult struct {
	username string
	snap     tracker.AccountSnapshot
	market   *tracker.MarketData
	err      error
}

// Tick runs one fetch, compute and publish cycle as of now. Per-account
// fetch failures carry the previous entry forward as stale; only a store
// outage aborts the tick, and then without publishing.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	l.state.Store(StateFetching)
	metrics.UpdateAccountsTracked(len(l.cfg.Accounts))

	results := l.fetchAll(ctx, now)

	fresh := make(map[string]fetchResult, len(results))
	failCount := 0
	for _, res := range results {
		if res.err != nil {
			failCount++
			metrics.RecordFetchFailure(res.username)
			l.logger.WithError(res.err).WithField("username", res.username).Warn("Fetch failed, carrying forward")
			continue
		}

		if err := l.store.Append(ctx, res.snap); err != nil {
			if errors.Is(err, tracker.ErrDuplicateTimestamp) {
				// Already recorded for this instant; the snapshot is
				// still usable for this tick
				l.logger.WithField("username", res.username).Warn("Duplicate snapshot timestamp, skipping append")
			} else {
				return fmt.Errorf("%w: %v", tracker.ErrStoreUnavailable, err)
			}
		}
		fresh[res.username] = res
	}

	if failCount == len(l.cfg.Accounts) {
		return tracker.ErrAllAccountsFailed
	}

	l.state.Store(StateComputing)

	prev := l.publisher.Current()
	entries, staleCount, err := l.buildEntries(ctx, now, fresh, prev)
	if err != nil {
		return err
	}

	sortEntries(entries)
	for i := range entries {
		entries[i].Rank = i + 1
	}

	alerts := l.alerts.Scan(entries, now)
	metrics.RecordAlerts(len(alerts))
	metrics.UpdateStaleEntries(staleCount)

	l.state.Store(StatePublishing)
	publishStart := l.clock.Now()

	l.publisher.Publish(&tracker.LeaderboardSnapshot{
		Entries:     entries,
		Alerts:      alerts,
		GeneratedAt: now,
		Tick:        l.ticks.Load() + 1,
	})
	metrics.RecordPublish(l.clock.Now().Sub(publishStart).Seconds())
	metrics.UpdateLastPublish(now.Unix())

	if l.cfg.RetentionAge > 0 {
		deleted, err := l.store.Retain(ctx, now, l.cfg.RetentionAge)
		if err != nil {
			// Retention failure does not unpublish the snapshot
			l.logger.WithError(err).Error("Retention pass failed")
		} else if deleted > 0 {
			l.logger.WithField("deleted", deleted).Debug("Pruned old snapshots")
		}
	}
	return nil
}

// fetchAll fans fetches out over a bounded worker pool. Every account
// produces exactly one result.
func (l *Loop) fetchAll(ctx context.Context, now time.Time) []fetchResult {
	accountCh := make(chan string, len(l.cfg.Accounts))
	resultCh := make(chan fetchResult, len(l.cfg.Accounts))

	var wg sync.WaitGroup
	for i := 0; i < l.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			l.fetchWorker(ctx, workerID, now, accountCh, resultCh)
		}(i)
	}

	for _, username := range l.cfg.Accounts {
		accountCh <- username
	}
	close(accountCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]fetchResult, 0, len(l.cfg.Accounts))
	for res := range resultCh {
		results = append(results, res)
	}
	return results
}

func (l *Loop) fetchWorker(ctx context.Context, workerID int, now time.Time, accountCh <-chan string, resultCh chan<- fetchResult) {
	for username := range accountCh {
		select {
		case <-ctx.Done():
			resultCh <- fetchResult{username: username, err: ctx.Err()}
			continue
		default:
		}

		fetchCtx := ctx
		var cancel context.CancelFunc
		if l.cfg.FetchTimeout > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, l.cfg.FetchTimeout)
		}

		snap, err := l.fetcher.Fetch(fetchCtx, username)
		if err != nil {
			if cancel != nil {
				cancel()
			}
			resultCh <- fetchResult{username: username, err: err}
			continue
		}
		snap.Username = username
		snap.ObservedAt = now

		var market *tracker.MarketData
		if l.market != nil {
			m, err := l.market.Market(fetchCtx, username)
			if err != nil {
				l.logger.WithError(err).WithFields(map[string]interface{}{
					"worker":   workerID,
					"username": username,
				}).Debug("Market data unavailable")
			} else {
				market = m
			}
		}
		if cancel != nil {
			cancel()
		}

		l.logger.WithFields(map[string]interface{}{
			"worker":    workerID,
			"username":  username,
			"followers": snap.Followers,
		}).Debug("Fetched account")

		resultCh <- fetchResult{username: username, snap: snap, market: market}
	}
}

// buildEntries assembles the leaderboard rows for this tick: fresh
// snapshots get newly computed growth and status, failed accounts carry
// their previous entry forward marked stale. Accounts with neither a
// fresh snapshot nor history are left out until a fetch succeeds.
func (l *Loop) buildEntries(ctx context.Context, now time.Time, fresh map[string]fetchResult, prev *tracker.LeaderboardSnapshot) ([]tracker.LeaderboardEntry, int, error) {
	entries := make([]tracker.LeaderboardEntry, 0, len(l.cfg.Accounts))
	snaps := make([]tracker.AccountSnapshot, 0, len(l.cfg.Accounts))
	staleCount := 0

	for _, username := range l.cfg.Accounts {
		if res, ok := fresh[username]; ok {
			rates, err := l.calc.Compute(ctx, res.snap)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %v", tracker.ErrStoreUnavailable, err)
			}

			entry := tracker.LeaderboardEntry{
				Username:       username,
				DisplayName:    res.snap.DisplayName,
				Verified:       res.snap.Verified,
				Followers:      res.snap.Followers,
				EngagementRate: res.snap.EngagementRate,
				Growth:         rates,
				Status:         l.calc.Classify(rates),
				ObservedAt:     res.snap.ObservedAt,
				Market:         res.market,
			}
			if prev != nil {
				if pe := prev.Entry(username); pe != nil {
					entry.FollowerChange = entry.Followers - pe.Followers
				}
			}
			entries = append(entries, entry)
			snaps = append(snaps, res.snap)
			continue
		}

		// Carried forward from the previous published snapshot
		if prev != nil {
			if pe := prev.Entry(username); pe != nil {
				carried := *pe
				carried.Stale = true
				carried.FollowerChange = 0
				entries = append(entries, carried)
				snaps = append(snaps, tracker.AccountSnapshot{
					Username:       carried.Username,
					Followers:      carried.Followers,
					EngagementRate: carried.EngagementRate,
					ObservedAt:     carried.ObservedAt,
				})
				staleCount++
				continue
			}
		}

		// No previous entry either; fall back to stored history so a
		// restart does not empty the board
		latest, err := l.store.Latest(ctx, username)
		if errors.Is(err, tracker.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", tracker.ErrStoreUnavailable, err)
		}

		rates, err := l.calc.Compute(ctx, latest)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", tracker.ErrStoreUnavailable, err)
		}
		entries = append(entries, tracker.LeaderboardEntry{
			Username:       username,
			DisplayName:    latest.DisplayName,
			Verified:       latest.Verified,
			Followers:      latest.Followers,
			EngagementRate: latest.EngagementRate,
			Growth:         rates,
			Status:         l.calc.Classify(rates),
			Stale:          true,
			ObservedAt:     latest.ObservedAt,
		})
		snaps = append(snaps, latest)
		staleCount++
	}

	scores := l.scorer.ScoreAll(snaps)
	for i := range entries {
		entries[i].Score = scores[entries[i].Username]
	}
	return entries, staleCount, nil
}

// sortEntries orders rows by score desc, followers desc, username asc.
// The order is a deterministic total order so identical inputs always
// publish identical boards.
func sortEntries(entries []tracker.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Followers != entries[j].Followers {
			return entries[i].Followers > entries[j].Followers
		}
		return entries[i].Username < entries[j].Username
	})
}
