// Package board holds the atomically published leaderboard read side.
package board

import (
	"sync/atomic"

	"pulseboard/internal/tracker"
)

// Publisher exposes the most recent leaderboard snapshot to any number of
// concurrent readers. The collector is the only writer; readers never
// block and never observe a partially built snapshot.
type Publisher struct {
	current atomic.Pointer[tracker.LeaderboardSnapshot]
}

// NewPublisher creates a publisher with no snapshot yet.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish replaces the current snapshot. The snapshot must not be
// mutated after this call.
func (p *Publisher) Publish(snap *tracker.LeaderboardSnapshot) {
	p.current.Store(snap)
}

// Current returns the latest published snapshot, or nil before the first
// publish.
func (p *Publisher) Current() *tracker.LeaderboardSnapshot {
	return p.current.Load()
}
