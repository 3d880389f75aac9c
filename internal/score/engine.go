// Package score normalizes account metrics into a comparable popularity
// score.
package score

import "pulseboard/internal/tracker"

// Engine computes scores relative to a reference account.
type Engine struct {
	referenceAccount string
	followerWeight   float64
	engagementWeight float64
}

// NewEngine creates a score engine. referenceAccount may be empty, in
// which case the largest-followers account in each batch is used.
func NewEngine(referenceAccount string, followerWeight, engagementWeight float64) *Engine {
	return &Engine{
		referenceAccount: referenceAccount,
		followerWeight:   followerWeight,
		engagementWeight: engagementWeight,
	}
}

// Reference picks the reference snapshot from a batch. Returns false when
// the configured account is absent, or the batch is empty.
func (e *Engine) Reference(snaps []tracker.AccountSnapshot) (tracker.AccountSnapshot, bool) {
	if len(snaps) == 0 {
		return tracker.AccountSnapshot{}, false
	}

	if e.referenceAccount != "" {
		for _, s := range snaps {
			if s.Username == e.referenceAccount {
				return s, true
			}
		}
		return tracker.AccountSnapshot{}, false
	}

	// Default: largest follower count in the batch
	ref := snaps[0]
	for _, s := range snaps[1:] {
		if s.Followers > ref.Followers {
			ref = s
		}
	}
	return ref, true
}

// Score computes the weighted normalized score of snap against ref.
// Zero reference metrics contribute 0 rather than dividing by zero.
func (e *Engine) Score(snap, ref tracker.AccountSnapshot) float64 {
	var followersNorm, engagementNorm float64
	if ref.Followers > 0 {
		followersNorm = float64(snap.Followers) / float64(ref.Followers)
	}
	if ref.EngagementRate > 0 {
		engagementNorm = snap.EngagementRate / ref.EngagementRate
	}
	return 1000 * (e.followerWeight*followersNorm + e.engagementWeight*engagementNorm)
}

// ScoreAll scores every snapshot in the batch against the batch's
// reference. A missing reference yields all-zero scores instead of an
// error so a tick never aborts on it.
func (e *Engine) ScoreAll(snaps []tracker.AccountSnapshot) map[string]float64 {
	scores := make(map[string]float64, len(snaps))

	ref, ok := e.Reference(snaps)
	if !ok {
		for _, s := range snaps {
			scores[s.Username] = 0
		}
		return scores
	}

	for _, s := range snaps {
		scores[s.Username] = e.Score(s, ref)
	}
	return scores
}
