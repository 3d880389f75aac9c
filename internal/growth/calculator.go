// Package growth computes multi-horizon follower growth rates and
// classifies an account's growth status.
package growth

import (
	"context"
	"errors"
	"fmt"

	"pulseboard/internal/tracker"
	"pulseboard/internal/tracker/store"
)

// Calculator derives percent change per horizon from stored history.
type Calculator struct {
	store          store.Store
	spikeThreshold float64
	fastThreshold  float64
}

// NewCalculator creates a calculator with the given classification
// thresholds (percent).
func NewCalculator(s store.Store, spikeThreshold, fastThreshold float64) *Calculator {
	return &Calculator{
		store:          s,
		spikeThreshold: spikeThreshold,
		fastThreshold:  fastThreshold,
	}
}

// Compute returns growth rates for the account as of current.ObservedAt.
// A horizon with no snapshot old enough stays nil. Absence results from
// the store are expected and never surface as errors.
func (c *Calculator) Compute(ctx context.Context, current tracker.AccountSnapshot) (tracker.GrowthRates, error) {
	var rates tracker.GrowthRates

	for _, h := range tracker.Horizons {
		past, err := c.store.Before(ctx, current.Username, current.ObservedAt.Add(-h.Duration))
		if errors.Is(err, tracker.ErrNoHistory) || errors.Is(err, tracker.ErrNotFound) {
			continue
		}
		if err != nil {
			return tracker.GrowthRates{}, fmt.Errorf("growth lookup for %s/%s: %w", current.Username, h.Label, err)
		}

		pct := PercentChange(current.Followers, past.Followers)
		rates.SetRate(h.Label, &pct)
	}
	return rates, nil
}

// PercentChange returns the follower delta as a percentage of the past
// value. A zero past count yields 0 rather than a division error.
func PercentChange(current, past int64) float64 {
	if past == 0 {
		return 0
	}
	return float64(current-past) / float64(past) * 100
}

// Classify maps growth rates to a status. Conditions are checked in
// priority order; a nil horizon simply fails its check and falls through.
func (c *Calculator) Classify(rates tracker.GrowthRates) tracker.Status {
	if rates.M5 != nil && *rates.M5 >= c.spikeThreshold {
		return tracker.StatusSpiking
	}
	if rates.H1 != nil && *rates.H1 >= c.fastThreshold {
		return tracker.StatusFastGrowing
	}
	if rates.H24 != nil {
		switch {
		case *rates.H24 > 0:
			return tracker.StatusGrowing
		case *rates.H24 < 0:
			return tracker.StatusDeclining
		}
	}
	return tracker.StatusNeutral
}
