// Package tracker defines the core domain types shared by the collector,
// growth calculator, scorer and API layers.
package tracker

import "time"

// AccountSnapshot is a single observation of an account's public metrics.
type AccountSnapshot struct {
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Verified       bool      `json:"verified"`
	Followers      int64     `json:"followers"`
	Following      int64     `json:"following"`
	Posts          int64     `json:"posts"`
	EngagementRate float64   `json:"engagement_rate"`
	ObservedAt     time.Time `json:"observed_at"`
}

// GrowthRates holds percent change per horizon. A nil field means the
// horizon is undefined because no snapshot old enough exists yet; this is
// distinct from a measured 0% and serializes as JSON null.
type GrowthRates struct {
	M5  *float64 `json:"5m"`
	M15 *float64 `json:"15m"`
	M30 *float64 `json:"30m"`
	H1  *float64 `json:"1h"`
	H4  *float64 `json:"4h"`
	H6  *float64 `json:"6h"`
	H12 *float64 `json:"12h"`
	H18 *float64 `json:"18h"`
	H24 *float64 `json:"24h"`
}

// Status classifies an account's recent growth behaviour.
type Status string

const (
	StatusSpiking     Status = "Spiking"
	StatusFastGrowing Status = "Fast Growing"
	StatusGrowing     Status = "Growing"
	StatusDeclining   Status = "Declining"
	StatusNeutral     Status = "Neutral"
)

// MarketData is optional exchange data attached to accounts that map to a
// tradable asset.
type MarketData struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	Change24h    float64 `json:"change_24h"`
	QuoteVolume  float64 `json:"quote_volume"`
	MarketCapStr string  `json:"market_cap,omitempty"`
}

// LeaderboardEntry is one account's row in a published leaderboard.
type LeaderboardEntry struct {
	Rank           int         `json:"rank"`
	Username       string      `json:"username"`
	DisplayName    string      `json:"display_name,omitempty"`
	Verified       bool        `json:"verified"`
	Followers      int64       `json:"followers"`
	FollowerChange int64       `json:"follower_change"`
	EngagementRate float64     `json:"engagement_rate"`
	Growth         GrowthRates `json:"growth"`
	Score          float64     `json:"score"`
	Status         Status      `json:"status"`
	Stale          bool        `json:"stale"`
	ObservedAt     time.Time   `json:"observed_at"`
	Market         *MarketData `json:"market,omitempty"`
}

// Alert reports an account whose growth crossed the alert threshold.
type Alert struct {
	Username  string    `json:"username"`
	Window    string    `json:"window"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardSnapshot is an immutable, atomically published view of all
// tracked accounts at one tick.
type LeaderboardSnapshot struct {
	Entries     []LeaderboardEntry `json:"entries"`
	Alerts      []Alert            `json:"alerts"`
	GeneratedAt time.Time          `json:"generated_at"`
	Tick        uint64             `json:"tick"`
}

// Entry returns the entry for username, or nil if absent.
func (s *LeaderboardSnapshot) Entry(username string) *LeaderboardEntry {
	for i := range s.Entries {
		if s.Entries[i].Username == username {
			return &s.Entries[i]
		}
	}
	return nil
}
