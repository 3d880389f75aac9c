// Package alert turns growth results into human-readable spike alerts.
package alert

import (
	"fmt"
	"time"

	"pulseboard/internal/tracker"
)

// Generator scans leaderboard entries for spike conditions.
type Generator struct {
	alertThreshold float64
}

// NewGenerator creates a generator. alertThreshold is the 5m growth
// percentage above which an alert fires even without Spiking status.
func NewGenerator(alertThreshold float64) *Generator {
	return &Generator{alertThreshold: alertThreshold}
}

// Scan returns one alert per qualifying entry. Alerts are per tick and
// not persisted; the caller attaches them to the published snapshot.
func (g *Generator) Scan(entries []tracker.LeaderboardEntry, now time.Time) []tracker.Alert {
	var alerts []tracker.Alert
	for _, e := range entries {
		if e.Growth.M5 == nil {
			continue
		}
		if e.Status != tracker.StatusSpiking && *e.Growth.M5 <= g.alertThreshold {
			continue
		}
		alerts = append(alerts, NewAlert(e.Username, "5m", *e.Growth.M5, now))
	}
	return alerts
}

// NewAlert builds a single alert with its rendered message.
func NewAlert(username, window string, percent float64, now time.Time) tracker.Alert {
	return tracker.Alert{
		Username:  username,
		Window:    window,
		Percent:   percent,
		Message:   fmt.Sprintf("%s grew %.1f%% in %s", username, percent, window),
		CreatedAt: now,
	}
}
