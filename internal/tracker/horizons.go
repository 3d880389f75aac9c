package tracker

import "time"

// Horizon is one of the fixed lookback windows growth rates are computed
// over.
type Horizon struct {
	Label    string
	Duration time.Duration
}

// Horizons lists every growth window, shortest first. The set is fixed;
// ordering matters for status classification, which checks short windows
// before long ones.
var Horizons = []Horizon{
	{"5m", 5 * time.Minute},
	{"15m", 15 * time.Minute},
	{"30m", 30 * time.Minute},
	{"1h", time.Hour},
	{"4h", 4 * time.Hour},
	{"6h", 6 * time.Hour},
	{"12h", 12 * time.Hour},
	{"18h", 18 * time.Hour},
	{"24h", 24 * time.Hour},
}

// HorizonByLabel returns the horizon with the given label, or false.
func HorizonByLabel(label string) (Horizon, bool) {
	for _, h := range Horizons {
		if h.Label == label {
			return h, true
		}
	}
	return Horizon{}, false
}

// Rate returns the growth pointer for the given horizon label.
func (g *GrowthRates) Rate(label string) *float64 {
	switch label {
	case "5m":
		return g.M5
	case "15m":
		return g.M15
	case "30m":
		return g.M30
	case "1h":
		return g.H1
	case "4h":
		return g.H4
	case "6h":
		return g.H6
	case "12h":
		return g.H12
	case "18h":
		return g.H18
	case "24h":
		return g.H24
	}
	return nil
}

// SetRate sets the growth pointer for the given horizon label.
func (g *GrowthRates) SetRate(label string, v *float64) {
	switch label {
	case "5m":
		g.M5 = v
	case "15m":
		g.M15 = v
	case "30m":
		g.M30 = v
	case "1h":
		g.H1 = v
	case "4h":
		g.H4 = v
	case "6h":
		g.H6 = v
	case "12h":
		g.H12 = v
	case "18h":
		g.H18 = v
	case "24h":
		g.H24 = v
	}
}
