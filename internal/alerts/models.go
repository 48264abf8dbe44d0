package alerts

import (
	"time"
)

// Confidence levels for alerts
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Direction indicates which side the value sits on
const (
	DirectionOver  = "over"
	DirectionUnder = "under"
	DirectionHome  = "home"
	DirectionAway  = "away"
)

// ValueAlert represents a posted line that sits far from what the two
// teams' recent form implies
type ValueAlert struct {
	// Identification
	ID       string `json:"id"`
	League   string `json:"league"`
	GameID   string `json:"game_id"`
	GameTime string `json:"game_time"`
	AwayTeam string `json:"away_team"`
	HomeTeam string `json:"home_team"`

	// Line details
	Market        string  `json:"market"`
	Side          string  `json:"side"`
	Line          float64 `json:"line"`
	Expected      float64 `json:"expected"`
	Difference    float64 `json:"difference"`
	AbsDifference float64 `json:"abs_difference"`

	// Analysis
	Direction  string `json:"direction"`
	Confidence string `json:"confidence"`

	// Best available odds
	BestPrice int    `json:"best_price"`
	Bookmaker string `json:"bookmaker"`

	// Timing
	DetectedAt time.Time `json:"detected_at"`
	ExpiresAt  time.Time `json:"expires_at"` // Game start time
}

// AlertBatch represents a collection of alerts for push notification
type AlertBatch struct {
	Alerts    []ValueAlert `json:"alerts"`
	Count     int          `json:"count"`
	CreatedAt time.Time    `json:"created_at"`
	Summary   string       `json:"summary"`
}

// Thresholds holds per-market threshold configuration, in points
type Thresholds struct {
	Total  float64 `json:"total"`
	Spread float64 `json:"spread"`
}

// DefaultThresholds returns the default threshold configuration
func DefaultThresholds() Thresholds {
	return Thresholds{
		Total:  6.0,
		Spread: 3.0,
	}
}

// GetThreshold returns the threshold for a given market
func (t Thresholds) GetThreshold(market string) float64 {
	switch market {
	case "spread":
		return t.Spread
	default:
		return t.Total
	}
}

// CooldownDurations for different confidence levels
var CooldownDurations = map[string]time.Duration{
	ConfidenceLow:    4 * time.Hour,
	ConfidenceMedium: 2 * time.Hour,
	ConfidenceHigh:   1 * time.Hour,
}

// GetCooldownDuration returns the cooldown duration for a confidence level
func GetCooldownDuration(confidence string) time.Duration {
	if d, ok := CooldownDurations[confidence]; ok {
		return d
	}
	return 4 * time.Hour // Default
}

// GetConfidence returns confidence level based on absolute difference
func GetConfidence(absDiff float64, threshold float64) string {
	ratio := absDiff / threshold

	switch {
	case ratio >= 2.0: // 2x threshold or more
		return ConfidenceHigh
	case ratio >= 1.5: // 1.5x threshold
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
