package oddsfeed

import "time"

// Raw wire shapes from The Odds API v4. These never leak past this
// package; the adapter flattens them into models.OddsEvent.

// Event is a single sporting event with per-bookmaker odds
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers,omitempty"`
}

// Bookmaker is one sportsbook's markets for an event
type Bookmaker struct {
	Key        string       `json:"key"`
	Title      string       `json:"title"`
	LastUpdate time.Time    `json:"last_update"`
	Markets    []MarketData `json:"markets"`
}

// MarketData is the odds for a specific market key
type MarketData struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome is a single betting option. For player props, Name carries
// Over/Under and Description carries the player name.
type Outcome struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"` // American odds
	Point       *float64 `json:"point,omitempty"`
}
