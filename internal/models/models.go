package models

import (
	"fmt"
	"time"
)

// League identifies a supported league
type League string

const (
	LeagueNBA League = "nba"
	LeagueNFL League = "nfl"
	LeagueMLB League = "mlb"
)

// KnownLeagues lists every league the service can build records for
var KnownLeagues = []League{LeagueNBA, LeagueNFL, LeagueMLB}

// ParseLeague validates a league string
func ParseLeague(s string) (League, error) {
	switch League(s) {
	case LeagueNBA, LeagueNFL, LeagueMLB:
		return League(s), nil
	default:
		return "", fmt.Errorf("unknown league %q", s)
	}
}

// SportPath returns the sport/league path segment used by the stats provider
func (l League) SportPath() string {
	switch l {
	case LeagueNBA:
		return "basketball/nba"
	case LeagueNFL:
		return "football/nfl"
	case LeagueMLB:
		return "baseball/mlb"
	default:
		return ""
	}
}

// OddsKey returns the sport key used by the odds provider
func (l League) OddsKey() string {
	switch l {
	case LeagueNBA:
		return "basketball_nba"
	case LeagueNFL:
		return "americanfootball_nfl"
	case LeagueMLB:
		return "baseball_mlb"
	default:
		return ""
	}
}

// Market represents betting market types
type Market string

const (
	MarketMoneyline Market = "moneyline"
	MarketSpread    Market = "spread"
	MarketTotal     Market = "total"
	MarketProp      Market = "prop"
)

// TeamRef is the canonical identity of a team as known to the stats source
type TeamRef struct {
	SourceID      string `json:"source_id"`
	CanonicalName string `json:"canonical_name"`
	Abbreviation  string `json:"abbreviation,omitempty"`
	League        League `json:"league"`
}

// PlayerRef is one roster entry from the stats source
type PlayerRef struct {
	SourceID    string `json:"source_id"`
	DisplayName string `json:"display_name"`
	TeamID      string `json:"team_id"`
	Position    string `json:"position,omitempty"`
}

// OddsQuote is a single sportsbook price for one side of one market.
// Line is nil for moneyline. Price is an American odds integer and is
// never zero (the adapters drop zero-priced outcomes as malformed).
type OddsQuote struct {
	Book       string   `json:"book"`
	Market     Market   `json:"market"`
	PropKey    string   `json:"prop_key,omitempty"` // e.g. player_points; props only
	Side       string   `json:"side"`               // team name, or Over/Under
	PlayerName string   `json:"player_name,omitempty"`
	Line       *float64 `json:"line,omitempty"`
	Price      int      `json:"price"`
}

// MarketBest is the best-priced quote for one (market, side, line) bucket
type MarketBest struct {
	Market    Market   `json:"market"`
	PropKey   string   `json:"prop_key,omitempty"`
	Side      string   `json:"side"`
	Line      *float64 `json:"line,omitempty"`
	BestPrice int      `json:"best_price"`
	BestBook  string   `json:"best_book"`
}

// OddsEvent is one game's worth of quotes as reported by the odds source,
// still keyed by the odds source's own team names
type OddsEvent struct {
	EventID   string      `json:"event_id"`
	HomeName  string      `json:"home_name"`
	AwayName  string      `json:"away_name"`
	StartTime time.Time   `json:"start_time"`
	Quotes    []OddsQuote `json:"quotes"`
}

// GameStub is a scheduled game as reported by the stats source
type GameStub struct {
	GameID    string    `json:"game_id"`
	League    League    `json:"league"`
	StartTime time.Time `json:"start_time"`
	Home      TeamRef   `json:"home"`
	Away      TeamRef   `json:"away"`
	State     string    `json:"state,omitempty"` // pre/in/post
}

// StatLine is a free-form per-team stats blob (recent-form averages)
type StatLine map[string]float64

// PlayerProps groups the aggregated prop markets for one resolved player
type PlayerProps struct {
	Player PlayerRef    `json:"player"`
	Props  []MarketBest `json:"props"`
}

// UnresolvedName records a name the resolver could not confidently match.
// These are surfaced rather than dropped so the alias table can be
// maintained against real mismatches.
type UnresolvedName struct {
	League        League  `json:"league"`
	Kind          string  `json:"kind"` // team or player
	Input         string  `json:"input"`
	BestCandidate string  `json:"best_candidate,omitempty"`
	BestScore     float64 `json:"best_score"`
}

// UnresolvedProp marks a prop player whose quotes were excluded because the
// name could not be matched against either roster
type UnresolvedProp struct {
	PlayerName    string  `json:"player_name"`
	BestCandidate string  `json:"best_candidate,omitempty"`
	BestScore     float64 `json:"best_score"`
	Quotes        int     `json:"quotes"`
}

// GameRecord is the terminal joined artifact: one scheduled game with
// resolved identities, best-priced markets and recent form
type GameRecord struct {
	GameID      string                 `json:"game_id"`
	League      League                 `json:"league"`
	StartTime   time.Time              `json:"start_time"`
	Home        TeamRef                `json:"home"`
	Away        TeamRef                `json:"away"`
	Markets     []MarketBest           `json:"markets"`
	PlayerProps map[string]PlayerProps `json:"player_props,omitempty"` // keyed by player source ID
	Unresolved  []UnresolvedProp       `json:"unresolved_props,omitempty"`
	RecentForm  map[string]StatLine    `json:"recent_form,omitempty"` // keyed by team source ID
	MissingOdds bool                   `json:"missing_odds"`
	Partial     bool                   `json:"partial"`
}

// BuildStatus distinguishes a clean build from one with gaps
type BuildStatus string

const (
	// BuildOK means every record is fully resolved (an empty slate is still OK)
	BuildOK BuildStatus = "ok"
	// BuildPartial means at least one record has unresolved names
	BuildPartial BuildStatus = "partial"
	// BuildDegraded means the odds source was unavailable; records carry schedule only
	BuildDegraded BuildStatus = "degraded"
)

// BuildResult is one builder invocation's output for a league/date
type BuildResult struct {
	League      League           `json:"league"`
	Date        string           `json:"date"` // 2006-01-02
	GeneratedAt time.Time        `json:"generated_at"`
	Status      BuildStatus      `json:"status"`
	Records     []GameRecord     `json:"records"`
	Gaps        []UnresolvedName `json:"gaps,omitempty"`
}
