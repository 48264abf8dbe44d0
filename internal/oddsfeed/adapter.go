package oddsfeed

import (
	"math"
	"strings"

	"github.com/joshuakim/oddsalign/internal/models"
)

// PropMarkets returns the comma-separated prop market keys requested for
// a league. Sport-specific quirks stay here, not in the join logic.
func PropMarkets(league models.League) string {
	switch league {
	case models.LeagueNBA:
		return "player_points,player_rebounds,player_assists,player_threes"
	case models.LeagueNFL:
		return "player_pass_yds,player_rush_yds,player_receptions,player_reception_yds"
	case models.LeagueMLB:
		return "batter_hits,batter_home_runs,pitcher_strikeouts"
	default:
		return ""
	}
}

// marketFor classifies a provider market key. Unknown keys yield "" and
// the adapter drops their outcomes.
func marketFor(key string) (models.Market, string) {
	switch key {
	case "h2h":
		return models.MarketMoneyline, ""
	case "spreads":
		return models.MarketSpread, ""
	case "totals":
		return models.MarketTotal, ""
	}
	if strings.HasPrefix(key, "player_") || strings.HasPrefix(key, "batter_") || strings.HasPrefix(key, "pitcher_") {
		return models.MarketProp, key
	}
	return "", ""
}

// FlattenEvent maps one raw provider event into a normalized OddsEvent,
// one quote per (book, market, outcome). Malformed outcomes (zero price,
// missing names, unknown market keys) are skipped individually rather
// than failing the event.
func FlattenEvent(ev Event) models.OddsEvent {
	out := models.OddsEvent{
		EventID:   ev.ID,
		HomeName:  ev.HomeTeam,
		AwayName:  ev.AwayTeam,
		StartTime: ev.CommenceTime,
	}

	for _, bm := range ev.Bookmakers {
		book := bm.Title
		if book == "" {
			book = bm.Key
		}
		for _, m := range bm.Markets {
			market, propKey := marketFor(m.Key)
			if market == "" {
				continue
			}
			for _, o := range m.Outcomes {
				q, ok := quoteFor(book, market, propKey, o)
				if !ok {
					continue
				}
				out.Quotes = append(out.Quotes, q)
			}
		}
	}
	return out
}

func quoteFor(book string, market models.Market, propKey string, o Outcome) (models.OddsQuote, bool) {
	price := int(math.Round(o.Price))
	if price == 0 || o.Name == "" {
		return models.OddsQuote{}, false
	}

	q := models.OddsQuote{
		Book:    book,
		Market:  market,
		PropKey: propKey,
		Side:    o.Name,
		Line:    o.Point,
		Price:   price,
	}

	if market == models.MarketProp {
		// Prop outcomes carry Over/Under in Name and the player in Description
		if o.Description == "" {
			return models.OddsQuote{}, false
		}
		q.PlayerName = o.Description
	}
	return q, true
}
