package oddsfeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/oddsalign/internal/models"
)

func ptr(f float64) *float64 { return &f }

func TestFlattenEventGameMarkets(t *testing.T) {
	start := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	ev := Event{
		ID:           "ev1",
		HomeTeam:     "New York Yankees",
		AwayTeam:     "Boston Red Sox",
		CommenceTime: start,
		Bookmakers: []Bookmaker{
			{
				Key:   "draftkings",
				Title: "DraftKings",
				Markets: []MarketData{
					{Key: "h2h", Outcomes: []Outcome{
						{Name: "New York Yankees", Price: -162},
						{Name: "Boston Red Sox", Price: 142},
					}},
					{Key: "totals", Outcomes: []Outcome{
						{Name: "Over", Price: -110, Point: ptr(8.5)},
						{Name: "Under", Price: -110, Point: ptr(8.5)},
					}},
				},
			},
		},
	}

	flat := FlattenEvent(ev)
	assert.Equal(t, "ev1", flat.EventID)
	assert.Equal(t, "New York Yankees", flat.HomeName)
	assert.Equal(t, "Boston Red Sox", flat.AwayName)
	assert.Equal(t, start, flat.StartTime)
	require.Len(t, flat.Quotes, 4)

	ml := flat.Quotes[0]
	assert.Equal(t, models.MarketMoneyline, ml.Market)
	assert.Equal(t, "DraftKings", ml.Book)
	assert.Equal(t, -162, ml.Price)
	assert.Nil(t, ml.Line)

	over := flat.Quotes[2]
	assert.Equal(t, models.MarketTotal, over.Market)
	assert.Equal(t, "Over", over.Side)
	require.NotNil(t, over.Line)
	assert.Equal(t, 8.5, *over.Line)
}

func TestFlattenEventProps(t *testing.T) {
	ev := Event{
		ID:       "ev2",
		HomeTeam: "Denver Nuggets",
		AwayTeam: "Miami Heat",
		Bookmakers: []Bookmaker{
			{
				Key:   "fanduel",
				Title: "FanDuel",
				Markets: []MarketData{
					{Key: "player_points", Outcomes: []Outcome{
						{Name: "Over", Description: "Nikola Jokic", Price: -115, Point: ptr(25.5)},
						{Name: "Under", Description: "Nikola Jokic", Price: -105, Point: ptr(25.5)},
					}},
				},
			},
		},
	}

	flat := FlattenEvent(ev)
	require.Len(t, flat.Quotes, 2)
	q := flat.Quotes[0]
	assert.Equal(t, models.MarketProp, q.Market)
	assert.Equal(t, "player_points", q.PropKey)
	assert.Equal(t, "Nikola Jokic", q.PlayerName)
	assert.Equal(t, "Over", q.Side)
}

func TestFlattenEventSkipsMalformedOutcomes(t *testing.T) {
	ev := Event{
		ID: "ev3",
		Bookmakers: []Bookmaker{
			{
				Key: "betmgm",
				Markets: []MarketData{
					{Key: "h2h", Outcomes: []Outcome{
						{Name: "Miami Heat", Price: 0},  // zero price
						{Name: "", Price: -110},         // no side
						{Name: "Miami Heat", Price: -110},
					}},
					{Key: "player_points", Outcomes: []Outcome{
						{Name: "Over", Description: "", Price: -110, Point: ptr(20.5)}, // no player
					}},
					{Key: "alternate_spreads", Outcomes: []Outcome{ // unknown market
						{Name: "Miami Heat", Price: -110, Point: ptr(-7.5)},
					}},
				},
			},
		},
	}

	flat := FlattenEvent(ev)
	require.Len(t, flat.Quotes, 1)
	// Falls back to the book key when no title is present
	assert.Equal(t, "betmgm", flat.Quotes[0].Book)
	assert.Equal(t, -110, flat.Quotes[0].Price)
}

func TestPropMarkets(t *testing.T) {
	assert.Contains(t, PropMarkets(models.LeagueNBA), "player_points")
	assert.Contains(t, PropMarkets(models.LeagueNFL), "player_pass_yds")
	assert.Contains(t, PropMarkets(models.LeagueMLB), "batter_hits")
	assert.Empty(t, PropMarkets(models.League("cricket")))
}
