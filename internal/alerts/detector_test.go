package alerts

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/oddsalign/internal/models"
)

func line(v float64) *float64 { return &v }

// form implies an expected total of 227 and a home margin of 4
func formRecord(markets ...models.MarketBest) models.GameRecord {
	return models.GameRecord{
		GameID:    "g1",
		League:    models.LeagueNBA,
		StartTime: time.Now().Add(3 * time.Hour),
		Home:      models.TeamRef{SourceID: "h", CanonicalName: "Denver Nuggets"},
		Away:      models.TeamRef{SourceID: "a", CanonicalName: "Utah Jazz"},
		Markets:   markets,
		RecentForm: map[string]models.StatLine{
			"h": {"points_for": 115, "margin": 5},
			"a": {"points_for": 112, "margin": -3},
		},
	}
}

func TestTotalLineFarAboveFormAlertsUnder(t *testing.T) {
	d := NewDetector(nil, logrus.New())
	rec := formRecord(models.MarketBest{
		Market: models.MarketTotal, Side: "Over", Line: line(234.5), BestPrice: -105, BestBook: "FanDuel",
	})

	alerts := d.CheckRecord(rec)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "total", a.Market)
	assert.Equal(t, DirectionUnder, a.Direction)
	assert.InDelta(t, 227.0, a.Expected, 0.001)
	assert.InDelta(t, 7.5, a.Difference, 0.001)
	assert.Equal(t, ConfidenceLow, a.Confidence)
	assert.Equal(t, "FanDuel", a.Bookmaker)
	assert.NotEmpty(t, a.ID)
}

func TestSpreadLineGenerousToHomeAlertsHome(t *testing.T) {
	d := NewDetector(nil, logrus.New())
	rec := formRecord(models.MarketBest{
		Market: models.MarketSpread, Side: "Denver Nuggets", Line: line(1.5), BestPrice: -110, BestBook: "DraftKings",
	})

	alerts := d.CheckRecord(rec)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "spread", a.Market)
	assert.Equal(t, DirectionHome, a.Direction)
	assert.InDelta(t, -4.0, a.Expected, 0.001)
	assert.InDelta(t, 5.5, a.Difference, 0.001)
	assert.Equal(t, ConfidenceMedium, a.Confidence)
}

func TestLineWithinThresholdIsQuiet(t *testing.T) {
	d := NewDetector(nil, logrus.New())
	rec := formRecord(
		models.MarketBest{Market: models.MarketTotal, Side: "Over", Line: line(229.5), BestPrice: -110, BestBook: "FanDuel"},
		models.MarketBest{Market: models.MarketSpread, Side: "Denver Nuggets", Line: line(-3.5), BestPrice: -110, BestBook: "FanDuel"},
	)
	assert.Empty(t, d.CheckRecord(rec))
}

func TestAwaySpreadSideIgnored(t *testing.T) {
	d := NewDetector(nil, logrus.New())
	rec := formRecord(models.MarketBest{
		Market: models.MarketSpread, Side: "Utah Jazz", Line: line(15.5), BestPrice: -110, BestBook: "FanDuel",
	})
	assert.Empty(t, d.CheckRecord(rec))
}

func TestNoFormNoAlerts(t *testing.T) {
	d := NewDetector(nil, logrus.New())
	rec := formRecord(models.MarketBest{
		Market: models.MarketTotal, Side: "Over", Line: line(250.5), BestPrice: -110, BestBook: "FanDuel",
	})
	delete(rec.RecentForm, "a")
	assert.Empty(t, d.CheckRecord(rec))
}

func TestMissingOddsNoAlerts(t *testing.T) {
	d := NewDetector(nil, logrus.New())
	rec := formRecord()
	rec.MissingOdds = true
	assert.Empty(t, d.CheckRecord(rec))
}

func TestGetConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceLow, GetConfidence(6.5, 6.0))
	assert.Equal(t, ConfidenceMedium, GetConfidence(9.5, 6.0))
	assert.Equal(t, ConfidenceHigh, GetConfidence(13.0, 6.0))
}

func TestFormatBatchSummary(t *testing.T) {
	assert.Equal(t, "No value alerts", FormatBatchSummary(nil))

	alerts := []ValueAlert{
		{Market: "total", Side: "Over", Line: 234.5, Expected: 227, Direction: DirectionUnder, Confidence: ConfidenceHigh, HomeTeam: "Denver Nuggets", AwayTeam: "Utah Jazz"},
		{Market: "spread", Confidence: ConfidenceLow},
	}
	assert.Equal(t, "2 value alerts (1 high confidence)", FormatBatchSummary(alerts))
}
