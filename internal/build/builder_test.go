package build

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/oddsalign/internal/models"
	"github.com/joshuakim/oddsalign/internal/resolve"
)

type fakeStats struct {
	stubs     []models.GameStub
	stubsErr  error
	rosters   map[string][]models.PlayerRef
	rosterErr error
	form      map[string]models.StatLine
}

func (f *fakeStats) Schedule(_ context.Context, _ models.League, _ time.Time) ([]models.GameStub, error) {
	return f.stubs, f.stubsErr
}

func (f *fakeStats) Roster(_ context.Context, _ models.League, teamID string) ([]models.PlayerRef, error) {
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.rosters[teamID], nil
}

func (f *fakeStats) RecentForm(_ context.Context, _ models.League, teamID string) (models.StatLine, error) {
	return f.form[teamID], nil
}

type fakeOdds struct {
	events    []models.OddsEvent
	eventsErr error
	props     map[string][]models.OddsQuote
	propsErr  error
}

func (f *fakeOdds) Odds(_ context.Context, _ models.League) ([]models.OddsEvent, error) {
	return f.events, f.eventsErr
}

func (f *fakeOdds) Props(_ context.Context, _ models.League, eventID string) ([]models.OddsQuote, error) {
	if f.propsErr != nil {
		return nil, f.propsErr
	}
	return f.props[eventID], nil
}

func testResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	aliases, err := resolve.LoadAliasTable("")
	require.NoError(t, err)
	return resolve.NewResolver(aliases)
}

func line(v float64) *float64 { return &v }

func mlbSlate() *fakeStats {
	tip := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	return &fakeStats{
		stubs: []models.GameStub{
			{
				GameID:    "401700001",
				League:    models.LeagueMLB,
				StartTime: tip,
				Home:      models.TeamRef{SourceID: "10", CanonicalName: "New York Yankees", Abbreviation: "NYY", League: models.LeagueMLB},
				Away:      models.TeamRef{SourceID: "2", CanonicalName: "Boston Red Sox", Abbreviation: "BOS", League: models.LeagueMLB},
			},
		},
		rosters: map[string][]models.PlayerRef{
			"10": {{SourceID: "p-judge", DisplayName: "Aaron Judge", TeamID: "10", Position: "RF"}},
			"2":  {{SourceID: "p-devers", DisplayName: "Rafael Devers", TeamID: "2", Position: "3B"}},
		},
		form: map[string]models.StatLine{
			"10": {"games": 10, "points_for": 5.2, "points_against": 3.9, "margin": 1.3, "wins": 7, "losses": 3},
		},
	}
}

func mlbOdds() *fakeOdds {
	return &fakeOdds{
		events: []models.OddsEvent{
			{
				EventID:  "ev1",
				HomeName: "New York Yankees",
				AwayName: "Boston Red Sox",
				Quotes: []models.OddsQuote{
					{Book: "DraftKings", Market: models.MarketMoneyline, Side: "New York Yankees", Price: -145},
					{Book: "FanDuel", Market: models.MarketMoneyline, Side: "New York Yankees", Price: -138},
					{Book: "DraftKings", Market: models.MarketTotal, Side: "Over", Line: line(8.5), Price: -110},
					{Book: "FanDuel", Market: models.MarketTotal, Side: "Over", Line: line(8.5), Price: -105},
				},
			},
		},
		props: map[string][]models.OddsQuote{
			"ev1": {
				{Book: "DraftKings", Market: models.MarketProp, PropKey: "batter_home_runs", Side: "Over", PlayerName: "Aaron Judge", Line: line(0.5), Price: 210},
				{Book: "FanDuel", Market: models.MarketProp, PropKey: "batter_home_runs", Side: "Over", PlayerName: "Aaron Judje", Line: line(0.5), Price: 225},
			},
		},
	}
}

func TestBuildJoinsOddsToSchedule(t *testing.T) {
	b := New(mlbSlate(), mlbOdds(), testResolver(t), logrus.New())

	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, "401700001", rec.GameID)
	assert.False(t, rec.MissingOdds)
	assert.False(t, rec.Partial)

	require.Len(t, rec.Markets, 2)
	assert.Equal(t, models.MarketMoneyline, rec.Markets[0].Market)
	assert.Equal(t, -138, rec.Markets[0].BestPrice)
	assert.Equal(t, "FanDuel", rec.Markets[0].BestBook)
	assert.Equal(t, models.MarketTotal, rec.Markets[1].Market)
	assert.Equal(t, -105, rec.Markets[1].BestPrice)
}

func TestBuildMergesPropAliasVariants(t *testing.T) {
	stats := mlbSlate()
	stats.rosters["10"] = append(stats.rosters["10"], models.PlayerRef{SourceID: "p-stanton", DisplayName: "Giancarlo Stanton", TeamID: "10"})

	b := New(stats, mlbOdds(), testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	rec := result.Records[0]
	require.Contains(t, rec.PlayerProps, "p-judge")
	props := rec.PlayerProps["p-judge"].Props
	require.Len(t, props, 1)
	// the misspelled book name fuzzy-resolves to the same roster entry,
	// so both books land in one bucket and the better price wins
	assert.Equal(t, 225, props[0].BestPrice)
	assert.Equal(t, "FanDuel", props[0].BestBook)
	assert.Equal(t, models.BuildOK, result.Status)
}

func TestBuildMarketSidesMatchTeamRefs(t *testing.T) {
	odds := mlbOdds()
	// the odds feed spells both teams with stray punctuation; the event
	// still resolves, and the emitted sides must be the canonical names
	odds.events[0].HomeName = "New York Yankees."
	odds.events[0].AwayName = "Boston Red Sox'"
	for i := range odds.events[0].Quotes {
		if odds.events[0].Quotes[i].Side == "New York Yankees" {
			odds.events[0].Quotes[i].Side = "New York Yankees."
		}
	}
	odds.events[0].Quotes = append(odds.events[0].Quotes,
		models.OddsQuote{Book: "DraftKings", Market: models.MarketSpread, Side: "Boston Red Sox'", Line: line(1.5), Price: -115},
	)

	b := New(mlbSlate(), odds, testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	rec := result.Records[0]
	require.False(t, rec.MissingOdds)
	require.NotEmpty(t, rec.Markets)

	valid := map[string]bool{rec.Home.CanonicalName: true, rec.Away.CanonicalName: true, "Over": true, "Under": true}
	for _, mb := range rec.Markets {
		assert.True(t, valid[mb.Side], "side %q matches neither team ref", mb.Side)
		switch mb.Market {
		case models.MarketMoneyline:
			assert.Equal(t, "New York Yankees", mb.Side)
		case models.MarketSpread:
			assert.Equal(t, "Boston Red Sox", mb.Side)
		}
	}
}

func TestBuildEmptySchedule(t *testing.T) {
	b := New(&fakeStats{}, mlbOdds(), testResolver(t), logrus.New())

	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, models.BuildOK, result.Status)
}

func TestBuildStatsFailureIsFatal(t *testing.T) {
	stats := &fakeStats{stubsErr: models.ErrSourceUnavailable}
	b := New(stats, mlbOdds(), testResolver(t), logrus.New())

	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
	assert.Nil(t, result)
}

func TestBuildOddsFailureDegrades(t *testing.T) {
	odds := &fakeOdds{eventsErr: models.ErrSourceUnavailable}
	b := New(mlbSlate(), odds, testResolver(t), logrus.New())

	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)
	assert.Equal(t, models.BuildDegraded, result.Status)
	require.Len(t, result.Records, 1)
	assert.True(t, result.Records[0].MissingOdds)
	assert.Empty(t, result.Records[0].Markets)
}

func TestBuildUnmatchedOddsEvent(t *testing.T) {
	odds := mlbOdds()
	odds.events[0].AwayName = "Springfield Isotopes"

	b := New(mlbSlate(), odds, testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	assert.True(t, result.Records[0].MissingOdds)
	require.Len(t, result.Gaps, 1)
	assert.Equal(t, "team", result.Gaps[0].Kind)
	assert.Equal(t, "Springfield Isotopes", result.Gaps[0].Input)
	assert.Equal(t, models.BuildPartial, result.Status)
}

func TestBuildUnresolvedPropPlayer(t *testing.T) {
	odds := mlbOdds()
	odds.props["ev1"] = append(odds.props["ev1"],
		models.OddsQuote{Book: "DraftKings", Market: models.MarketProp, PropKey: "batter_hits", Side: "Over", PlayerName: "Zzyzx Quorble", Line: line(1.5), Price: -120},
	)

	b := New(mlbSlate(), odds, testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	rec := result.Records[0]
	assert.True(t, rec.Partial)
	require.Len(t, rec.Unresolved, 1)
	assert.Equal(t, "Zzyzx Quorble", rec.Unresolved[0].PlayerName)
	assert.Equal(t, 1, rec.Unresolved[0].Quotes)
	// resolved props are still attached alongside the gap
	assert.Contains(t, rec.PlayerProps, "p-judge")
	assert.Equal(t, models.BuildPartial, result.Status)
}

func TestBuildRosterFailureKeepsRecord(t *testing.T) {
	stats := mlbSlate()
	stats.rosterErr = models.ErrSourceUnavailable

	b := New(stats, mlbOdds(), testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	rec := result.Records[0]
	assert.False(t, rec.MissingOdds)
	assert.NotEmpty(t, rec.Markets)
	assert.Empty(t, rec.PlayerProps)
	assert.True(t, rec.Partial)
}

func TestBuildPropFetchFailureIsNonFatal(t *testing.T) {
	odds := mlbOdds()
	odds.propsErr = models.ErrSourceUnavailable

	b := New(mlbSlate(), odds, testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	rec := result.Records[0]
	assert.False(t, rec.MissingOdds)
	assert.Empty(t, rec.PlayerProps)
	assert.False(t, rec.Partial)
}

func TestBuildRecentFormAttached(t *testing.T) {
	b := New(mlbSlate(), mlbOdds(), testResolver(t), logrus.New())

	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	rec := result.Records[0]
	require.Contains(t, rec.RecentForm, "10")
	assert.InDelta(t, 1.3, rec.RecentForm["10"]["margin"], 0.001)
	// away team has no completed games on file; it is simply absent
	assert.NotContains(t, rec.RecentForm, "2")
}

func TestBuildTeamFilter(t *testing.T) {
	stats := mlbSlate()
	stats.stubs = append(stats.stubs, models.GameStub{
		GameID:    "401700002",
		League:    models.LeagueMLB,
		StartTime: stats.stubs[0].StartTime.Add(time.Hour),
		Home:      models.TeamRef{SourceID: "12", CanonicalName: "Los Angeles Dodgers", Abbreviation: "LAD", League: models.LeagueMLB},
		Away:      models.TeamRef{SourceID: "26", CanonicalName: "San Francisco Giants", Abbreviation: "SF", League: models.LeagueMLB},
	})

	b := New(stats, mlbOdds(), testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "nyy")
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "401700001", result.Records[0].GameID)
}

func TestBuildRecordsSortedByStartTime(t *testing.T) {
	stats := mlbSlate()
	early := stats.stubs[0].StartTime.Add(-2 * time.Hour)
	stats.stubs = append(stats.stubs, models.GameStub{
		GameID:    "401700002",
		League:    models.LeagueMLB,
		StartTime: early,
		Home:      models.TeamRef{SourceID: "12", CanonicalName: "Los Angeles Dodgers", League: models.LeagueMLB},
		Away:      models.TeamRef{SourceID: "26", CanonicalName: "San Francisco Giants", League: models.LeagueMLB},
	})

	b := New(stats, mlbOdds(), testResolver(t), logrus.New())
	result, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "401700002", result.Records[0].GameID)
	assert.Equal(t, "401700001", result.Records[1].GameID)
}

func TestBuildIdempotentForSameSnapshots(t *testing.T) {
	stats := mlbSlate()
	odds := mlbOdds()
	b := New(stats, odds, testResolver(t), logrus.New())

	first, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)
	second, err := b.Build(context.Background(), models.LeagueMLB, time.Now(), "")
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Gaps, second.Gaps)
	assert.Equal(t, first.Status, second.Status)
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(mlbSlate(), mlbOdds(), testResolver(t), logrus.New())
	_, err := b.Build(ctx, models.LeagueMLB, time.Now(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
