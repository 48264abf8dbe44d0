package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLeague(t *testing.T) {
	league, err := ParseLeague("nba")
	require.NoError(t, err)
	assert.Equal(t, LeagueNBA, league)

	_, err = ParseLeague("cricket")
	assert.Error(t, err)

	// League strings are lowercase by convention
	_, err = ParseLeague("NBA")
	assert.Error(t, err)
}

func TestLeaguePaths(t *testing.T) {
	assert.Equal(t, "basketball/nba", LeagueNBA.SportPath())
	assert.Equal(t, "americanfootball_nfl", LeagueNFL.OddsKey())
	assert.Equal(t, "baseball_mlb", LeagueMLB.OddsKey())
	assert.Empty(t, League("cricket").SportPath())
}
