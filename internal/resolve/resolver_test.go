package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/oddsalign/internal/models"
)

func writeAliasFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testAliases(t *testing.T) *AliasTable {
	t.Helper()
	path := writeAliasFile(t, `
leagues:
  nba:
    teams:
      Los Angeles Lakers: [LAL, LA Lakers, Lakers]
      Golden State Warriors: [GSW, GS Warriors]
    players:
      Nikola Jokic: ["N. Jokic"]
  mlb:
    teams:
      Boston Red Sox: [BOS, Red Sox]
      New York Yankees: [NYY, Yankees]
`)
	table, err := LoadAliasTable(path)
	require.NoError(t, err)
	return table
}

func nbaTeams() []Candidate {
	return []Candidate{
		{ID: "13", Name: "Los Angeles Lakers"},
		{ID: "9", Name: "Golden State Warriors"},
		{ID: "20", Name: "Miami Heat"},
	}
}

func TestResolveTeamExact(t *testing.T) {
	r := NewResolver(testAliases(t))

	tests := []struct {
		name  string
		input string
	}{
		{"identical", "Los Angeles Lakers"},
		{"case differs", "los angeles LAKERS"},
		{"extra whitespace", "  Los Angeles  Lakers "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := r.ResolveTeam(models.LeagueNBA, tt.input, nbaTeams())
			require.True(t, m.Resolved())
			assert.Equal(t, StatusExact, m.Status)
			assert.Equal(t, "13", m.ID)
			assert.Equal(t, 1.0, m.Score)
		})
	}
}

func TestResolveTeamAlias(t *testing.T) {
	r := NewResolver(testAliases(t))

	// Abbreviations must resolve through the alias table, never fuzzily
	m := r.ResolveTeam(models.LeagueNBA, "LAL", nbaTeams())
	require.True(t, m.Resolved())
	assert.Equal(t, StatusAlias, m.Status)
	assert.Equal(t, "13", m.ID)
	assert.Equal(t, "Los Angeles Lakers", m.Name)
}

func TestResolveTeamAliasScopedByLeague(t *testing.T) {
	r := NewResolver(testAliases(t))

	// "BOS" is an MLB alias; it must not resolve in the NBA scope
	m := r.ResolveTeam(models.LeagueNBA, "BOS", nbaTeams())
	assert.False(t, m.Resolved())
	assert.Equal(t, StatusUnresolved, m.Status)
}

func TestResolveTeamFuzzy(t *testing.T) {
	r := NewResolver(testAliases(t))

	m := r.ResolveTeam(models.LeagueNBA, "Golden St Warriors", nbaTeams())
	require.True(t, m.Resolved())
	assert.Equal(t, StatusFuzzy, m.Status)
	assert.Equal(t, "9", m.ID)
	assert.GreaterOrEqual(t, m.Score, DefaultThreshold)
}

func TestResolveTeamUnresolved(t *testing.T) {
	r := NewResolver(testAliases(t))

	m := r.ResolveTeam(models.LeagueNBA, "Springfield Isotopes", nbaTeams())
	require.False(t, m.Resolved())
	assert.Equal(t, StatusUnresolved, m.Status)
	assert.Empty(t, m.ID)
	// The nearest miss is still reported for the gap log
	assert.NotEmpty(t, m.BestCandidate)
	assert.Less(t, m.BestScore, DefaultThreshold)
}

func TestResolvePlayerScopedToRoster(t *testing.T) {
	r := NewResolver(testAliases(t))
	roster := []Candidate{
		{ID: "p1", Name: "Nikola Jokic"},
		{ID: "p2", Name: "Jamal Murray"},
	}

	m := r.ResolvePlayer(models.LeagueNBA, "N. Jokic", roster)
	require.True(t, m.Resolved())
	assert.Equal(t, StatusAlias, m.Status)
	assert.Equal(t, "p1", m.ID)

	m = r.ResolvePlayer(models.LeagueNBA, "Jammal Murray", roster)
	require.True(t, m.Resolved())
	assert.Equal(t, StatusFuzzy, m.Status)
	assert.Equal(t, "p2", m.ID)
}

func TestAliasHitRequiresCandidate(t *testing.T) {
	r := NewResolver(testAliases(t))

	// Alias maps LAL -> Los Angeles Lakers, but the candidate set does not
	// contain them (e.g. they do not play today), so the match must fail
	// rather than invent a ref outside the slate.
	m := r.ResolveTeam(models.LeagueNBA, "LAL", []Candidate{{ID: "20", Name: "Miami Heat"}})
	assert.False(t, m.Resolved())
}

func TestLoadAliasTableMissingFile(t *testing.T) {
	table, err := LoadAliasTable(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	_, ok := table.Team(models.LeagueNBA, "LAL")
	assert.False(t, ok)
}

func TestLoadAliasTableUnknownLeague(t *testing.T) {
	path := writeAliasFile(t, "leagues:\n  curling:\n    teams:\n      A: [B]\n")
	_, err := LoadAliasTable(path)
	assert.Error(t, err)
}

func TestSetThreshold(t *testing.T) {
	r := NewResolver(testAliases(t))
	r.SetThreshold(0.99)

	// A near-miss accepted at 0.85 is rejected at 0.99
	m := r.ResolveTeam(models.LeagueNBA, "Golden St Warriors", nbaTeams())
	assert.False(t, m.Resolved())
}
