package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/oddsalign/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ODDS_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "test-key", cfg.OddsAPIKey)
	assert.Equal(t, "oddsalign.db", cfg.DBPath)
	assert.False(t, cfg.PollingEnabled)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, []models.League{models.LeagueNBA, models.LeagueNFL, models.LeagueMLB}, cfg.Leagues)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("ODDS_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ODDS_API_KEY")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ODDS_API_KEY", "test-key")
	t.Setenv("PORT", "9090")
	t.Setenv("POLLING_ENABLED", "true")
	t.Setenv("POLL_INTERVAL", "2m")
	t.Setenv("LEAGUES", "mlb")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.PollingEnabled)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, []models.League{models.LeagueMLB}, cfg.Leagues)
}

func TestLoadRejectsUnknownLeague(t *testing.T) {
	t.Setenv("ODDS_API_KEY", "test-key")
	t.Setenv("LEAGUES", "nba,cricket")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEAGUES")
}
