package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joshuakim/oddsalign/internal/models"
)

// Config holds all server configuration, loaded from the environment
type Config struct {
	// Server
	Port string

	// Sources
	OddsAPIKey string

	// Storage
	DBPath    string
	AliasPath string

	// Polling
	PollingEnabled bool
	PollInterval   time.Duration
	Leagues        []models.League

	// Notifications
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Logging
	LogLevel string
}

// Load reads configuration from .env (if present) and the environment
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set env vars directly
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		OddsAPIKey:      os.Getenv("ODDS_API_KEY"),
		DBPath:          getEnv("DB_PATH", "oddsalign.db"),
		AliasPath:       getEnv("ALIAS_PATH", "aliases.yaml"),
		PollingEnabled:  getEnvBool("POLLING_ENABLED", false),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 60*time.Second),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@example.com"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.OddsAPIKey == "" {
		return nil, fmt.Errorf("ODDS_API_KEY environment variable is required")
	}

	leagues, err := parseLeagues(getEnv("LEAGUES", "nba,nfl,mlb"))
	if err != nil {
		return nil, err
	}
	cfg.Leagues = leagues

	return cfg, nil
}

func parseLeagues(raw string) ([]models.League, error) {
	var leagues []models.League
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		league, err := models.ParseLeague(part)
		if err != nil {
			return nil, fmt.Errorf("LEAGUES: %w", err)
		}
		leagues = append(leagues, league)
	}
	if len(leagues) == 0 {
		return nil, fmt.Errorf("LEAGUES must name at least one league")
	}
	return leagues, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
