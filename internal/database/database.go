package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes schema
func New(dbPath string, log *logrus.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	log.WithField("path", dbPath).Info("database initialized")
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	-- Notification preferences (single user for now)
	CREATE TABLE IF NOT EXISTS preferences (
		id INTEGER PRIMARY KEY CHECK (id = 1),

		-- Channel settings
		enable_websocket BOOLEAN DEFAULT true,
		enable_push BOOLEAN DEFAULT false,
		push_subscription TEXT,

		-- Alert thresholds per market
		threshold_total REAL DEFAULT 6.0,
		threshold_spread REAL DEFAULT 3.0,

		-- Filters
		leagues TEXT DEFAULT 'nba,nfl,mlb',

		-- Quiet hours
		quiet_start TEXT DEFAULT '23:00',
		quiet_end TEXT DEFAULT '08:00',
		timezone TEXT DEFAULT 'America/New_York',

		-- Rate limits (per hour)
		rate_limit_push INTEGER DEFAULT 20,

		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Insert default preferences if not exists
	INSERT OR IGNORE INTO preferences (id) VALUES (1);

	-- Alert history for deduplication
	CREATE TABLE IF NOT EXISTS alert_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,

		-- Alert identification
		game_id TEXT NOT NULL,
		market TEXT NOT NULL,
		side TEXT NOT NULL,

		-- Alert details
		line_value REAL NOT NULL,
		expected_value REAL NOT NULL,
		difference REAL NOT NULL,
		confidence TEXT NOT NULL,

		-- Timing
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		cooldown_until TIMESTAMP NOT NULL,

		-- Notification tracking
		notified_websocket BOOLEAN DEFAULT false,
		notified_push BOOLEAN DEFAULT false,

		UNIQUE(game_id, market, side)
	);

	-- Names that failed resolution, kept for alias table curation
	CREATE TABLE IF NOT EXISTS unresolved_names (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		league TEXT NOT NULL,
		kind TEXT NOT NULL,
		input TEXT NOT NULL,
		best_candidate TEXT,
		best_score REAL,
		seen_count INTEGER DEFAULT 1,
		first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(league, kind, input)
	);

	-- Rate limit tracking
	CREATE TABLE IF NOT EXISTS rate_limits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		window_start TIMESTAMP NOT NULL,
		count INTEGER DEFAULT 0,
		UNIQUE(channel, window_start)
	);

	-- Create indexes
	CREATE INDEX IF NOT EXISTS idx_alert_history_lookup
		ON alert_history(game_id, market, side);
	CREATE INDEX IF NOT EXISTS idx_alert_history_cooldown
		ON alert_history(cooldown_until);
	CREATE INDEX IF NOT EXISTS idx_unresolved_last_seen
		ON unresolved_names(last_seen);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Preferences represents user notification preferences
type Preferences struct {
	EnableWebsocket  bool   `json:"enable_websocket"`
	EnablePush       bool   `json:"enable_push"`
	PushSubscription string `json:"push_subscription,omitempty"`

	// Per-market thresholds
	ThresholdTotal  float64 `json:"threshold_total"`
	ThresholdSpread float64 `json:"threshold_spread"`

	// Filters
	Leagues []string `json:"leagues"`

	// Quiet hours
	QuietStart string `json:"quiet_start"`
	QuietEnd   string `json:"quiet_end"`
	Timezone   string `json:"timezone"`

	// Rate limits
	RateLimitPush int `json:"rate_limit_push"`

	UpdatedAt time.Time `json:"updated_at"`
}

// GetPreferences retrieves user preferences
func (db *DB) GetPreferences() (*Preferences, error) {
	row := db.conn.QueryRow(`
		SELECT
			enable_websocket, enable_push, push_subscription,
			threshold_total, threshold_spread,
			leagues, quiet_start, quiet_end, timezone,
			rate_limit_push, updated_at
		FROM preferences WHERE id = 1
	`)

	var p Preferences
	var leaguesStr string
	var pushSub sql.NullString

	err := row.Scan(
		&p.EnableWebsocket, &p.EnablePush, &pushSub,
		&p.ThresholdTotal, &p.ThresholdSpread,
		&leaguesStr, &p.QuietStart, &p.QuietEnd, &p.Timezone,
		&p.RateLimitPush, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if pushSub.Valid {
		p.PushSubscription = pushSub.String
	}

	for _, l := range strings.Split(leaguesStr, ",") {
		if l = strings.TrimSpace(l); l != "" {
			p.Leagues = append(p.Leagues, l)
		}
	}

	return &p, nil
}

// UpdatePreferences updates user preferences
func (db *DB) UpdatePreferences(p *Preferences) error {
	_, err := db.conn.Exec(`
		UPDATE preferences SET
			enable_websocket = ?,
			enable_push = ?,
			push_subscription = ?,
			threshold_total = ?,
			threshold_spread = ?,
			leagues = ?,
			quiet_start = ?,
			quiet_end = ?,
			timezone = ?,
			rate_limit_push = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`,
		p.EnableWebsocket, p.EnablePush, p.PushSubscription,
		p.ThresholdTotal, p.ThresholdSpread,
		strings.Join(p.Leagues, ","), p.QuietStart, p.QuietEnd, p.Timezone,
		p.RateLimitPush,
	)
	return err
}

// SetPushSubscription updates the push subscription
func (db *DB) SetPushSubscription(subscription string) error {
	_, err := db.conn.Exec(`
		UPDATE preferences SET
			push_subscription = ?,
			enable_push = true,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, subscription)
	return err
}

// Unsubscribe disables all notifications
func (db *DB) Unsubscribe() error {
	_, err := db.conn.Exec(`
		UPDATE preferences SET
			enable_websocket = false,
			enable_push = false,
			push_subscription = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`)
	return err
}

// AlertHistory represents a historical alert record
type AlertHistory struct {
	ID            int64     `json:"id"`
	GameID        string    `json:"game_id"`
	Market        string    `json:"market"`
	Side          string    `json:"side"`
	LineValue     float64   `json:"line_value"`
	ExpectedValue float64   `json:"expected_value"`
	Difference    float64   `json:"difference"`
	Confidence    string    `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
	CooldownUntil time.Time `json:"cooldown_until"`
}

// GetAlertHistory retrieves alert history for deduplication check
func (db *DB) GetAlertHistory(gameID, market, side string) (*AlertHistory, error) {
	row := db.conn.QueryRow(`
		SELECT id, game_id, market, side,
			   line_value, expected_value, difference, confidence,
			   created_at, cooldown_until
		FROM alert_history
		WHERE game_id = ? AND market = ? AND side = ?
	`, gameID, market, side)

	var h AlertHistory
	err := row.Scan(
		&h.ID, &h.GameID, &h.Market, &h.Side,
		&h.LineValue, &h.ExpectedValue, &h.Difference, &h.Confidence,
		&h.CreatedAt, &h.CooldownUntil,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// SaveAlertHistory saves or updates alert history
func (db *DB) SaveAlertHistory(h *AlertHistory) error {
	_, err := db.conn.Exec(`
		INSERT INTO alert_history
			(game_id, market, side,
			 line_value, expected_value, difference, confidence, cooldown_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, market, side)
		DO UPDATE SET
			line_value = excluded.line_value,
			expected_value = excluded.expected_value,
			difference = excluded.difference,
			confidence = excluded.confidence,
			cooldown_until = excluded.cooldown_until,
			created_at = CURRENT_TIMESTAMP
	`, h.GameID, h.Market, h.Side,
		h.LineValue, h.ExpectedValue, h.Difference, h.Confidence, h.CooldownUntil)
	return err
}

// CleanupExpiredHistory removes old alert history
func (db *DB) CleanupExpiredHistory() error {
	_, err := db.conn.Exec(`
		DELETE FROM alert_history
		WHERE cooldown_until < datetime('now', '-24 hours')
	`)
	return err
}

// UnresolvedName represents a logged resolution gap
type UnresolvedName struct {
	ID            int64     `json:"id"`
	League        string    `json:"league"`
	Kind          string    `json:"kind"`
	Input         string    `json:"input"`
	BestCandidate string    `json:"best_candidate,omitempty"`
	BestScore     float64   `json:"best_score"`
	SeenCount     int       `json:"seen_count"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

// RecordUnresolvedName upserts a resolution gap, bumping its seen count
func (db *DB) RecordUnresolvedName(league, kind, input, bestCandidate string, bestScore float64) error {
	_, err := db.conn.Exec(`
		INSERT INTO unresolved_names (league, kind, input, best_candidate, best_score)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(league, kind, input)
		DO UPDATE SET
			best_candidate = excluded.best_candidate,
			best_score = excluded.best_score,
			seen_count = seen_count + 1,
			last_seen = CURRENT_TIMESTAMP
	`, league, kind, input, bestCandidate, bestScore)
	return err
}

// GetUnresolvedNames returns logged gaps, most recently seen first
func (db *DB) GetUnresolvedNames(limit int) ([]UnresolvedName, error) {
	rows, err := db.conn.Query(`
		SELECT id, league, kind, input, COALESCE(best_candidate, ''), COALESCE(best_score, 0),
			   seen_count, first_seen, last_seen
		FROM unresolved_names
		ORDER BY last_seen DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []UnresolvedName
	for rows.Next() {
		var n UnresolvedName
		if err := rows.Scan(&n.ID, &n.League, &n.Kind, &n.Input, &n.BestCandidate, &n.BestScore,
			&n.SeenCount, &n.FirstSeen, &n.LastSeen); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ClearUnresolvedName removes a gap once an alias has been added for it
func (db *DB) ClearUnresolvedName(league, kind, input string) error {
	_, err := db.conn.Exec(`
		DELETE FROM unresolved_names
		WHERE league = ? AND kind = ? AND input = ?
	`, league, kind, input)
	return err
}

// CheckRateLimit checks if we can send on a channel
func (db *DB) CheckRateLimit(channel string, limit int) (bool, int, error) {
	windowStart := time.Now().Truncate(time.Hour)

	row := db.conn.QueryRow(`
		SELECT count FROM rate_limits
		WHERE channel = ? AND window_start = ?
	`, channel, windowStart)

	var count int
	err := row.Scan(&count)
	if err == sql.ErrNoRows {
		count = 0
	} else if err != nil {
		return false, 0, err
	}

	remaining := limit - count
	return count < limit, remaining, nil
}

// IncrementRateLimit increments the rate limit counter
func (db *DB) IncrementRateLimit(channel string) error {
	windowStart := time.Now().Truncate(time.Hour)

	_, err := db.conn.Exec(`
		INSERT INTO rate_limits (channel, window_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT(channel, window_start)
		DO UPDATE SET count = count + 1
	`, channel, windowStart)
	return err
}

// CleanupOldRateLimits removes old rate limit records
func (db *DB) CleanupOldRateLimits() error {
	_, err := db.conn.Exec(`
		DELETE FROM rate_limits
		WHERE window_start < datetime('now', '-2 hours')
	`)
	return err
}
