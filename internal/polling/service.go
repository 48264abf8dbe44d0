package polling

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/oddsalign/internal/alerts"
	"github.com/joshuakim/oddsalign/internal/build"
	"github.com/joshuakim/oddsalign/internal/database"
	"github.com/joshuakim/oddsalign/internal/metrics"
	"github.com/joshuakim/oddsalign/internal/models"
	"github.com/joshuakim/oddsalign/internal/store"
	"github.com/joshuakim/oddsalign/internal/websocket"
)

// Config holds polling service configuration
type Config struct {
	// Enabled controls whether polling is active
	Enabled bool

	// Interval is the time between build cycles
	Interval time.Duration

	// Leagues to build
	Leagues []models.League

	// MaxRetries before giving up on a build cycle
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff
	RetryBaseDelay time.Duration

	// MaxConsecutiveErrors before entering recovery mode
	MaxConsecutiveErrors int

	// RecoveryInterval is the interval when in recovery mode
	RecoveryInterval time.Duration
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:              false, // Off by default
		Interval:             60 * time.Second,
		Leagues:              []models.League{models.LeagueNBA, models.LeagueNFL, models.LeagueMLB},
		MaxRetries:           3,
		RetryBaseDelay:       2 * time.Second,
		MaxConsecutiveErrors: 5,
		RecoveryInterval:     5 * time.Minute,
	}
}

// AlertCallback is called when value alerts are detected
type AlertCallback func(alerts []alerts.ValueAlert)

// Service periodically rebuilds game records for each league
type Service struct {
	config  Config
	builder *build.Builder
	store   *store.Store
	db      *database.DB
	hub     *websocket.Hub
	metrics *metrics.Metrics
	log     *logrus.Logger

	// Alert detection
	alertDetector *alerts.Detector
	alertCallback AlertCallback

	// State
	mu              sync.RWMutex
	enabled         bool
	inRecoveryMode  bool
	lastData        map[models.League]string // Hash of last data for change detection
	lastSuccessTime map[models.League]time.Time

	// Control channels
	stopCh   chan struct{}
	toggleCh chan bool
}

// NewService creates a new polling service
func NewService(config Config, builder *build.Builder, st *store.Store, db *database.DB, hub *websocket.Hub, m *metrics.Metrics, log *logrus.Logger) *Service {
	return &Service{
		config:          config,
		builder:         builder,
		store:           st,
		db:              db,
		hub:             hub,
		metrics:         m,
		log:             log,
		enabled:         config.Enabled,
		lastData:        make(map[models.League]string),
		lastSuccessTime: make(map[models.League]time.Time),
		stopCh:          make(chan struct{}),
		toggleCh:        make(chan bool, 1),
	}
}

// SetAlertDetector sets the alert detector for value detection during polling
func (s *Service) SetAlertDetector(detector *alerts.Detector, callback AlertCallback) {
	s.alertDetector = detector
	s.alertCallback = callback
}

// Start begins the polling loop
func (s *Service) Start(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"enabled":  s.enabled,
		"interval": s.config.Interval,
	}).Info("polling service starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Do an immediate cycle if enabled
	if s.enabled {
		s.buildAllLeagues(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("polling service stopped (context cancelled)")
			return

		case <-s.stopCh:
			s.log.Info("polling service stopped")
			return

		case enabled := <-s.toggleCh:
			s.handleToggle(ctx, enabled)

		case <-ticker.C:
			if s.IsEnabled() {
				s.buildAllLeagues(ctx)
				// Adjust ticker if in recovery mode
				s.adjustTickerIfNeeded(ticker)
			}
		}
	}
}

// Stop stops the polling service
func (s *Service) Stop() {
	close(s.stopCh)
}

// Enable turns polling on
func (s *Service) Enable() {
	select {
	case s.toggleCh <- true:
	default:
		// Channel full, toggle already pending
	}
}

// Disable turns polling off
func (s *Service) Disable() {
	select {
	case s.toggleCh <- false:
	default:
	}
}

// Toggle switches the polling state
func (s *Service) Toggle() {
	s.mu.RLock()
	currentState := s.enabled
	s.mu.RUnlock()

	select {
	case s.toggleCh <- !currentState:
	default:
	}
}

// IsEnabled returns whether polling is currently enabled
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// IsInRecoveryMode returns whether the service is in recovery mode
func (s *Service) IsInRecoveryMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inRecoveryMode
}

// GetStatus returns current service status
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastSuccess := make(map[string]string)
	for league, t := range s.lastSuccessTime {
		if !t.IsZero() {
			lastSuccess[string(league)] = time.Since(t).Round(time.Second).String() + " ago"
		}
	}

	return map[string]interface{}{
		"enabled":       s.enabled,
		"recovery_mode": s.inRecoveryMode,
		"interval":      s.config.Interval.String(),
		"leagues":       s.config.Leagues,
		"last_success":  lastSuccess,
	}
}

func (s *Service) handleToggle(ctx context.Context, enabled bool) {
	s.mu.Lock()
	wasEnabled := s.enabled
	s.enabled = enabled
	s.mu.Unlock()

	if enabled && !wasEnabled {
		s.log.Info("polling service enabled")
		go s.buildAllLeagues(ctx)
	} else if !enabled && wasEnabled {
		s.log.Info("polling service disabled")
	}
}

func (s *Service) adjustTickerIfNeeded(ticker *time.Ticker) {
	s.mu.RLock()
	inRecovery := s.inRecoveryMode
	s.mu.RUnlock()

	if inRecovery {
		ticker.Reset(s.config.RecoveryInterval)
	} else {
		ticker.Reset(s.config.Interval)
	}
}

func (s *Service) buildAllLeagues(ctx context.Context) {
	for _, league := range s.config.Leagues {
		s.buildLeague(ctx, league)
	}
}

func (s *Service) buildLeague(ctx context.Context, league models.League) {
	start := s.metrics.RecordBuildStart()

	result, err := s.buildWithRetry(ctx, league)
	if err != nil {
		s.metrics.RecordBuildError(start, err)
		s.handleBuildError()
		return
	}

	s.metrics.RecordBuildSuccess(start, string(league), len(result.Records), len(result.Gaps), result.Status == models.BuildDegraded)
	s.metrics.RecordAPIRequest()
	s.handleBuildSuccess(league)
	s.store.Set(league, result)
	s.recordGaps(result)
	s.recordResolutions(result)

	// Check for changes
	if s.hasChanges(league, result) {
		s.log.WithField("league", league).Info("changes detected, broadcasting to clients")
		s.metrics.RecordChange(string(league))
		s.hub.Broadcast(league, result)
		s.updateCache(league, result)

		// Check for value alerts on changed data
		if s.alertDetector != nil && s.alertCallback != nil {
			go s.checkValueAlerts(league, result)
		}
	}
}

// recordResolutions feeds the resolve-rate metric. Gaps are already
// counted on the unresolved side by RecordBuildSuccess.
func (s *Service) recordResolutions(result *models.BuildResult) {
	for _, rec := range result.Records {
		if !rec.MissingOdds {
			// both team names matched for this record
			s.metrics.RecordResolution(true)
			s.metrics.RecordResolution(true)
		}
		for range rec.PlayerProps {
			s.metrics.RecordResolution(true)
		}
	}
}

// recordGaps persists unresolved names for later alias curation
func (s *Service) recordGaps(result *models.BuildResult) {
	if s.db == nil {
		return
	}
	for _, gap := range result.Gaps {
		err := s.db.RecordUnresolvedName(string(gap.League), gap.Kind, gap.Input, gap.BestCandidate, gap.BestScore)
		if err != nil {
			s.log.WithError(err).WithField("input", gap.Input).Error("failed to record unresolved name")
		}
	}
}

// checkValueAlerts scans records for value alerts and notifies via callback
func (s *Service) checkValueAlerts(league models.League, result *models.BuildResult) {
	detectedAlerts := s.alertDetector.CheckResult(result)
	if len(detectedAlerts) > 0 {
		s.log.WithFields(logrus.Fields{
			"league": league,
			"count":  len(detectedAlerts),
		}).Info("value alerts found")
		s.alertCallback(detectedAlerts)
	}
}

func (s *Service) buildWithRetry(ctx context.Context, league models.League) (*models.BuildResult, error) {
	var lastErr error

	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, 4s, 8s...
			delay := s.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			s.log.WithFields(logrus.Fields{
				"attempt": attempt,
				"league":  league,
				"delay":   delay,
			}).Warn("retrying build")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := s.builder.Build(ctx, league, time.Now(), "")
		if err == nil {
			return result, nil
		}

		lastErr = err
	}

	return nil, fmt.Errorf("all %d retries failed: %w", s.config.MaxRetries, lastErr)
}

func (s *Service) handleBuildError() {
	consecutiveErrors := s.metrics.ConsecutiveErrors.Load()

	if consecutiveErrors >= int64(s.config.MaxConsecutiveErrors) {
		s.mu.Lock()
		if !s.inRecoveryMode {
			s.inRecoveryMode = true
			s.log.WithField("consecutive_errors", consecutiveErrors).Warn("entering recovery mode")
			s.hub.BroadcastStatus("builds_degraded")
		}
		s.mu.Unlock()
	}
}

func (s *Service) handleBuildSuccess(league models.League) {
	s.mu.Lock()
	s.lastSuccessTime[league] = time.Now()

	// Exit recovery mode on success
	if s.inRecoveryMode {
		s.inRecoveryMode = false
		s.log.Info("exiting recovery mode, build successful")
		s.hub.BroadcastStatus("builds_healthy")
	}
	s.mu.Unlock()
}

// hasChanges checks if the data has changed since the last cycle
func (s *Service) hasChanges(league models.League, result *models.BuildResult) bool {
	newHash := s.hashResult(result)

	s.mu.RLock()
	oldHash := s.lastData[league]
	s.mu.RUnlock()

	return newHash != oldHash
}

// updateCache stores the current data hash
func (s *Service) updateCache(league models.League, result *models.BuildResult) {
	s.mu.Lock()
	s.lastData[league] = s.hashResult(result)
	s.mu.Unlock()
}

// hashResult creates a hash of the records for change detection. Only
// the fields that matter for line comparison are included, so a new
// GeneratedAt timestamp alone does not count as a change.
func (s *Service) hashResult(result *models.BuildResult) string {
	type recordSnap struct {
		GameID      string                         `json:"game_id"`
		Markets     []models.MarketBest            `json:"markets"`
		MissingOdds bool                           `json:"missing_odds"`
		Props       map[string][]models.MarketBest `json:"props,omitempty"`
	}

	snapshots := make([]recordSnap, len(result.Records))
	for i, rec := range result.Records {
		snap := recordSnap{
			GameID:      rec.GameID,
			Markets:     rec.Markets,
			MissingOdds: rec.MissingOdds,
		}
		if len(rec.PlayerProps) > 0 {
			// json.Marshal sorts map keys, so the hash stays stable
			snap.Props = make(map[string][]models.MarketBest, len(rec.PlayerProps))
			for id, pp := range rec.PlayerProps {
				snap.Props[id] = pp.Props
			}
		}
		snapshots[i] = snap
	}

	data, _ := json.Marshal(snapshots)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// ForceRefresh triggers an immediate build regardless of timing
func (s *Service) ForceRefresh(ctx context.Context, league models.League) error {
	s.log.WithField("league", league).Info("force refresh requested")
	start := s.metrics.RecordBuildStart()

	result, err := s.buildWithRetry(ctx, league)
	if err != nil {
		s.metrics.RecordBuildError(start, err)
		return err
	}

	s.metrics.RecordBuildSuccess(start, string(league), len(result.Records), len(result.Gaps), result.Status == models.BuildDegraded)
	s.metrics.RecordAPIRequest()
	s.handleBuildSuccess(league)
	s.store.Set(league, result)
	s.recordGaps(result)
	s.recordResolutions(result)

	// Always broadcast on force refresh
	s.metrics.RecordChange(string(league))
	s.hub.Broadcast(league, result)
	s.updateCache(league, result)

	return nil
}
