package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"github.com/joshuakim/oddsalign/internal/alerts"
	"github.com/joshuakim/oddsalign/internal/database"
	"github.com/joshuakim/oddsalign/internal/websocket"
)

// Config holds notification service configuration
type Config struct {
	// VAPID keys for Web Push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string // mailto: or https:// URL

	// Batching
	BatchInterval time.Duration

	// Enable/disable
	Enabled bool
}

// DefaultConfig returns default notification configuration
func DefaultConfig() Config {
	return Config{
		BatchInterval: 60 * time.Second,
		Enabled:       true,
	}
}

// Service handles notification dispatch
type Service struct {
	config Config
	db     *database.DB
	hub    *websocket.Hub
	log    *logrus.Logger

	// Pending alerts for batching
	mu            sync.Mutex
	pendingAlerts []alerts.ValueAlert

	// Control
	stopCh chan struct{}
}

// NewService creates a new notification service
func NewService(config Config, db *database.DB, hub *websocket.Hub, log *logrus.Logger) *Service {
	return &Service{
		config:        config,
		db:            db,
		hub:           hub,
		log:           log,
		pendingAlerts: make([]alerts.ValueAlert, 0),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the batch processing loop
func (s *Service) Start(ctx context.Context) {
	if s.config.BatchInterval <= 0 {
		s.config.BatchInterval = 60 * time.Second
	}

	ticker := time.NewTicker(s.config.BatchInterval)
	defer ticker.Stop()

	s.log.WithField("batch_interval", s.config.BatchInterval).Info("notification service started")

	for {
		select {
		case <-ctx.Done():
			s.processBatch() // Process any remaining alerts
			s.log.Info("notification service stopped")
			return
		case <-s.stopCh:
			s.processBatch()
			return
		case <-ticker.C:
			s.processBatch()
		}
	}
}

// Stop stops the notification service
func (s *Service) Stop() {
	close(s.stopCh)
}

// QueueAlert adds an alert to the pending batch
func (s *Service) QueueAlert(alert alerts.ValueAlert) {
	if !s.config.Enabled {
		return
	}

	s.mu.Lock()
	s.pendingAlerts = append(s.pendingAlerts, alert)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"game_id": alert.GameID,
		"market":  alert.Market,
	}).Debug("alert queued")

	// Send immediately via WebSocket
	s.sendWebSocket(alert)
}

// QueueAlerts adds multiple alerts to the pending batch
func (s *Service) QueueAlerts(alertsList []alerts.ValueAlert) {
	for _, alert := range alertsList {
		s.QueueAlert(alert)
	}
}

// processBatch processes pending alerts and sends push notification
func (s *Service) processBatch() {
	s.mu.Lock()
	if len(s.pendingAlerts) == 0 {
		s.mu.Unlock()
		return
	}

	// Take the pending alerts
	batch := s.pendingAlerts
	s.pendingAlerts = make([]alerts.ValueAlert, 0)
	s.mu.Unlock()

	// Check if we're in quiet hours
	if s.isQuietHours() {
		s.log.WithField("count", len(batch)).Debug("quiet hours, skipping push")
		return
	}

	// Check rate limit
	if !s.checkRateLimit("push") {
		s.log.WithField("count", len(batch)).Warn("rate limit exceeded, skipping push")
		return
	}

	// Send push notification
	if err := s.sendPush(batch); err != nil {
		s.log.WithError(err).Error("failed to send push notification")
	}
}

// sendWebSocket sends an alert via WebSocket
func (s *Service) sendWebSocket(alert alerts.ValueAlert) {
	if s.hub == nil {
		return
	}

	prefs, err := s.db.GetPreferences()
	if err != nil || !prefs.EnableWebsocket {
		return
	}

	// Since we have a single user, broadcast to all connected clients
	alertData, _ := json.Marshal(alert)
	s.hub.BroadcastStatus(fmt.Sprintf("value_alert:%s", string(alertData)))
}

// sendPush sends a batched push notification
func (s *Service) sendPush(batch []alerts.ValueAlert) error {
	if s.config.VAPIDPrivateKey == "" || s.config.VAPIDPublicKey == "" {
		s.log.Debug("VAPID keys not configured, skipping push")
		return nil
	}

	prefs, err := s.db.GetPreferences()
	if err != nil {
		return fmt.Errorf("failed to get preferences: %w", err)
	}

	if !prefs.EnablePush || prefs.PushSubscription == "" {
		return nil
	}

	// Create notification payload
	payload := PushPayload{
		Title: s.formatTitle(batch),
		Body:  s.formatBody(batch),
		Icon:  "/icon-192.png",
		Badge: "/badge-72.png",
		Tag:   "value-alerts",
		Data: PushData{
			URL:    "/",
			Alerts: batch,
			Count:  len(batch),
		},
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Parse subscription
	sub := &webpush.Subscription{}
	if err := json.Unmarshal([]byte(prefs.PushSubscription), sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	// Send push notification
	resp, err := webpush.SendNotification(payloadJSON, sub, &webpush.Options{
		Subscriber:      s.config.VAPIDSubject,
		VAPIDPublicKey:  s.config.VAPIDPublicKey,
		VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		TTL:             3600, // 1 hour
	})
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Subscription might be invalid
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			s.log.Warn("push subscription expired, disabling")
			s.db.UpdatePreferences(&database.Preferences{
				EnablePush:       false,
				PushSubscription: "",
			})
		}
		return fmt.Errorf("push failed with status %d", resp.StatusCode)
	}

	// Increment rate limit
	s.db.IncrementRateLimit("push")

	s.log.WithField("count", len(batch)).Info("push notification sent")
	return nil
}

// formatTitle creates the push notification title
func (s *Service) formatTitle(batch []alerts.ValueAlert) string {
	if len(batch) == 1 {
		a := batch[0]
		return fmt.Sprintf("Value Alert: %s @ %s %s", a.AwayTeam, a.HomeTeam, a.Market)
	}

	highCount := 0
	for _, a := range batch {
		if a.Confidence == alerts.ConfidenceHigh {
			highCount++
		}
	}

	if highCount > 0 {
		return fmt.Sprintf("%d Value Alerts (%d High Confidence)", len(batch), highCount)
	}
	return fmt.Sprintf("%d Value Alerts", len(batch))
}

// formatBody creates the push notification body
func (s *Service) formatBody(batch []alerts.ValueAlert) string {
	if len(batch) == 1 {
		a := batch[0]
		return fmt.Sprintf("%s %.1f (expected %.1f, value on %s). Best: %+d @ %s",
			a.Side, a.Line, a.Expected, a.Direction, a.BestPrice, a.Bookmaker)
	}

	// Summary for multiple alerts
	body := ""
	for i, a := range batch {
		if i >= 3 {
			break
		}
		if i > 0 {
			body += " | "
		}
		body += fmt.Sprintf("%s @ %s %s %.1f (%s)", a.AwayTeam, a.HomeTeam, a.Market, a.Line, a.Direction)
	}

	if len(batch) > 3 {
		body += fmt.Sprintf(" +%d more", len(batch)-3)
	}

	return body
}

// isQuietHours checks if current time is within quiet hours
func (s *Service) isQuietHours() bool {
	prefs, err := s.db.GetPreferences()
	if err != nil {
		return false
	}

	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		loc = time.Local
	}

	now := time.Now().In(loc)
	currentMinutes := now.Hour()*60 + now.Minute()

	// Parse quiet start
	startHour, startMin := 23, 0
	fmt.Sscanf(prefs.QuietStart, "%d:%d", &startHour, &startMin)
	startMinutes := startHour*60 + startMin

	// Parse quiet end
	endHour, endMin := 8, 0
	fmt.Sscanf(prefs.QuietEnd, "%d:%d", &endHour, &endMin)
	endMinutes := endHour*60 + endMin

	// Handle overnight quiet hours (e.g., 23:00 - 08:00)
	if startMinutes > endMinutes {
		// Quiet hours span midnight
		return currentMinutes >= startMinutes || currentMinutes < endMinutes
	}

	// Normal case (e.g., 02:00 - 06:00)
	return currentMinutes >= startMinutes && currentMinutes < endMinutes
}

// checkRateLimit checks if we can send on a channel
func (s *Service) checkRateLimit(channel string) bool {
	prefs, err := s.db.GetPreferences()
	if err != nil {
		return true
	}

	limit := prefs.RateLimitPush
	canSend, remaining, err := s.db.CheckRateLimit(channel, limit)
	if err != nil {
		s.log.WithError(err).Error("rate limit check failed")
		return true
	}

	if canSend {
		s.log.WithFields(logrus.Fields{
			"channel":   channel,
			"remaining": remaining,
		}).Debug("rate limit ok")
	}

	return canSend
}

// GetVAPIDPublicKey returns the public key for client subscription
func (s *Service) GetVAPIDPublicKey() string {
	return s.config.VAPIDPublicKey
}

// PushPayload represents the push notification payload
type PushPayload struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Icon  string   `json:"icon,omitempty"`
	Badge string   `json:"badge,omitempty"`
	Tag   string   `json:"tag,omitempty"`
	Data  PushData `json:"data,omitempty"`
}

// PushData represents custom data in push notification
type PushData struct {
	URL    string              `json:"url,omitempty"`
	Alerts []alerts.ValueAlert `json:"alerts,omitempty"`
	Count  int                 `json:"count"`
}
