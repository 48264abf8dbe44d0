package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks system health and performance metrics
type Metrics struct {
	// Build metrics
	BuildCount        atomic.Int64 // Total builds executed
	BuildSuccessCount atomic.Int64 // Successful builds
	BuildErrorCount   atomic.Int64 // Failed builds
	BuildDegraded     atomic.Int64 // Builds completed without odds
	LastBuildTime     atomic.Value // time.Time of last build
	LastBuildDuration atomic.Int64 // Duration in milliseconds
	LastBuildError    atomic.Value // Last error message (string)
	ConsecutiveErrors atomic.Int64 // Consecutive build failures

	// Resolution metrics
	NamesResolved   atomic.Int64 // Names matched to a source ID
	NamesUnresolved atomic.Int64 // Names that missed the threshold

	// WebSocket metrics
	ConnectionsTotal   atomic.Int64 // Total connections ever made
	ConnectionsCurrent atomic.Int64 // Current active connections
	ConnectionsPeak    atomic.Int64 // Peak concurrent connections
	MessagesOut        atomic.Int64 // Messages sent to clients
	MessagesFailed     atomic.Int64 // Failed message sends
	BytesOut           atomic.Int64 // Total bytes sent

	// Change detection metrics
	ChangesDetected atomic.Int64 // Number of times records changed
	BroadcastCount  atomic.Int64 // Number of broadcasts sent
	LastChangeTime  atomic.Value // time.Time of last detected change

	// Odds API usage tracking
	APIRequestsToday  atomic.Int64 // Requests made today
	APIRequestsTotal  atomic.Int64 // Total requests ever
	APIQuotaLimit     int64        // Daily quota limit
	APIQuotaResetTime atomic.Value // time.Time when quota resets

	// System health
	StartTime     time.Time
	mu            sync.RWMutex
	leagueMetrics map[string]*LeagueMetrics
}

// LeagueMetrics tracks per-league metrics
type LeagueMetrics struct {
	League          string    `json:"league"`
	LastBuildTime   time.Time `json:"last_build_time"`
	LastChangeTime  time.Time `json:"last_change_time"`
	GamesTracked    int       `json:"games_tracked"`
	UnresolvedGaps  int       `json:"unresolved_gaps"`
	BuildCount      int64     `json:"build_count"`
	ChangeCount     int64     `json:"change_count"`
	SubscriberCount int64     `json:"subscriber_count"`
}

// New creates a new Metrics instance
func New() *Metrics {
	m := &Metrics{
		StartTime:     time.Now(),
		leagueMetrics: make(map[string]*LeagueMetrics),
	}
	m.LastBuildTime.Store(time.Time{})
	m.LastChangeTime.Store(time.Time{})
	m.LastBuildError.Store("")
	m.APIQuotaResetTime.Store(time.Now().Add(24 * time.Hour))
	return m
}

// RecordBuildStart records the start of a build
func (m *Metrics) RecordBuildStart() time.Time {
	return time.Now()
}

// RecordBuildSuccess records a completed build
func (m *Metrics) RecordBuildSuccess(start time.Time, league string, gamesCount, gapCount int, degraded bool) {
	duration := time.Since(start)

	m.BuildCount.Add(1)
	m.BuildSuccessCount.Add(1)
	if degraded {
		m.BuildDegraded.Add(1)
	}
	m.LastBuildTime.Store(time.Now())
	m.LastBuildDuration.Store(duration.Milliseconds())
	m.ConsecutiveErrors.Store(0)
	m.LastBuildError.Store("")
	m.NamesUnresolved.Add(int64(gapCount))

	m.mu.Lock()
	if m.leagueMetrics[league] == nil {
		m.leagueMetrics[league] = &LeagueMetrics{League: league}
	}
	m.leagueMetrics[league].LastBuildTime = time.Now()
	m.leagueMetrics[league].GamesTracked = gamesCount
	m.leagueMetrics[league].UnresolvedGaps = gapCount
	m.leagueMetrics[league].BuildCount++
	m.mu.Unlock()
}

// RecordBuildError records a failed build
func (m *Metrics) RecordBuildError(start time.Time, err error) {
	m.BuildCount.Add(1)
	m.BuildErrorCount.Add(1)
	m.LastBuildTime.Store(time.Now())
	m.LastBuildDuration.Store(time.Since(start).Milliseconds())
	m.ConsecutiveErrors.Add(1)
	m.LastBuildError.Store(err.Error())
}

// RecordResolution counts one name resolution outcome
func (m *Metrics) RecordResolution(resolved bool) {
	if resolved {
		m.NamesResolved.Add(1)
	} else {
		m.NamesUnresolved.Add(1)
	}
}

// RecordAPIRequest counts one outbound odds API call
func (m *Metrics) RecordAPIRequest() {
	m.APIRequestsToday.Add(1)
	m.APIRequestsTotal.Add(1)
}

// RecordChange records when record changes are detected
func (m *Metrics) RecordChange(league string) {
	m.ChangesDetected.Add(1)
	m.LastChangeTime.Store(time.Now())

	m.mu.Lock()
	if m.leagueMetrics[league] != nil {
		m.leagueMetrics[league].LastChangeTime = time.Now()
		m.leagueMetrics[league].ChangeCount++
	}
	m.mu.Unlock()
}

// RecordBroadcast records a broadcast to clients
func (m *Metrics) RecordBroadcast(messageSize int, clientCount int) {
	m.BroadcastCount.Add(1)
	m.MessagesOut.Add(int64(clientCount))
	m.BytesOut.Add(int64(messageSize * clientCount))
}

// RecordMessageFailed records a failed message send
func (m *Metrics) RecordMessageFailed() {
	m.MessagesFailed.Add(1)
}

// RecordConnection records a new WebSocket connection
func (m *Metrics) RecordConnection() {
	m.ConnectionsTotal.Add(1)
	current := m.ConnectionsCurrent.Add(1)

	for {
		peak := m.ConnectionsPeak.Load()
		if current <= peak {
			break
		}
		if m.ConnectionsPeak.CompareAndSwap(peak, current) {
			break
		}
	}
}

// RecordDisconnection records a WebSocket disconnection
func (m *Metrics) RecordDisconnection() {
	m.ConnectionsCurrent.Add(-1)
}

// UpdateSubscriberCount updates subscriber count for a league
func (m *Metrics) UpdateSubscriberCount(league string, count int64) {
	m.mu.Lock()
	if m.leagueMetrics[league] == nil {
		m.leagueMetrics[league] = &LeagueMetrics{League: league}
	}
	m.leagueMetrics[league].SubscriberCount = count
	m.mu.Unlock()
}

// ResetDailyQuota resets daily API quota counter
func (m *Metrics) ResetDailyQuota() {
	m.APIRequestsToday.Store(0)
	m.APIQuotaResetTime.Store(time.Now().Add(24 * time.Hour))
}

// HealthStatus represents the system health
type HealthStatus struct {
	Status        string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        string                    `json:"uptime"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	Builds        BuildHealth               `json:"builds"`
	Resolution    ResolutionHealth          `json:"resolution"`
	WebSocket     WebSocketHealth           `json:"websocket"`
	API           APIHealth                 `json:"api"`
	Leagues       map[string]*LeagueMetrics `json:"leagues"`
	Warnings      []string                  `json:"warnings,omitempty"`
}

type BuildHealth struct {
	Enabled             bool      `json:"enabled"`
	TotalBuilds         int64     `json:"total_builds"`
	SuccessfulBuilds    int64     `json:"successful_builds"`
	FailedBuilds        int64     `json:"failed_builds"`
	DegradedBuilds      int64     `json:"degraded_builds"`
	SuccessRate         float64   `json:"success_rate_percent"`
	LastBuildTime       time.Time `json:"last_build_time"`
	LastBuildAgo        string    `json:"last_build_ago"`
	LastBuildDurationMs int64     `json:"last_build_duration_ms"`
	ConsecutiveErrors   int64     `json:"consecutive_errors"`
	LastError           string    `json:"last_error,omitempty"`
	ChangesDetected     int64     `json:"changes_detected"`
	LastChangeTime      time.Time `json:"last_change_time,omitempty"`
	LastChangeAgo       string    `json:"last_change_ago,omitempty"`
}

type ResolutionHealth struct {
	NamesResolved   int64   `json:"names_resolved"`
	NamesUnresolved int64   `json:"names_unresolved"`
	ResolveRate     float64 `json:"resolve_rate_percent"`
}

type WebSocketHealth struct {
	CurrentConnections int64   `json:"current_connections"`
	PeakConnections    int64   `json:"peak_connections"`
	TotalConnections   int64   `json:"total_connections"`
	MessagesSent       int64   `json:"messages_sent"`
	MessagesFailed     int64   `json:"messages_failed"`
	DeliveryRate       float64 `json:"delivery_rate_percent"`
	BytesSent          int64   `json:"bytes_sent"`
	BroadcastCount     int64   `json:"broadcast_count"`
}

type APIHealth struct {
	RequestsToday  int64     `json:"requests_today"`
	RequestsTotal  int64     `json:"requests_total"`
	QuotaLimit     int64     `json:"quota_limit"`
	QuotaRemaining int64     `json:"quota_remaining"`
	QuotaUsedPct   float64   `json:"quota_used_percent"`
	QuotaResetTime time.Time `json:"quota_reset_time"`
}

// GetHealth returns current health status
func (m *Metrics) GetHealth(pollingEnabled bool) HealthStatus {
	uptime := time.Since(m.StartTime)

	totalBuilds := m.BuildCount.Load()
	successBuilds := m.BuildSuccessCount.Load()
	failedBuilds := m.BuildErrorCount.Load()

	var successRate float64
	if totalBuilds > 0 {
		successRate = float64(successBuilds) / float64(totalBuilds) * 100
	}

	resolved := m.NamesResolved.Load()
	unresolved := m.NamesUnresolved.Load()
	var resolveRate float64
	if resolved+unresolved > 0 {
		resolveRate = float64(resolved) / float64(resolved+unresolved) * 100
	}

	messagesSent := m.MessagesOut.Load()
	messagesFailed := m.MessagesFailed.Load()
	var deliveryRate float64
	if messagesSent+messagesFailed > 0 {
		deliveryRate = float64(messagesSent) / float64(messagesSent+messagesFailed) * 100
	}

	lastBuildTime := m.LastBuildTime.Load().(time.Time)
	lastChangeTime := m.LastChangeTime.Load().(time.Time)
	lastBuildError := m.LastBuildError.Load().(string)
	quotaResetTime := m.APIQuotaResetTime.Load().(time.Time)

	requestsToday := m.APIRequestsToday.Load()
	quotaRemaining := m.APIQuotaLimit - requestsToday
	if quotaRemaining < 0 {
		quotaRemaining = 0
	}

	var quotaUsedPct float64
	if m.APIQuotaLimit > 0 {
		quotaUsedPct = float64(requestsToday) / float64(m.APIQuotaLimit) * 100
	}

	// Determine overall health status
	status := "healthy"
	var warnings []string

	consecutiveErrors := m.ConsecutiveErrors.Load()
	if consecutiveErrors >= 5 {
		status = "unhealthy"
		warnings = append(warnings, "High consecutive build errors")
	} else if consecutiveErrors >= 3 {
		status = "degraded"
		warnings = append(warnings, "Multiple consecutive build errors")
	}

	if pollingEnabled && !lastBuildTime.IsZero() && time.Since(lastBuildTime) > 10*time.Minute {
		status = "degraded"
		warnings = append(warnings, "Builds appear stale (>10 min since last build)")
	}

	if quotaUsedPct > 90 {
		warnings = append(warnings, "Odds API quota nearly exhausted (>90%)")
		if status == "healthy" {
			status = "degraded"
		}
	}

	if resolveRate < 90 && resolved+unresolved > 50 {
		warnings = append(warnings, "Name resolve rate below 90%; alias table may need curation")
	}

	if deliveryRate < 95 && messagesSent > 100 {
		warnings = append(warnings, "Message delivery rate below 95%")
	}

	// Build league metrics snapshot
	m.mu.RLock()
	leagues := make(map[string]*LeagueMetrics)
	for k, v := range m.leagueMetrics {
		leagueCopy := *v
		leagues[k] = &leagueCopy
	}
	m.mu.RUnlock()

	var lastBuildAgo, lastChangeAgo string
	if !lastBuildTime.IsZero() {
		lastBuildAgo = time.Since(lastBuildTime).Round(time.Second).String()
	}
	if !lastChangeTime.IsZero() {
		lastChangeAgo = time.Since(lastChangeTime).Round(time.Second).String()
	}

	return HealthStatus{
		Status:        status,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		Builds: BuildHealth{
			Enabled:             pollingEnabled,
			TotalBuilds:         totalBuilds,
			SuccessfulBuilds:    successBuilds,
			FailedBuilds:        failedBuilds,
			DegradedBuilds:      m.BuildDegraded.Load(),
			SuccessRate:         successRate,
			LastBuildTime:       lastBuildTime,
			LastBuildAgo:        lastBuildAgo,
			LastBuildDurationMs: m.LastBuildDuration.Load(),
			ConsecutiveErrors:   consecutiveErrors,
			LastError:           lastBuildError,
			ChangesDetected:     m.ChangesDetected.Load(),
			LastChangeTime:      lastChangeTime,
			LastChangeAgo:       lastChangeAgo,
		},
		Resolution: ResolutionHealth{
			NamesResolved:   resolved,
			NamesUnresolved: unresolved,
			ResolveRate:     resolveRate,
		},
		WebSocket: WebSocketHealth{
			CurrentConnections: m.ConnectionsCurrent.Load(),
			PeakConnections:    m.ConnectionsPeak.Load(),
			TotalConnections:   m.ConnectionsTotal.Load(),
			MessagesSent:       messagesSent,
			MessagesFailed:     messagesFailed,
			DeliveryRate:       deliveryRate,
			BytesSent:          m.BytesOut.Load(),
			BroadcastCount:     m.BroadcastCount.Load(),
		},
		API: APIHealth{
			RequestsToday:  requestsToday,
			RequestsTotal:  m.APIRequestsTotal.Load(),
			QuotaLimit:     m.APIQuotaLimit,
			QuotaRemaining: quotaRemaining,
			QuotaUsedPct:   quotaUsedPct,
			QuotaResetTime: quotaResetTime,
		},
		Leagues:  leagues,
		Warnings: warnings,
	}
}

// JSON returns metrics as JSON
func (m *Metrics) JSON(pollingEnabled bool) ([]byte, error) {
	return json.Marshal(m.GetHealth(pollingEnabled))
}
