package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/joshuakim/oddsalign/internal/database"
	"github.com/joshuakim/oddsalign/internal/metrics"
	"github.com/joshuakim/oddsalign/internal/models"
	"github.com/joshuakim/oddsalign/internal/polling"
	"github.com/joshuakim/oddsalign/internal/store"
)

// Handler holds HTTP handlers
type Handler struct {
	store   *store.Store
	db      *database.DB
	poller  *polling.Service
	metrics *metrics.Metrics
}

// NewHandler creates a new handler
func NewHandler(st *store.Store, db *database.DB, poller *polling.Service, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   st,
		db:      db,
		poller:  poller,
		metrics: m,
	}
}

// RegisterRoutes sets up the HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/records/", h.handleRecords)
	mux.HandleFunc("/api/record/", h.handleRecord)
	mux.HandleFunc("/api/refresh/", h.handleRefresh)
	mux.HandleFunc("/api/gaps", h.handleGaps)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/metrics", h.handleMetrics)
	mux.HandleFunc("/api/preferences", h.handlePreferences)
}

// handleHealth returns service health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRecords returns the latest build result for a league
// GET /api/records/{league}
func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	league, ok := h.parseLeague(r.URL.Path, "/api/records/")
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "invalid league: use 'nba', 'nfl' or 'mlb'")
		return
	}

	result, found := h.store.Get(league)
	if !found {
		h.errorResponse(w, http.StatusNotFound, "no records built for "+string(league)+" yet")
		return
	}

	// Optional team filter narrows to games involving one team
	if team := r.URL.Query().Get("team"); team != "" {
		result = filterResult(result, team)
	}

	h.jsonResponse(w, http.StatusOK, result)
}

// handleRecord returns a single game record by ID
// GET /api/record/{gameID}
func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	gameID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/record/"), "/")
	if gameID == "" {
		h.errorResponse(w, http.StatusBadRequest, "game ID required")
		return
	}

	record, found := h.store.Record(gameID)
	if !found {
		h.errorResponse(w, http.StatusNotFound, "game not found")
		return
	}

	h.jsonResponse(w, http.StatusOK, record)
}

// handleRefresh triggers an immediate rebuild for a league
// POST /api/refresh/{league}
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	league, ok := h.parseLeague(r.URL.Path, "/api/refresh/")
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "invalid league: use 'nba', 'nfl' or 'mlb'")
		return
	}

	if err := h.poller.ForceRefresh(r.Context(), league); err != nil {
		h.errorResponse(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}

	result, _ := h.store.Get(league)
	count := 0
	if result != nil {
		count = len(result.Records)
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"message": "records rebuilt",
		"league":  league,
		"count":   count,
	})
}

// handleGaps returns logged unresolved names for alias curation
// GET /api/gaps
func (h *Handler) handleGaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.db == nil {
		h.jsonResponse(w, http.StatusOK, map[string]interface{}{"count": 0, "gaps": []database.UnresolvedName{}})
		return
	}

	gaps, err := h.db.GetUnresolvedNames(200)
	if err != nil {
		h.errorResponse(w, http.StatusInternalServerError, "failed to load gaps: "+err.Error())
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"count": len(gaps),
		"gaps":  gaps,
	})
}

// handleStatus returns the polling service status
// GET /api/status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.jsonResponse(w, http.StatusOK, h.poller.GetStatus())
}

// handleMetrics returns the full health snapshot
// GET /api/metrics
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.jsonResponse(w, http.StatusOK, h.metrics.GetHealth(h.poller.IsEnabled()))
}

// handlePreferences reads or updates notification preferences
// GET|PUT /api/preferences
func (h *Handler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.errorResponse(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefs, err := h.db.GetPreferences()
		if err != nil {
			h.errorResponse(w, http.StatusInternalServerError, "failed to load preferences: "+err.Error())
			return
		}
		h.jsonResponse(w, http.StatusOK, prefs)

	case http.MethodPut:
		var prefs database.Preferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			h.errorResponse(w, http.StatusBadRequest, "invalid preferences payload")
			return
		}
		if err := h.db.UpdatePreferences(&prefs); err != nil {
			h.errorResponse(w, http.StatusInternalServerError, "failed to save preferences: "+err.Error())
			return
		}
		h.jsonResponse(w, http.StatusOK, map[string]string{"message": "preferences updated"})

	default:
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// filterResult narrows a build result to games involving one team
func filterResult(result *models.BuildResult, team string) *models.BuildResult {
	want := strings.ToLower(team)
	filtered := *result
	filtered.Records = nil
	for _, rec := range result.Records {
		for _, t := range []models.TeamRef{rec.Home, rec.Away} {
			if strings.ToLower(t.CanonicalName) == want || strings.ToLower(t.Abbreviation) == want {
				filtered.Records = append(filtered.Records, rec)
				break
			}
		}
	}
	return &filtered
}

// parseLeague extracts and validates the league from a URL path
func (h *Handler) parseLeague(path, prefix string) (models.League, bool) {
	leagueStr := strings.TrimPrefix(path, prefix)
	leagueStr = strings.ToLower(strings.TrimSuffix(leagueStr, "/"))

	league, err := models.ParseLeague(leagueStr)
	if err != nil {
		return "", false
	}
	return league, true
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// CORSMiddleware wraps a handler to add CORS headers for development
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
