package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/oddsalign/internal/metrics"
	"github.com/joshuakim/oddsalign/internal/models"
	"github.com/joshuakim/oddsalign/internal/polling"
	"github.com/joshuakim/oddsalign/internal/store"
)

func testHandler() (*Handler, *store.Store) {
	st := store.New()
	m := metrics.New()
	poller := polling.NewService(polling.DefaultConfig(), nil, st, nil, nil, m, logrus.New())
	return NewHandler(st, nil, poller, m), st
}

func seedResult(st *store.Store) {
	st.Set(models.LeagueNBA, &models.BuildResult{
		League:      models.LeagueNBA,
		Date:        "2026-08-30",
		GeneratedAt: time.Now().UTC(),
		Status:      models.BuildOK,
		Records: []models.GameRecord{
			{
				GameID: "g1",
				League: models.LeagueNBA,
				Home:   models.TeamRef{SourceID: "h", CanonicalName: "Denver Nuggets", Abbreviation: "DEN"},
				Away:   models.TeamRef{SourceID: "a", CanonicalName: "Utah Jazz", Abbreviation: "UTA"},
			},
			{
				GameID: "g2",
				League: models.LeagueNBA,
				Home:   models.TeamRef{SourceID: "h2", CanonicalName: "Boston Celtics", Abbreviation: "BOS"},
				Away:   models.TeamRef{SourceID: "a2", CanonicalName: "Miami Heat", Abbreviation: "MIA"},
			},
		},
	})
}

func doRequest(h *Handler, method, path string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecordsEndpoint(t *testing.T) {
	h, st := testHandler()
	seedResult(st)

	rec := doRequest(h, http.MethodGet, "/api/records/nba")
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.BuildResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Records, 2)
	assert.Equal(t, models.LeagueNBA, result.League)
}

func TestRecordsTeamFilter(t *testing.T) {
	h, st := testHandler()
	seedResult(st)

	rec := doRequest(h, http.MethodGet, "/api/records/nba?team=bos")
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.BuildResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, "g2", result.Records[0].GameID)
}

func TestRecordsUnknownLeague(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/records/cricket")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordsNotBuiltYet(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/records/mlb")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSingleRecordEndpoint(t *testing.T) {
	h, st := testHandler()
	seedResult(st)

	rec := doRequest(h, http.MethodGet, "/api/record/g1")
	require.Equal(t, http.StatusOK, rec.Code)

	var record models.GameRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "Denver Nuggets", record.Home.CanonicalName)

	rec = doRequest(h, http.MethodGet, "/api/record/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshRequiresPost(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/refresh/nba")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status, "enabled")
	assert.Contains(t, status, "leagues")
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var health metrics.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
}

func TestGapsWithoutDatabase(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/gaps")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestPreferencesWithoutDatabase(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(h, http.MethodGet, "/api/preferences")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflightOK(t *testing.T) {
	h, _ := testHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodOptions, "/api/records/nba", nil)
	rec := httptest.NewRecorder()
	CORSMiddleware(mux).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
