package statsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/oddsalign/internal/models"
)

const defaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

// formGames is how many completed games feed the recent-form averages
const formGames = 10

// Client fetches schedules, rosters and recent form from the ESPN site API
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logrus.Logger
}

// NewClient creates a new stats API client
func NewClient(log *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: defaultBaseURL,
		log:     log,
	}
}

// SetBaseURL overrides the API base URL (used by tests)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// Schedule fetches all games scheduled for a league on a date
func (c *Client) Schedule(ctx context.Context, league models.League, date time.Time) ([]models.GameStub, error) {
	url := fmt.Sprintf("%s/%s/scoreboard?dates=%s", c.baseURL, league.SportPath(), date.Format("20060102"))

	var resp scoreboardResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s schedule: %w", league, err)
	}

	stubs, skipped := parseScoreboard(resp, league)
	if skipped > 0 {
		c.log.WithFields(logrus.Fields{
			"league":  league,
			"skipped": skipped,
		}).Warn("schedule events with unexpected shape were skipped")
	}
	return stubs, nil
}

// Roster fetches the current roster for a team
func (c *Client) Roster(ctx context.Context, league models.League, teamID string) ([]models.PlayerRef, error) {
	url := fmt.Sprintf("%s/%s/teams/%s/roster", c.baseURL, league.SportPath(), teamID)

	var resp rosterResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch roster for team %s: %w", teamID, err)
	}

	return parseRoster(resp, teamID), nil
}

// RecentForm reduces a team's last completed games into per-game averages
func (c *Client) RecentForm(ctx context.Context, league models.League, teamID string) (models.StatLine, error) {
	url := fmt.Sprintf("%s/%s/teams/%s/schedule", c.baseURL, league.SportPath(), teamID)

	var resp scheduleResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch schedule for team %s: %w", teamID, err)
	}

	return reduceForm(resp, teamID), nil
}

// getJSON performs a GET with a single immediate retry on transport
// errors, then decodes the response body into v
func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		resp, err = c.get(ctx, url)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d: %s", models.ErrSourceUnavailable, resp.StatusCode, string(body))
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedData, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}
