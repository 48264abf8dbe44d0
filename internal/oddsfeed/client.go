package oddsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/oddsalign/internal/models"
)

const defaultBaseURL = "https://api.the-odds-api.com/v4"

// gameMarkets are the game-level markets requested for every league
const gameMarkets = "h2h,spreads,totals"

// Client fetches odds documents from The Odds API
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	bookmakers string
	log        *logrus.Logger
}

// NewClient creates a new odds API client
func NewClient(apiKey string, log *logrus.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    defaultBaseURL,
		bookmakers: "draftkings,fanduel,betmgm",
		log:        log,
	}
}

// SetBaseURL overrides the API base URL (used by tests)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// Odds fetches all game-level odds for a league and flattens them into
// normalized events
func (c *Client) Odds(ctx context.Context, league models.League) ([]models.OddsEvent, error) {
	endpoint := fmt.Sprintf("%s/sports/%s/odds/", c.baseURL, league.OddsKey())

	params := url.Values{}
	params.Add("apiKey", c.apiKey)
	params.Add("regions", "us")
	params.Add("markets", gameMarkets)
	params.Add("oddsFormat", "american")
	params.Add("bookmakers", c.bookmakers)

	var events []Event
	if err := c.getJSON(ctx, endpoint+"?"+params.Encode(), &events); err != nil {
		return nil, fmt.Errorf("failed to fetch odds for %s: %w", league, err)
	}

	out := make([]models.OddsEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, FlattenEvent(ev))
	}
	return out, nil
}

// Props fetches player-prop quotes for a single event. The Odds API only
// serves props on the per-event endpoint.
func (c *Client) Props(ctx context.Context, league models.League, eventID string) ([]models.OddsQuote, error) {
	markets := PropMarkets(league)
	if markets == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/sports/%s/events/%s/odds", c.baseURL, league.OddsKey(), eventID)

	params := url.Values{}
	params.Add("apiKey", c.apiKey)
	params.Add("regions", "us")
	params.Add("markets", markets)
	params.Add("oddsFormat", "american")
	params.Add("bookmakers", c.bookmakers)

	var ev Event
	if err := c.getJSON(ctx, endpoint+"?"+params.Encode(), &ev); err != nil {
		return nil, fmt.Errorf("failed to fetch props for event %s: %w", eventID, err)
	}

	return FlattenEvent(ev).Quotes, nil
}

// getJSON performs a GET with a single immediate retry on transport
// errors, then decodes the response body into v
func (c *Client) getJSON(ctx context.Context, fullURL string, v interface{}) error {
	resp, err := c.get(ctx, fullURL)
	if err != nil {
		// One retry on transient network failure, nothing fancier
		resp, err = c.get(ctx, fullURL)
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

	// The quota headers are the only usage signal the provider gives
	if remaining := resp.Header.Get("X-Requests-Remaining"); remaining != "" {
		c.log.WithFields(logrus.Fields{
			"remaining": remaining,
			"used":      resp.Header.Get("X-Requests-Used"),
		}).Debug("odds API quota")
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedData, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, fullURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}
