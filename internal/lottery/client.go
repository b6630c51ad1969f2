// Package lottery fetches historical draw results from the Taiwan Lottery API.
//
// The API serves one month of draws per request. The client rate limits every
// call, retries network and server errors with a linear backoff, and can fetch
// a window of months concurrently.
package lottery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/models"
)

// DefaultBaseURL is the Taiwan Lottery result API.
const DefaultBaseURL = "https://api.taiwanlottery.com/TLCAPIWeB/Lottery"

// ErrUnknownGame is returned for games the API client has no endpoint for.
var ErrUnknownGame = errors.New("unknown game")

// Draw dates are published in Taiwan time.
var taipei = time.FixedZone("CST", 8*60*60)

const apiDateLayout = "2006-01-02T15:04:05"

type endpoint struct {
	path      string
	resultKey string
}

var endpoints = map[string]endpoint{
	models.Lotto649.ID:      {path: "Lotto649Result", resultKey: "lotto649Res"},
	models.SuperLotto638.ID: {path: "SuperLotto638Result", resultKey: "superLotto638Res"},
	models.Daily539.ID:      {path: "Daily539Result", resultKey: "daily539Res"},
}

// APIResponse is the envelope of every result endpoint.
type APIResponse struct {
	RtCode  int                        `json:"rtCode"`
	RtMsg   string                     `json:"rtMsg"`
	Content map[string]json.RawMessage `json:"content"`
}

// APIDraw is one draw as returned by the API. DrawNumberSize holds the main
// numbers sorted ascending followed by the special number, if the game has one.
type APIDraw struct {
	Period           int64  `json:"period"`
	LotteryDate      string `json:"lotteryDate"`
	DrawNumberSize   []int  `json:"drawNumberSize"`
	DrawNumberAppear []int  `json:"drawNumberAppear"`
}

// ClientConfig holds tuning knobs for the HTTP client.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	RateLimit      rate.Limit
	Burst          int
	// Concurrency bounds how many months FetchRecent requests at once.
	Concurrency int
}

// Client provides access to the Taiwan Lottery API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryDelayBase time.Duration
	concurrency    int
}

// NewClient creates a new Taiwan Lottery client
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Every(500 * time.Millisecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		concurrency:    cfg.Concurrency,
	}
}

// FetchMonth retrieves every draw of game in the given month.
func (c *Client) FetchMonth(ctx context.Context, game models.Game, year int, month time.Month) ([]models.DrawRecord, error) {
	ep, ok := endpoints[game.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, game.ID)
	}
	url := fmt.Sprintf("%s/%s?period&month=%04d-%02d&pageSize=31", c.baseURL, ep.path, year, int(month))

	resp, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %04d-%02d: %w", game.ID, year, int(month), err)
	}
	defer resp.Body.Close()

	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.RtCode != 0 {
		return nil, fmt.Errorf("api error %d: %s", envelope.RtCode, envelope.RtMsg)
	}

	raw, ok := envelope.Content[ep.resultKey]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var apiDraws []APIDraw
	if err := json.Unmarshal(raw, &apiDraws); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ep.resultKey, err)
	}

	draws := make([]models.DrawRecord, 0, len(apiDraws))
	for _, ad := range apiDraws {
		d, err := convertDraw(game, ad)
		if err != nil {
			logger.Warn("Skipping %s period %d: %v", game.ID, ad.Period, err)
			continue
		}
		draws = append(draws, d)
	}
	return draws, nil
}

// FetchRecent retrieves the draws of the current month and the months-1
// months before it, newest period first. Months that fail are logged and
// skipped; an error is returned only if every month failed.
func (c *Client) FetchRecent(ctx context.Context, game models.Game, months int, now time.Time) ([]models.DrawRecord, error) {
	if months <= 0 {
		return nil, fmt.Errorf("invalid months %d: must be positive", months)
	}

	oldest := models.WindowStart(now, months)
	results := make([][]models.DrawRecord, months)
	errs := make([]error, months)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := 0; i < months; i++ {
		target := oldest.AddDate(0, months-1-i, 0)
		g.Go(func() error {
			logger.Debug("Fetching %s draws for %s", game.ID, target.Format("2006-01"))
			draws, err := c.FetchMonth(gctx, game, target.Year(), target.Month())
			if err != nil {
				logger.Warn("Failed to fetch %s: %v", target.Format("2006-01"), err)
				errs[i] = err
				return nil
			}
			logger.Debug("Fetched %d draws for %s", len(draws), target.Format("2006-01"))
			results[i] = draws
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == months {
		return nil, fmt.Errorf("all %d months failed: %w", months, errors.Join(errs...))
	}

	return mergeDraws(results), nil
}

// mergeDraws flattens per-month results, drops duplicate periods and sorts
// newest first.
func mergeDraws(results [][]models.DrawRecord) []models.DrawRecord {
	seen := make(map[int64]bool)
	var all []models.DrawRecord
	for _, draws := range results {
		for _, d := range draws {
			if seen[d.Period] {
				continue
			}
			seen[d.Period] = true
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Period > all[j].Period
	})
	return all
}

func convertDraw(game models.Game, ad APIDraw) (models.DrawRecord, error) {
	date, err := time.ParseInLocation(apiDateLayout, ad.LotteryDate, taipei)
	if err != nil {
		return models.DrawRecord{}, fmt.Errorf("invalid lottery date %q: %w", ad.LotteryDate, err)
	}

	want := game.MainCount
	if game.HasSpecial() {
		want++
	}
	if len(ad.DrawNumberSize) < want {
		return models.DrawRecord{}, fmt.Errorf("expected %d numbers, got %d", want, len(ad.DrawNumberSize))
	}

	special := 0
	if game.HasSpecial() {
		special = ad.DrawNumberSize[game.MainCount]
	}
	return models.NewDrawRecord(game, ad.Period, date, ad.DrawNumberSize[:game.MainCount], special)
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i+1)):
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
