package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Tick is one intraday trade print: execution time and matched volume.
type Tick struct {
	Time   time.Time `json:"time"`
	Volume float64   `json:"volume"`
}

// TickFeed fetches one trading day of intraday trade prints for a symbol.
type TickFeed interface {
	FetchTicks(ctx context.Context, symbol, date string) ([]Tick, error)
}

// HTTPTickFeed fetches intraday ticks from the upstream finfo API.
type HTTPTickFeed struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTickFeed creates a tick feed client
func NewHTTPTickFeed(baseURL string) *HTTPTickFeed {
	return &HTTPTickFeed{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type tickResponse struct {
	Data []struct {
		Code   string  `json:"code"`
		Date   string  `json:"date"`
		Time   string  `json:"time"` // HH:mm:ss
		Volume float64 `json:"volume"`
	} `json:"data"`
	TotalElements int `json:"totalElements"`
}

// FetchTicks fetches all trade prints for one symbol and trade date
func (f *HTTPTickFeed) FetchTicks(ctx context.Context, symbol, date string) ([]Tick, error) {
	url := fmt.Sprintf("%s?sort=time:asc&q=code:%s~date:%s&size=50000", f.baseURL, symbol, date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setUpstreamHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tick API error (status %d): %s", resp.StatusCode, string(body))
	}

	var payload tickResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse tick response: %w", err)
	}

	ticks := make([]Tick, 0, len(payload.Data))
	for _, row := range payload.Data {
		ts, err := time.Parse("2006-01-02 15:04:05", row.Date+" "+row.Time)
		if err != nil {
			continue
		}
		ticks = append(ticks, Tick{Time: ts, Volume: row.Volume})
	}

	return ticks, nil
}

// setUpstreamHeaders sets the browser-like headers the upstream expects
func setUpstreamHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.vndirect.com.vn/")
}
