package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Quote is one live market snapshot for a symbol. CumulativeVolume is the
// total matched volume since the session open, not a per-minute figure.
type Quote struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Time             time.Time `json:"time"`
	Price            float64   `json:"price"`
	Open             float64   `json:"open"`
	High             float64   `json:"high"`
	Low              float64   `json:"low"`
	RefPrice         float64   `json:"ref_price"`
	CumulativeVolume float64   `json:"cumulative_volume"`
	Turnover         float64   `json:"turnover"`
}

// QuoteFeed fetches live quotes for a batch of symbols. The upstream caps
// the number of symbols per request; callers must chunk by MaxBatchSize.
type QuoteFeed interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]Quote, error)
	MaxBatchSize() int
}

// HTTPQuoteFeed fetches live quotes from the upstream board API.
type HTTPQuoteFeed struct {
	baseURL    string
	batchSize  int
	httpClient *http.Client
}

// NewHTTPQuoteFeed creates a live quote client with the given per-request
// symbol limit
func NewHTTPQuoteFeed(baseURL string, batchSize int) *HTTPQuoteFeed {
	if batchSize <= 0 {
		batchSize = 80
	}
	return &HTTPQuoteFeed{
		baseURL:    baseURL,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// MaxBatchSize returns the per-request symbol limit
func (f *HTTPQuoteFeed) MaxBatchSize() int {
	return f.batchSize
}

type quoteResponse struct {
	Data []struct {
		SS   string  `json:"ss"`   // stock symbol
		SN   string  `json:"sn"`   // short name
		RP   float64 `json:"rp"`   // reference price
		OP   float64 `json:"op"`   // open price
		HP   float64 `json:"hp"`   // highest price
		LP   float64 `json:"lp"`   // lowest price
		MP   float64 `json:"mp"`   // match price
		TVOL float64 `json:"tvol"` // total matched volume
		TVAL float64 `json:"tval"` // total matched value
	} `json:"data"`
}

// FetchQuotes fetches live quotes for up to MaxBatchSize symbols
func (f *HTTPQuoteFeed) FetchQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if len(symbols) > f.batchSize {
		return nil, fmt.Errorf("quote batch of %d exceeds limit %d", len(symbols), f.batchSize)
	}

	url := fmt.Sprintf("%s?stocks=%s", f.baseURL, strings.Join(symbols, ","))

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
		return nil, fmt.Errorf("quote API error (status %d): %s", resp.StatusCode, string(body))
	}

	var payload quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	now := time.Now()
	quotes := make([]Quote, 0, len(payload.Data))
	for _, row := range payload.Data {
		quotes = append(quotes, Quote{
			Symbol:           strings.ToUpper(row.SS),
			Name:             row.SN,
			Time:             now,
			Price:            row.MP,
			Open:             row.OP,
			High:             row.HP,
			Low:              row.LP,
			RefPrice:         row.RP,
			CumulativeVolume: row.TVOL,
			Turnover:         row.TVAL,
		})
	}

	return quotes, nil
}
