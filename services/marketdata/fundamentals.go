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

// FundamentalMetrics holds per-instrument growth and valuation figures used
// as post-fetch filters on indicator queries.
type FundamentalMetrics struct {
	Symbol     string  `json:"symbol"`
	RevenueYoY float64 `json:"revenue_yoy"` // year-over-year revenue growth %
	RevenueQoQ float64 `json:"revenue_qoq"` // quarter-over-quarter revenue growth %
	ProfitYoY  float64 `json:"profit_yoy"`  // year-over-year net profit growth %
	ProfitQoQ  float64 `json:"profit_qoq"`  // quarter-over-quarter net profit growth %
	PERatio    float64 `json:"pe_ratio"`
	UpdatedAt  string  `json:"updated_at"`
}

// FundamentalsFeed fetches growth and valuation metrics for a symbol set.
type FundamentalsFeed interface {
	FetchMetrics(ctx context.Context, symbols []string) (map[string]FundamentalMetrics, error)
}

// HTTPFundamentalsFeed fetches fundamentals from the upstream finfo API.
type HTTPFundamentalsFeed struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFundamentalsFeed creates a fundamentals client
func NewHTTPFundamentalsFeed(baseURL string) *HTTPFundamentalsFeed {
	return &HTTPFundamentalsFeed{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type fundamentalsResponse struct {
	Data []struct {
		Code       string  `json:"code"`
		RevenueYoY float64 `json:"revenueGrowthYoy"`
		RevenueQoQ float64 `json:"revenueGrowthQoq"`
		ProfitYoY  float64 `json:"profitGrowthYoy"`
		ProfitQoQ  float64 `json:"profitGrowthQoq"`
		PE         float64 `json:"pe"`
		ReportDate string  `json:"reportDate"`
	} `json:"data"`
}

// FetchMetrics fetches fundamentals for a symbol set
func (f *HTTPFundamentalsFeed) FetchMetrics(ctx context.Context, symbols []string) (map[string]FundamentalMetrics, error) {
	if len(symbols) == 0 {
		return map[string]FundamentalMetrics{}, nil
	}

	url := fmt.Sprintf("%s?q=code:%s&size=%d", f.baseURL, strings.Join(symbols, ","), len(symbols))

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
		return nil, fmt.Errorf("fundamentals API error (status %d): %s", resp.StatusCode, string(body))
	}

	var payload fundamentalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse fundamentals response: %w", err)
	}

	result := make(map[string]FundamentalMetrics, len(payload.Data))
	for _, row := range payload.Data {
		symbol := strings.ToUpper(row.Code)
		result[symbol] = FundamentalMetrics{
			Symbol:     symbol,
			RevenueYoY: row.RevenueYoY,
			RevenueQoQ: row.RevenueQoQ,
			ProfitYoY:  row.ProfitYoY,
			ProfitQoQ:  row.ProfitQoQ,
			PERatio:    row.PE,
			UpdatedAt:  row.ReportDate,
		}
	}

	return result, nil
}
