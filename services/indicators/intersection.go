package indicators

import (
	"context"
	"fmt"
	"log"

	"stock_radar/models"
	"stock_radar/services/marketdata"
)

// snapshotSource is the read surface of the snapshot store used by queries.
type snapshotSource interface {
	Query(ctx context.Context, code string, limit, offset int) (int64, []models.IndicatorRankSnapshot, error)
	FetchAll(ctx context.Context, code string) (map[string]models.IndicatorRankSnapshot, []string, error)
}

// FundamentalFilter holds optional growth and valuation bounds applied to
// query results after fetch. Nil fields are not applied.
type FundamentalFilter struct {
	MinRevenueYoY *float64 `json:"min_revenue_yoy"`
	MinRevenueQoQ *float64 `json:"min_revenue_qoq"`
	MinProfitYoY  *float64 `json:"min_profit_yoy"`
	MinProfitQoQ  *float64 `json:"min_profit_qoq"`
	MaxPE         *float64 `json:"max_pe"`
}

// Empty reports whether no bound is set
func (f *FundamentalFilter) Empty() bool {
	return f == nil ||
		(f.MinRevenueYoY == nil && f.MinRevenueQoQ == nil &&
			f.MinProfitYoY == nil && f.MinProfitQoQ == nil && f.MaxPE == nil)
}

func (f *FundamentalFilter) matches(m marketdata.FundamentalMetrics) bool {
	if f.MinRevenueYoY != nil && m.RevenueYoY < *f.MinRevenueYoY {
		return false
	}
	if f.MinRevenueQoQ != nil && m.RevenueQoQ < *f.MinRevenueQoQ {
		return false
	}
	if f.MinProfitYoY != nil && m.ProfitYoY < *f.MinProfitYoY {
		return false
	}
	if f.MinProfitQoQ != nil && m.ProfitQoQ < *f.MinProfitQoQ {
		return false
	}
	if f.MaxPE != nil && m.PERatio > *f.MaxPE {
		return false
	}
	return true
}

// ResultRow is one instrument in a query or intersection result. Details
// holds each contributing indicator's metric payload keyed by its code.
type ResultRow struct {
	Symbol         string                        `json:"symbol"`
	Name           string                        `json:"name"`
	Rank           int                           `json:"rank"`
	Industry       string                        `json:"industry"`
	PriceChangePct float64                       `json:"price_change_pct"`
	VolumeRatio    float64                       `json:"volume_ratio"`
	Turnover       float64                       `json:"turnover"`
	Details        map[string]map[string]float64 `json:"details"`
}

// QueryResult is a paginated query or intersection response.
type QueryResult struct {
	Total int         `json:"total"`
	Items []ResultRow `json:"items"`
}

// Engine answers single-indicator and cross-indicator snapshot queries.
type Engine struct {
	snapshots    snapshotSource
	fundamentals marketdata.FundamentalsFeed // optional
}

// NewEngine creates a query engine. The fundamentals feed may be nil, in
// which case fundamental filters silently pass everything through.
func NewEngine(snapshots snapshotSource, fundamentals marketdata.FundamentalsFeed) *Engine {
	return &Engine{snapshots: snapshots, fundamentals: fundamentals}
}

// QueryIndicator pages one indicator's snapshot with optional fundamental
// filters applied after fetch
func (e *Engine) QueryIndicator(ctx context.Context, code string, filter *FundamentalFilter, limit, offset int) (*QueryResult, error) {
	limit, offset = clampPage(limit, offset)

	if filter.Empty() {
		total, rows, err := e.snapshots.Query(ctx, code, limit, offset)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Total: int(total), Items: toResultRows(code, rows)}, nil
	}

	// Filtered queries work on the full snapshot so the total reflects the
	// filtered count, not the stored one.
	bySymbol, order, err := e.snapshots.FetchAll(ctx, code)
	if err != nil {
		return nil, err
	}
	rows := make([]models.IndicatorRankSnapshot, 0, len(order))
	for _, symbol := range order {
		rows = append(rows, bySymbol[symbol])
	}

	items := toResultRows(code, rows)
	items, err = e.applyFundamentals(ctx, items, filter)
	if err != nil {
		return nil, err
	}
	return paginate(items, limit, offset), nil
}

// QueryIntersection keeps only instruments present in every named
// indicator's snapshot, in the rank order of the first code, merging each
// indicator's detail payload into the result rows.
func (e *Engine) QueryIntersection(ctx context.Context, codes []string, filter *FundamentalFilter, limit, offset int) (*QueryResult, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("intersection requires at least one indicator code")
	}
	limit, offset = clampPage(limit, offset)

	primary, primaryOrder, err := e.snapshots.FetchAll(ctx, codes[0])
	if err != nil {
		return nil, err
	}

	others := make([]map[string]models.IndicatorRankSnapshot, 0, len(codes)-1)
	for _, code := range codes[1:] {
		snapshot, _, err := e.snapshots.FetchAll(ctx, code)
		if err != nil {
			return nil, err
		}
		others = append(others, snapshot)
	}

	var items []ResultRow
	for _, symbol := range primaryOrder {
		inAll := true
		for _, snapshot := range others {
			if _, ok := snapshot[symbol]; !ok {
				inAll = false
				break
			}
		}
		if !inAll {
			continue
		}

		row := toResultRow(codes[0], primary[symbol])
		for i, code := range codes[1:] {
			snapshot := others[i][symbol]
			row.Details[code] = snapshot.DetailMap()
		}
		items = append(items, row)
	}

	items, err = e.applyFundamentals(ctx, items, filter)
	if err != nil {
		return nil, err
	}
	return paginate(items, limit, offset), nil
}

// applyFundamentals drops rows failing the filter. A feed failure degrades
// to unfiltered results rather than failing the query.
func (e *Engine) applyFundamentals(ctx context.Context, items []ResultRow, filter *FundamentalFilter) ([]ResultRow, error) {
	if filter.Empty() || e.fundamentals == nil || len(items) == 0 {
		return items, nil
	}

	symbols := make([]string, len(items))
	for i, item := range items {
		symbols[i] = item.Symbol
	}
	metrics, err := e.fundamentals.FetchMetrics(ctx, symbols)
	if err != nil {
		log.Printf("Fundamental filter skipped, feed unavailable: %v", err)
		return items, nil
	}

	filtered := items[:0]
	for _, item := range items {
		m, ok := metrics[item.Symbol]
		if !ok {
			continue
		}
		if filter.matches(m) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func toResultRow(code string, row models.IndicatorRankSnapshot) ResultRow {
	return ResultRow{
		Symbol:         row.Symbol,
		Name:           row.Name,
		Rank:           row.Rank,
		Industry:       row.Industry,
		PriceChangePct: row.PriceChangePct,
		VolumeRatio:    row.VolumeRatio,
		Turnover:       row.Turnover,
		Details:        map[string]map[string]float64{code: row.DetailMap()},
	}
}

func toResultRows(code string, rows []models.IndicatorRankSnapshot) []ResultRow {
	items := make([]ResultRow, 0, len(rows))
	for _, row := range rows {
		items = append(items, toResultRow(code, row))
	}
	return items
}

func paginate(items []ResultRow, limit, offset int) *QueryResult {
	total := len(items)
	if offset >= total {
		return &QueryResult{Total: total, Items: []ResultRow{}}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return &QueryResult{Total: total, Items: items[offset:end]}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
