package indicators

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stock_radar/models"
	"stock_radar/services/marketdata"
)

// fakeSnapshots serves canned snapshots keyed by indicator code.
type fakeSnapshots struct {
	data map[string][]models.IndicatorRankSnapshot
}

func (f *fakeSnapshots) FetchAll(_ context.Context, code string) (map[string]models.IndicatorRankSnapshot, []string, error) {
	rows, ok := f.data[code]
	if !ok {
		return map[string]models.IndicatorRankSnapshot{}, nil, nil
	}
	bySymbol := make(map[string]models.IndicatorRankSnapshot, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		bySymbol[row.Symbol] = row
		order = append(order, row.Symbol)
	}
	return bySymbol, order, nil
}

func (f *fakeSnapshots) Query(_ context.Context, code string, limit, offset int) (int64, []models.IndicatorRankSnapshot, error) {
	rows := f.data[code]
	total := int64(len(rows))
	if offset >= len(rows) {
		return total, nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return total, rows[offset:end], nil
}

type fakeFundamentals struct {
	metrics map[string]marketdata.FundamentalMetrics
	err     error
}

func (f *fakeFundamentals) FetchMetrics(_ context.Context, _ []string) (map[string]marketdata.FundamentalMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.metrics, nil
}

func snapshotRow(code, symbol string, rank int, detail map[string]float64) models.IndicatorRankSnapshot {
	row := models.IndicatorRankSnapshot{
		IndicatorCode: code,
		Symbol:        symbol,
		Rank:          rank,
		CapturedAt:    time.Now(),
	}
	row.SetDetail(detail)
	return row
}

func TestQueryIntersection_NoSharedSymbol(t *testing.T) {
	snapshots := &fakeSnapshots{data: map[string][]models.IndicatorRankSnapshot{
		"A": {snapshotRow("A", "AAA", 1, nil)},
		"B": {snapshotRow("B", "BBB", 1, nil)},
	}}
	engine := NewEngine(snapshots, nil)

	result, err := engine.QueryIntersection(context.Background(), []string{"A", "B"}, nil, 50, 0)
	if err != nil {
		t.Fatalf("intersection failed: %v", err)
	}
	if result.Total != 0 || len(result.Items) != 0 {
		t.Errorf("disjoint snapshots should intersect to nothing, got %+v", result)
	}
}

func TestQueryIntersection_SharedSymbolMergesDetails(t *testing.T) {
	snapshots := &fakeSnapshots{data: map[string][]models.IndicatorRankSnapshot{
		"A": {
			snapshotRow("A", "AAA", 1, map[string]float64{"score": 450}),
			snapshotRow("A", "CCC", 2, map[string]float64{"score": 300}),
		},
		"B": {
			snapshotRow("B", "CCC", 1, map[string]float64{"volume_ratio": 4.2}),
		},
	}}
	engine := NewEngine(snapshots, nil)

	result, err := engine.QueryIntersection(context.Background(), []string{"A", "B"}, nil, 50, 0)
	if err != nil {
		t.Fatalf("intersection failed: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected exactly one shared instrument, got %d", result.Total)
	}

	row := result.Items[0]
	if row.Symbol != "CCC" {
		t.Errorf("expected CCC, got %s", row.Symbol)
	}
	if _, ok := row.Details["A"]; !ok {
		t.Error("merged row is missing the primary indicator's detail payload")
	}
	if _, ok := row.Details["B"]; !ok {
		t.Error("merged row is missing the secondary indicator's detail payload")
	}
	if row.Details["B"]["volume_ratio"] != 4.2 {
		t.Errorf("secondary detail not carried through: %+v", row.Details["B"])
	}
}

func TestQueryIntersection_PreservesPrimaryOrder(t *testing.T) {
	snapshots := &fakeSnapshots{data: map[string][]models.IndicatorRankSnapshot{
		"A": {
			snapshotRow("A", "XXX", 1, nil),
			snapshotRow("A", "YYY", 2, nil),
			snapshotRow("A", "ZZZ", 3, nil),
		},
		"B": {
			// Reverse rank order in the secondary indicator.
			snapshotRow("B", "ZZZ", 1, nil),
			snapshotRow("B", "XXX", 2, nil),
		},
	}}
	engine := NewEngine(snapshots, nil)

	result, err := engine.QueryIntersection(context.Background(), []string{"A", "B"}, nil, 50, 0)
	if err != nil {
		t.Fatalf("intersection failed: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 shared instruments, got %d", len(result.Items))
	}
	if result.Items[0].Symbol != "XXX" || result.Items[1].Symbol != "ZZZ" {
		t.Errorf("intersection must preserve the primary indicator's order, got %s, %s",
			result.Items[0].Symbol, result.Items[1].Symbol)
	}
}

func TestQueryIntersection_FundamentalFilter(t *testing.T) {
	snapshots := &fakeSnapshots{data: map[string][]models.IndicatorRankSnapshot{
		"A": {
			snapshotRow("A", "AAA", 1, nil),
			snapshotRow("A", "BBB", 2, nil),
		},
		"B": {
			snapshotRow("B", "AAA", 1, nil),
			snapshotRow("B", "BBB", 2, nil),
		},
	}}
	fundamentals := &fakeFundamentals{metrics: map[string]marketdata.FundamentalMetrics{
		"AAA": {ProfitYoY: 35, PERatio: 12},
		"BBB": {ProfitYoY: 5, PERatio: 40},
	}}
	engine := NewEngine(snapshots, fundamentals)

	minProfit := 20.0
	filter := &FundamentalFilter{MinProfitYoY: &minProfit}
	result, err := engine.QueryIntersection(context.Background(), []string{"A", "B"}, filter, 50, 0)
	if err != nil {
		t.Fatalf("intersection failed: %v", err)
	}
	if result.Total != 1 || result.Items[0].Symbol != "AAA" {
		t.Errorf("fundamental filter should keep only AAA, got %+v", result)
	}
}

func TestQueryIndicator_FeedFailureDegradesToUnfiltered(t *testing.T) {
	snapshots := &fakeSnapshots{data: map[string][]models.IndicatorRankSnapshot{
		"A": {snapshotRow("A", "AAA", 1, nil), snapshotRow("A", "BBB", 2, nil)},
	}}
	fundamentals := &fakeFundamentals{err: fmt.Errorf("upstream down")}
	engine := NewEngine(snapshots, fundamentals)

	minProfit := 20.0
	filter := &FundamentalFilter{MinProfitYoY: &minProfit}
	result, err := engine.QueryIndicator(context.Background(), "A", filter, 50, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("feed failure should leave results unfiltered, got %d", result.Total)
	}
}

func TestQueryIndicator_Pagination(t *testing.T) {
	rows := make([]models.IndicatorRankSnapshot, 0, 5)
	for i := 1; i <= 5; i++ {
		rows = append(rows, snapshotRow("A", fmt.Sprintf("S%02d", i), i, nil))
	}
	snapshots := &fakeSnapshots{data: map[string][]models.IndicatorRankSnapshot{"A": rows}}
	engine := NewEngine(snapshots, nil)

	result, err := engine.QueryIndicator(context.Background(), "A", nil, 2, 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Total != 5 {
		t.Errorf("total should reflect the full snapshot, got %d", result.Total)
	}
	if len(result.Items) != 2 || result.Items[0].Symbol != "S03" {
		t.Errorf("unexpected page: %+v", result.Items)
	}
}
