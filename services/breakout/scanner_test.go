package breakout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock_radar/models"
)

// consolidatedSeries builds 34 quiet bars around a base price of 100
// followed by one evaluation bar with the given close and volume.
func consolidatedSeries(todayClose, todayVolume float64) []models.DailyBar {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.Local)
	bars := make([]models.DailyBar, 0, 35)
	for i := 0; i < 34; i++ {
		closePrice := 100.0
		if i%2 == 1 {
			closePrice = 102.0
		}
		bars = append(bars, models.DailyBar{
			Symbol: "AAA",
			Date:   start.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(99),
			High:   decimal.NewFromFloat(104),
			Low:    decimal.NewFromFloat(96),
			Close:  decimal.NewFromFloat(closePrice),
			Volume: 1000,
		})
	}
	bars = append(bars, models.DailyBar{
		Symbol: "AAA",
		Date:   start.AddDate(0, 0, 34),
		Open:   decimal.NewFromFloat(102),
		High:   decimal.NewFromFloat(todayClose),
		Low:    decimal.NewFromFloat(101),
		Close:  decimal.NewFromFloat(todayClose),
		Volume: todayVolume,
	})
	return bars
}

func TestEvaluate_AcceptsVolumeBackedBreakout(t *testing.T) {
	scanner := NewScanner(nil, DefaultConfig())

	// Close 8% above the prior max close of 102, volume 4.5x the baseline.
	bars := consolidatedSeries(102*1.08, 4500)
	candidate, ok := scanner.Evaluate("AAA", bars)
	if !ok {
		t.Fatal("expected a breakout candidate")
	}
	if candidate.Score <= 0 {
		t.Errorf("expected positive score, got %f", candidate.Score)
	}
	if candidate.VolumeRatio < 4.4 || candidate.VolumeRatio > 4.6 {
		t.Errorf("expected volume ratio near 4.5, got %f", candidate.VolumeRatio)
	}
	if candidate.BreakoutPercent < 0.079 || candidate.BreakoutPercent > 0.081 {
		t.Errorf("expected breakout percent near 0.08, got %f", candidate.BreakoutPercent)
	}
}

func TestEvaluate_RejectsLowVolume(t *testing.T) {
	scanner := NewScanner(nil, DefaultConfig())

	// Same 8% breakout but volume ratio 1.5, below the 3.0 minimum.
	bars := consolidatedSeries(102*1.08, 1500)
	if _, ok := scanner.Evaluate("AAA", bars); ok {
		t.Error("candidate with volume ratio 1.5 should be rejected")
	}
}

func TestEvaluate_RejectsWideRange(t *testing.T) {
	scanner := NewScanner(nil, DefaultConfig())

	bars := consolidatedSeries(102*1.08, 4500)
	// One wild bar inside the window blows the range amplitude past 25%.
	bars[20].High = decimal.NewFromFloat(140)
	if _, ok := scanner.Evaluate("AAA", bars); ok {
		t.Error("instrument with a wide window range was not consolidating")
	}
}

func TestEvaluate_DailyChangeAloneAccepts(t *testing.T) {
	scanner := NewScanner(nil, DefaultConfig())

	// Close only 2% above the 102 prior max, below the breakout threshold,
	// but 8.3% above the previous close clears the daily change rule.
	bars := consolidatedSeries(104, 4500)
	bars[33].Close = decimal.NewFromFloat(96)

	candidate, ok := scanner.Evaluate("AAA", bars)
	if !ok {
		t.Fatal("daily change above 7% should accept on its own")
	}
	if candidate.BreakoutPercent >= DefaultConfig().BreakoutThreshold {
		t.Fatalf("fixture should not clear the breakout threshold, got %f", candidate.BreakoutPercent)
	}
	if candidate.PriceChangePercent < 8.2 || candidate.PriceChangePercent > 8.5 {
		t.Errorf("expected price change near 8.3%%, got %f", candidate.PriceChangePercent)
	}
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	scanner := NewScanner(nil, DefaultConfig())

	bars := consolidatedSeries(110, 4500)[:30]
	if _, ok := scanner.Evaluate("AAA", bars); ok {
		t.Error("fewer than the minimum history bars must not match")
	}
}

func TestRankCandidates_DenseRanks(t *testing.T) {
	candidates := []Candidate{
		{Symbol: "AAA", Score: 450},
		{Symbol: "BBB", Score: 900},
		{Symbol: "CCC", Score: 900},
		{Symbol: "DDD", Score: 100},
	}
	RankCandidates(candidates)

	want := []struct {
		symbol string
		rank   int
	}{
		{"BBB", 1}, {"CCC", 1}, {"AAA", 2}, {"DDD", 3},
	}
	for i, w := range want {
		if candidates[i].Symbol != w.symbol || candidates[i].Rank != w.rank {
			t.Errorf("position %d: got %s rank %d, want %s rank %d",
				i, candidates[i].Symbol, candidates[i].Rank, w.symbol, w.rank)
		}
	}
}
