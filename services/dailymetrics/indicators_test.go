package dailymetrics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock_radar/models"
)

func TestMA(t *testing.T) {
	prices := []float64{10, 20, 30, 40}
	if got := MA(prices, 2); got != 15 {
		t.Errorf("MA(2) = %f, want 15", got)
	}
	if got := MA(prices, 4); got != 25 {
		t.Errorf("MA(4) = %f, want 25", got)
	}
	if got := MA(prices, 5); got != 0 {
		t.Errorf("MA over short history should be 0, got %f", got)
	}
}

func TestRSI(t *testing.T) {
	// Monotonically rising series, newest first: no losses.
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 - i)
	}
	if got := RSI(rising, 14); got != 100 {
		t.Errorf("all-gains RSI = %f, want 100", got)
	}

	// Short history returns the neutral default.
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Errorf("short-history RSI = %f, want 50", got)
	}
}

func TestMACD_FlatSeriesIsZero(t *testing.T) {
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 50
	}
	macd, signal, hist := MACD(flat)
	if math.Abs(macd) > 1e-9 || math.Abs(signal) > 1e-9 || math.Abs(hist) > 1e-9 {
		t.Errorf("flat series MACD = (%f, %f, %f), want zeros", macd, signal, hist)
	}
}

func TestAvgVolume_ShrinksWindow(t *testing.T) {
	if got := AvgVolume([]float64{100, 200}, 20); got != 150 {
		t.Errorf("AvgVolume = %f, want 150", got)
	}
	if got := AvgVolume(nil, 20); got != 0 {
		t.Errorf("AvgVolume(nil) = %f, want 0", got)
	}
}

func TestMetricFromBars(t *testing.T) {
	start := time.Date(2025, 2, 3, 0, 0, 0, 0, time.Local)
	bars := make([]models.DailyBar, 0, 30)
	for i := 0; i < 30; i++ {
		bars = append(bars, models.DailyBar{
			Symbol: "AAA",
			Date:   start.AddDate(0, 0, i),
			Close:  decimal.NewFromFloat(100),
			Volume: 1000,
		})
	}
	bars[29].Volume = 3000
	bars[29].ChangePercent = decimal.NewFromFloat(2.5)
	bars[29].Provisional = true

	metric, ok := MetricFromBars("AAA", bars)
	if !ok {
		t.Fatal("expected a metric row from 30 bars")
	}
	if metric.MA10 != 100 || metric.MA20 != 100 {
		t.Errorf("flat closes should give MA 100, got %f / %f", metric.MA10, metric.MA20)
	}
	if metric.AvgVol20 != 1000 {
		t.Errorf("baseline volume should exclude today: got %f", metric.AvgVol20)
	}
	if math.Abs(metric.VolumeRatio-3.0) > 1e-9 {
		t.Errorf("volume ratio = %f, want 3.0", metric.VolumeRatio)
	}
	if metric.ChangePercent != 2.5 {
		t.Errorf("change percent = %f, want 2.5", metric.ChangePercent)
	}
	if !metric.Provisional {
		t.Error("metric derived from a provisional bar should be provisional")
	}

	if _, ok := MetricFromBars("AAA", bars[:5]); ok {
		t.Error("fewer than 10 bars should not produce a metric")
	}
}
